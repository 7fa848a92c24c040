package audio

import (
	"encoding/base64"
	"fmt"
)

// EncodeTransport encodes raw audio bytes into the text form used on JSON transports.
func EncodeTransport(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeTransport decodes the text form back into raw audio bytes.
func DecodeTransport(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return data, nil
}
