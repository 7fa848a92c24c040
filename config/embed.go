// Package config carries the default configuration baked into the binary.
package config

import _ "embed"

// Default is the embedded conf.yaml applied before any on-disk config.
//
//go:embed conf.yaml
var Default []byte
