package audio

import "testing"

func TestFloat32ToInt16Saturates(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1.0, 32767},
		{-1.0, -32768},
		{2.5, 32767},
		{-3.0, -32768},
		{0.5, 16383},
	}
	for _, tc := range cases {
		if got := float32ToInt16(tc.in); got != tc.want {
			t.Fatalf("float32ToInt16(%v)=%d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestInt16Float32RoundTrip(t *testing.T) {
	src := []int16{0, 1, -1, 1000, -1000, 32767, -32767}
	floats := Int16SliceToFloat32Into(nil, src)
	back := Float32SliceToInt16SliceInto(nil, floats)
	if len(back) != len(src) {
		t.Fatalf("len=%d, want %d", len(back), len(src))
	}
	for i := range src {
		diff := int(back[i]) - int(src[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d, want %d within one quantization step", i, back[i], src[i])
		}
	}
}

func TestInt16BytesRoundTrip(t *testing.T) {
	src := []int16{0, 256, -256, 32767, -32768}
	raw := Int16SliceToBytesInto(nil, src)
	if len(raw) != len(src)*2 {
		t.Fatalf("len(raw)=%d, want %d", len(raw), len(src)*2)
	}
	back := BytesToInt16Slice(raw)
	for i := range src {
		if back[i] != src[i] {
			t.Fatalf("sample %d: got %d, want %d", i, back[i], src[i])
		}
	}
}
