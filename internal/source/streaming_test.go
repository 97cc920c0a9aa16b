package source

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestSkipBOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"file with BOM", append([]byte{0xEF, 0xBB, 0xBF}, []byte("Location ID,Year")...), "Location ID,Year"},
		{"file without BOM", []byte("Location ID,Year"), "Location ID,Year"},
		{"empty file", []byte{}, ""},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial BOM at start", []byte{0xEF, 0xBB, 'a', 'b', 'c'}, string([]byte{0xEF, 0xBB, 'a', 'b', 'c'})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(skipBOM(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"valid ASCII", []byte("100,2024"), "100,2024"},
		{"valid multibyte", []byte("Zoë Café"), "Zoë Café"},
		{"invalid single byte replaced", []byte{'h', 'e', 0x80, 'l', 'o'}, "he?lo"},
		{"empty input", []byte{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

// oneByteReader forces every multi-byte rune to straddle a read boundary.
type oneByteReader struct{ r io.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestUTF8Sanitizer_SplitRunes(t *testing.T) {
	input := "Muñoz, São Paulo, 5€, 💧"
	result, err := io.ReadAll(newUTF8Sanitizer(oneByteReader{strings.NewReader(input)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != input {
		t.Errorf("got %q, want %q", string(result), input)
	}
}

func TestCountingReader(t *testing.T) {
	input := strings.Repeat("x", 1000)
	counter := &countingReader{r: strings.NewReader(input), total: int64(len(input))}

	buf := make([]byte, 100)
	for {
		_, err := counter.Read(buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if counter.n != int64(len(input)) {
		t.Errorf("bytes read = %d, want %d", counter.n, len(input))
	}
	if counter.Percent() != 100 {
		t.Errorf("Percent = %d, want 100", counter.Percent())
	}
}

func TestWrapForStreaming(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'h', 'e', 0x80, 'l', 'o'}...)

	stream, counter := wrapForStreaming(bytes.NewReader(input), int64(len(input)))
	result, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(result) != "he?lo" {
		t.Errorf("got %q, want %q", string(result), "he?lo")
	}
	if counter.n != int64(len(input)) {
		t.Errorf("bytes read = %d, want %d", counter.n, len(input))
	}
}
