// Package json is the JSON codec used by ragchat.
// It uses sonic on amd64/arm64 and falls back to encoding/json elsewhere.
package json

import (
	"bytes"
	stdjson "encoding/json"
	"io"
	"runtime"

	"github.com/bytedance/sonic"
)

var (
	// Marshal encodes v into JSON bytes.
	Marshal func(v any) ([]byte, error)

	// Unmarshal decodes JSON bytes into v.
	Unmarshal func(data []byte, v any) error

	// NewEncoder creates a new JSON encoder for the writer.
	NewEncoder func(w io.Writer) Encoder

	// NewDecoder creates a new JSON decoder for the reader.
	NewDecoder func(r io.Reader) Decoder

	usingSonic bool

	// quoteAPI keeps <, > and & literal and replaces invalid UTF-8, like the std fallback below.
	quoteAPI = sonic.Config{EscapeHTML: false, ValidateString: true}.Froze()
)

// Encoder is a JSON encoder interface.
type Encoder interface {
	Encode(v any) error
}

// Decoder is a JSON decoder interface.
type Decoder interface {
	Decode(v any) error
}

func init() {
	// sonic 仅支持 amd64 与 arm64
	if runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64" {
		api := sonic.ConfigDefault
		Marshal = api.Marshal
		Unmarshal = api.Unmarshal
		NewEncoder = func(w io.Writer) Encoder { return api.NewEncoder(w) }
		NewDecoder = func(r io.Reader) Decoder { return api.NewDecoder(r) }
		usingSonic = true
		return
	}

	Marshal = stdjson.Marshal
	Unmarshal = stdjson.Unmarshal
	NewEncoder = func(w io.Writer) Encoder { return stdjson.NewEncoder(w) }
	NewDecoder = func(r io.Reader) Decoder { return stdjson.NewDecoder(r) }
}

// Quote returns s encoded as a JSON string literal, quotes included.
// HTML characters are never escaped, so the result is the same on every platform.
func Quote(s string) (string, error) {
	if usingSonic {
		b, err := quoteAPI.Marshal(s)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var buf bytes.Buffer
	enc := stdjson.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// IsUsingSonic returns true if sonic is being used for JSON operations.
func IsUsingSonic() bool {
	return usingSonic
}
