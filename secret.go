package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

const redacted = "[SECRET]"

// Secret holds sensitive bytes such as the recovered master key. Formatting
// and marshaling never reveal the contents.
type Secret []byte

func (s Secret) String() string { return redacted }

// Format implements fmt.Formatter so every verb is redacted.
func (s Secret) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, redacted)
}

// LogValue keeps the secret out of structured logs.
func (s Secret) LogValue() slog.Value { return slog.StringValue(redacted) }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(redacted) }

func (s Secret) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Zero overwrites the secret in place.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	zeroBytes(*s)
}
