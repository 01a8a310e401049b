// Package redactor keeps credentials out of logs, reports and errors.
package redactor

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Mask replaces a secret wherever it would be printed.
const Mask = "****"

// String is a secret. It prints and marshals as redacted; use Reveal to
// obtain the value for the one call that needs it.
type String string

// Reveal returns the secret value.
func (s String) Reveal() string {
	return string(s)
}

// String implements fmt.Stringer.
func (s String) String() string {
	if s == "" {
		return ""
	}
	return Mask
}

// GoString implements fmt.GoStringer so %#v is redacted too.
func (s String) GoString() string {
	return s.String()
}

// MarshalJSON implements json.Marshaler.
func (s String) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return []byte("null"), nil
}

// MarshalText implements encoding.TextMarshaler.
func (s String) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MarshalLogObject lets zap.Object log the secret safely.
func (s String) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("value", s.String())
	return nil
}

// Truncate shortens a non-secret value for display, appending "..." when cut.
func Truncate(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max] + "..."
}

// Scrub replaces every occurrence of the given secrets in text with Mask.
func Scrub(text string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		text = strings.ReplaceAll(text, secret, Mask)
	}
	return text
}

// ScrubError returns err unchanged when it mentions no secret, otherwise a
// new error with the secrets masked and no link to the original.
func ScrubError(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	scrubbed := Scrub(msg, secrets...)
	if scrubbed == msg {
		return err
	}
	return scrubbedError(scrubbed)
}

type scrubbedError string

func (e scrubbedError) Error() string { return string(e) }
