package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/cortex/internal/config"
)

// Secret creates a field for a config.Secret showing only its length.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString creates a field with the value replaced by its length.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder wraps an encoder and hides sensitive fields.
//
// Fields named in RedactionConfig.Fields become [REDACTED]. Fields named in
// RedactionConfig.Content become [CONTENT:<len>]. String values matching a
// pattern become [REDACTED:pattern]. Key matching is case-insensitive.
type RedactingEncoder struct {
	zapcore.Encoder
	secretKeys  map[string]bool
	contentKeys map[string]bool
	patterns    []*regexp.Regexp
}

// NewRedactingEncoder wraps base with the rules in cfg.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	enc := &RedactingEncoder{
		Encoder:     base,
		secretKeys:  keySet(cfg.Fields),
		contentKeys: keySet(cfg.Content),
	}
	for _, p := range cfg.Patterns {
		if len(p) > 200 {
			return nil, fmt.Errorf("redaction pattern too long (max 200 chars): %q", p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		enc.patterns = append(enc.patterns, re)
	}
	return enc, nil
}

func keySet(keys []string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = true
	}
	return set
}

func (e *RedactingEncoder) isSecret(key string) bool {
	return e.secretKeys[strings.ToLower(key)]
}

func (e *RedactingEncoder) isContent(key string) bool {
	return e.contentKeys[strings.ToLower(key)]
}

// AddString applies key and pattern rules.
func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.isSecret(key):
		e.Encoder.AddString(key, "[REDACTED]")
		return
	case e.isContent(key):
		e.Encoder.AddString(key, "[CONTENT:"+strconv.Itoa(len(val))+"]")
		return
	}
	for _, re := range e.patterns {
		if re.MatchString(val) {
			e.Encoder.AddString(key, "[REDACTED:pattern]")
			return
		}
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) hidden(key string) bool {
	return e.isSecret(key) || e.isContent(key)
}

// AddByteString applies key rules.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.hidden(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddBinary applies key rules.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.hidden(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected hides the whole value when the key is sensitive.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.hidden(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray applies key rules.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.hidden(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject applies key rules.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.hidden(key) {
		e.Encoder.AddString(key, "[REDACTED]")
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// EncodeEntry redacts per-entry fields; the Add* methods above only see
// fields attached through With.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = e.redactField(f)
	}
	return e.Encoder.EncodeEntry(ent, out)
}

func (e *RedactingEncoder) redactField(f zapcore.Field) zapcore.Field {
	switch {
	case e.isSecret(f.Key):
		return zap.String(f.Key, "[REDACTED]")
	case e.isContent(f.Key) && f.Type == zapcore.StringType:
		return zap.String(f.Key, "[CONTENT:"+strconv.Itoa(len(f.String))+"]")
	case e.isContent(f.Key):
		return zap.String(f.Key, "[REDACTED]")
	case f.Type == zapcore.StringType:
		for _, re := range e.patterns {
			if re.MatchString(f.String) {
				return zap.String(f.Key, "[REDACTED:pattern]")
			}
		}
	}
	return f
}

// Clone copies the encoder with its rules.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:     e.Encoder.Clone(),
		secretKeys:  e.secretKeys,
		contentKeys: e.contentKeys,
		patterns:    e.patterns,
	}
}
