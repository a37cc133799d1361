// Package render encodes configuration records for build tools.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"sigs.k8s.io/yaml"

	"github.com/moolen/publicenv/pkg/injector"
)

type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatDefine Format = "define"
)

// DefaultPrefix is the namespace application code reads public values from.
const DefaultPrefix = "import.meta.env"

var (
	ErrUnknownFormat = errors.New("unknown format")
	// ErrInvalidUTF8 is returned for values JSON and YAML cannot carry
	// without rewriting them.
	ErrInvalidUTF8 = errors.New("value is not valid UTF-8")
)

// CheckUTF8 reports the first key, in sorted order, whose value is not
// valid UTF-8.
func CheckUTF8(rec *injector.Record) error {
	keys := make([]string, 0, len(rec.Env))
	for k := range rec.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !utf8.ValidString(rec.Env[k]) {
			return fmt.Errorf("%s: %w", k, ErrInvalidUTF8)
		}
	}
	return nil
}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatDefine:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// Encode renders rec in format f. For FormatDefine, prefixes select the
// expression namespaces; DefaultPrefix is used when none are given.
func Encode(rec *injector.Record, f Format, prefixes ...string) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(rec)
	case FormatYAML:
		return YAML(rec)
	case FormatDefine:
		if err := CheckUTF8(rec); err != nil {
			return nil, err
		}
		b, err := json.MarshalIndent(Defines(rec, prefixes...), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal define map: %w", err)
		}
		return append(b, '\n'), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownFormat, f)
}

func JSON(rec *injector.Record) ([]byte, error) {
	if err := CheckUTF8(rec); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalize(rec)); err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return buf.Bytes(), nil
}

func YAML(rec *injector.Record) ([]byte, error) {
	if err := CheckUTF8(rec); err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(normalize(rec))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return b, nil
}

// Defines maps "<prefix>.<KEY>" to a JavaScript expression for every
// forwarded key: a quoted string literal when set, undefined otherwise.
// Callers that need values verbatim check CheckUTF8 first.
func Defines(rec *injector.Record, prefixes ...string) map[string]string {
	if len(prefixes) == 0 {
		prefixes = []string{DefaultPrefix}
	}
	keys := rec.Forwarded
	if len(keys) == 0 {
		for k := range rec.Env {
			keys = append(keys, k)
		}
	}

	defines := make(map[string]string, len(keys)*len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSuffix(p, ".")
		for _, k := range keys {
			defines[p+"."+k] = literal(rec, k)
		}
	}
	return defines
}

func literal(rec *injector.Record, key string) string {
	v, ok := rec.Lookup(key)
	if !ok {
		return "undefined"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}

// normalize makes a nil Env encode as an empty object.
func normalize(rec *injector.Record) *injector.Record {
	if rec.Env != nil {
		return rec
	}
	return rec.Clone()
}
