// Package injector builds the configuration record a web framework's build
// tool reads to expose public environment values to application code.
package injector

import (
	"errors"
	"fmt"
)

// DeployedURL is the variable forwarded when no keys are configured.
const DeployedURL = "PUBLIC_DEPLOYED_URL"

var ErrEmptyKey = errors.New("empty environment key")

// Record is the configuration record handed to the build tool.
// A key missing from Env means the source variable was unset.
type Record struct {
	Env map[string]string `json:"env"`

	// Forwarded lists every key the injector was asked for, set or not.
	Forwarded []string `json:"-"`
}

// Lookup returns the forwarded value of key and whether it was set.
func (r *Record) Lookup(key string) (string, bool) {
	v, ok := r.Env[key]
	return v, ok
}

func (r *Record) Clone() *Record {
	out := &Record{
		Env:       make(map[string]string, len(r.Env)),
		Forwarded: append([]string(nil), r.Forwarded...),
	}
	for k, v := range r.Env {
		out.Env[k] = v
	}
	return out
}

type Injector struct {
	keys []string
}

// New returns an injector forwarding DeployedURL followed by extra in the
// given order. Duplicates are dropped.
func New(extra ...string) (*Injector, error) {
	keys := append([]string{DeployedURL}, extra...)
	seen := make(map[string]struct{}, len(keys))
	uniq := make([]string, 0, len(keys))
	for i, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("key at position %d: %w", i-1, ErrEmptyKey)
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	return &Injector{keys: uniq}, nil
}

// Keys returns a copy of the forwarded key names.
func (i *Injector) Keys() []string {
	return append([]string(nil), i.keys...)
}

// Inject copies every configured key from lookup into a fresh record.
// Values are forwarded verbatim; unset keys are left out.
func (i *Injector) Inject(lookup Lookup) *Record {
	rec := &Record{
		Env:       make(map[string]string, len(i.keys)),
		Forwarded: i.Keys(),
	}
	for _, k := range i.keys {
		if v, ok := lookup(k); ok {
			rec.Env[k] = v
		}
	}
	return rec
}

var defaultInjector = &Injector{keys: []string{DeployedURL}}

// Inject forwards DeployedURL from lookup.
func Inject(lookup Lookup) *Record {
	return defaultInjector.Inject(lookup)
}
