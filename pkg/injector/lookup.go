package injector

import (
	"os"
	"strings"
)

// Lookup reports the value of an environment variable and whether it is set.
type Lookup func(key string) (string, bool)

// OS reads the process environment.
func OS() Lookup {
	return os.LookupEnv
}

// FromMap looks keys up in a copy of m.
func FromMap(m map[string]string) Lookup {
	snapshot := make(map[string]string, len(m))
	for k, v := range m {
		snapshot[k] = v
	}
	return func(key string) (string, bool) {
		v, ok := snapshot[key]
		return v, ok
	}
}

// FromEnviron parses KEY=VALUE pairs as returned by os.Environ. Later
// entries win; entries without '=' are ignored.
func FromEnviron(environ []string) Lookup {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return FromMap(m)
}
