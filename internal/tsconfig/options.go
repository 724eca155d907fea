package tsconfig

import (
	"maps"
	"strings"
)

// Options maps compiler option names to their decoded JSON values.
type Options map[string]any

// Merge returns a new Options holding o overlaid with override. Keys in
// override win; a base key that differs from an override key only by case is
// dropped, since option names are case-insensitive. Neither input is modified.
func (o Options) Merge(override Options) Options {
	merged := make(Options, len(o)+len(override))
	maps.Copy(merged, o)
	for key, value := range override {
		for existing := range merged {
			if existing != key && strings.EqualFold(existing, key) {
				delete(merged, existing)
			}
		}
		merged[key] = value
	}
	return merged
}

// Lookup returns the value for name, matching case-insensitively.
func (o Options) Lookup(name string) (any, bool) {
	if v, ok := o[name]; ok {
		return v, true
	}
	for key, v := range o {
		if strings.EqualFold(key, name) {
			return v, true
		}
	}
	return nil, false
}

// String returns a string option. Non-string values report false.
func (o Options) String(name string) (string, bool) {
	v, ok := o.Lookup(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns a boolean option, false when unset or not a boolean.
func (o Options) Bool(name string) bool {
	v, ok := o.Lookup(name)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Clone returns a shallow copy of o.
func (o Options) Clone() Options {
	return maps.Clone(o)
}
