package domain

import (
	"sort"
	"strconv"
	"time"
)

// Snapshot is an immutable view of resolved configuration values, keyed by
// dot-separated paths (e.g. "agents.chatbot.model"). It is the only form of
// configuration agents see: they read values, they never mutate them.
type Snapshot struct {
	values map[string]string
}

// NewSnapshot copies the given map into a Snapshot.
func NewSnapshot(values map[string]string) Snapshot {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Snapshot{values: cp}
}

// Value returns the value at key and whether it was present.
func (s Snapshot) Value(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// String returns the value at key, or def when absent.
func (s Snapshot) String(key, def string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Int returns the value at key parsed as an integer, or def when absent
// or unparseable.
func (s Snapshot) Int(key string, def int) int {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Bool returns the value at key parsed as a boolean, or def.
func (s Snapshot) Bool(key string, def bool) bool {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Duration returns the value at key parsed as a time.Duration, or def.
func (s Snapshot) Duration(key string, def time.Duration) time.Duration {
	v, ok := s.values[key]
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Keys returns the sorted set of keys in the snapshot.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two snapshots hold identical key/value pairs.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for k, v := range s.values {
		if ov, ok := other.values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// PromptSet is a read-only collection of prompt templates keyed by
// dot-separated paths (e.g. "agents.chatbot.system").
type PromptSet struct {
	prompts map[string]string
}

// NewPromptSet copies the given map into a PromptSet.
func NewPromptSet(prompts map[string]string) PromptSet {
	cp := make(map[string]string, len(prompts))
	for k, v := range prompts {
		cp[k] = v
	}
	return PromptSet{prompts: cp}
}

// Get returns the prompt at key, or def when absent.
func (p PromptSet) Get(key, def string) string {
	if v, ok := p.prompts[key]; ok {
		return v
	}
	return def
}

// Has reports whether a prompt exists at key.
func (p PromptSet) Has(key string) bool {
	_, ok := p.prompts[key]
	return ok
}
