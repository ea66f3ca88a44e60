package naming

import (
	"sort"
	"strings"
	"sync"
)

// Mapping is a path keyed override table. It remembers which entries were
// looked up so that stale entries can be reported after a run.
type Mapping struct {
	name    string
	mu      sync.Mutex
	entries map[string]string
	used    map[string]bool
}

// NewMapping normalizes the keys of entries ("Pet//Owner/" becomes "/Pet/Owner").
func NewMapping(name string, entries map[string]string) *Mapping {
	m := &Mapping{name: name, entries: map[string]string{}, used: map[string]bool{}}
	for k, v := range entries {
		m.entries[NormalizeKey(k)] = v
	}
	return m
}

// Name returns the configuration key of the table.
func (m *Mapping) Name() string { return m.name }

// Lookup returns the entry for the first key that has one.
func (m *Mapping) Lookup(keys ...string) (value, key string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		k = NormalizeKey(k)
		if v, found := m.entries[k]; found {
			m.used[k] = true
			return v, k, true
		}
	}
	return "", "", false
}

// Unused returns the keys that were never looked up, sorted.
func (m *Mapping) Unused() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.entries {
		if !m.used[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// NormalizeKey collapses repeated slashes and makes the key start with one.
// Keys that are JSON pointers ("#/...") are returned unchanged.
func NormalizeKey(k string) string {
	k = strings.TrimSpace(k)
	if strings.HasPrefix(k, "#") {
		return k
	}
	parts := strings.Split(k, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return "/" + strings.Join(kept, "/")
}
