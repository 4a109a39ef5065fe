package heap

import "sync"

// Interner is the JVM's string constant pool (JLS 3.10.5): a table from a
// string's content to the single canonical String oop representing it.
// Grounded on SPEC_FULL.md §4.6.1's resolution of the char[] GC carve-out
// in original_source/string_pool.cpp (which never sweeps dead entries
// because RexVM's GC special-cases char[] arrays to always survive
// collection — a carve-out this transform does not replicate): entries
// here are plain map values the collector's Sweep pass prunes like any
// other reachability check, via the Sweep hook below, so string interning
// never leaks.
type Interner struct {
	mu      sync.Mutex
	entries map[string]*Oop
}

func NewInterner() *Interner {
	return &Interner{entries: make(map[string]*Oop)}
}

// Intern returns the canonical oop for s, allocating one via makeString
// on first occurrence.
func (in *Interner) Intern(s string, makeString func(string) (*Oop, error)) (*Oop, error) {
	in.mu.Lock()
	if existing, ok := in.entries[s]; ok {
		in.mu.Unlock()
		return existing, nil
	}
	in.mu.Unlock()

	oop, err := makeString(s)
	if err != nil {
		return nil, err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if existing, ok := in.entries[s]; ok {
		// Lost a race with another thread interning the same literal;
		// the loser's oop is simply discarded to the collector.
		return existing, nil
	}
	in.entries[s] = oop
	return oop, nil
}

// Sweep drops intern-table entries whose oop didn't survive the most
// recent mark phase, called by the collector as part of its sweep step
// (see gc.go) so the intern pool never pins dead strings.
func (in *Interner) Sweep() {
	in.mu.Lock()
	defer in.mu.Unlock()
	for k, o := range in.entries {
		if !o.mark {
			delete(in.entries, k)
		}
	}
}

// Len reports the current number of interned strings, for diagnostics.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.entries)
}
