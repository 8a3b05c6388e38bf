// Package search provides a forward cursor over a block storage's object
// log, constrained by an optional comparator over keys extracted from each
// decoded object. It is the library's only sequential-scan access path; a
// single known address is resolved directly through the storage instead.
package search

// KeyExtractor pulls the comparable key out of a decoded object. What a
// "key" is — a vector, a string, a composite field — is entirely up to the
// caller; search never inspects it beyond handing it to a Comparator.
type KeyExtractor func(obj any) any

// Comparator decides whether an extracted key matches a search's criteria.
// done reports that no later record in the log could possibly match
// either — the short-circuit an ordered storage's search relies on. For
// the unordered append-only log this package scans, done is rarely useful
// and safe to always report false.
type Comparator interface {
	Accepts(key any) (matched, done bool)
}

// KeySet matches any key equal, per Equal, to one of Keys: the match-any-of
// criterion.
type KeySet struct {
	Keys  []any
	Equal func(a, b any) bool
}

func (k KeySet) Accepts(key any) (matched, done bool) {
	for _, want := range k.Keys {
		if k.Equal(key, want) {
			return true, false
		}
	}
	return false, false
}

// KeyInterval matches any key k such that From <= k <= To, per Less.
type KeyInterval struct {
	From, To any
	Less     func(a, b any) bool
}

func (k KeyInterval) Accepts(key any) (matched, done bool) {
	if k.Less(key, k.From) {
		return false, false
	}
	if k.Less(k.To, key) {
		return false, false
	}
	return true, false
}
