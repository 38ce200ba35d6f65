// Package posixregex backs the `regexp(pattern, string)` host function (spec §6). Go's regexp
// package is RE2, not byte-for-byte POSIX ERE, but it is the closest standard-library primitive and
// already supports the `(?i)` case-insensitive prefix spec §6 requires, so this wraps it rather than
// importing a third-party engine — no example in the pack ships an importable POSIX/oniguruma
// binding to reach for instead.
package posixregex

import (
	"regexp"
	"sync"
)

// cache avoids recompiling the same pattern on every row a query scans; unbounded, since distinct
// patterns in one query session are expected to be few.
var (
	mu    sync.Mutex
	cache = map[string]*regexp.Regexp{}
)

// Match reports whether s matches pattern, or returns the compile error for an invalid pattern.
// It takes no NULL inputs: the SQL-facing wrapper (pkg/bindings' regexp function) checks for a
// NULL pattern or subject itself and returns SQL NULL without calling Match.
func Match(pattern, s string) (bool, error) {
	re, err := compile(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	mu.Lock()
	defer mu.Unlock()
	if re, ok := cache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	cache[pattern] = re
	return re, nil
}
