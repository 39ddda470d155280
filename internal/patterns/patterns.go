// Package patterns implements the Pattern/Exclusion Service: glob and
// regex matching against file and directory names, with compiled regexes
// memoized in a bounded LRU.
package patterns

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/golang/groupcache/lru"

	"github.com/standardbeagle/samuraizer-go/internal/debug"
)

// regexPrefix marks a pattern as a regular expression rather than a glob.
const regexPrefix = "regex:"

// defaultRegexCacheSize is the LRU bound for compiled regex patterns;
// spec requires a bound of at least 256.
const defaultRegexCacheSize = 256

// Matcher decides whether a name or path matches any of a configured set
// of exclusion patterns (glob or regex:-prefixed).
type Matcher struct {
	mu         sync.Mutex
	regexCache *lru.Cache
	invalid    map[string]bool
}

// NewMatcher returns a Matcher with the default-sized regex LRU.
func NewMatcher() *Matcher {
	return NewMatcherWithCacheSize(defaultRegexCacheSize)
}

// NewMatcherWithCacheSize returns a Matcher with a custom-sized regex LRU;
// size is clamped up to the spec-mandated minimum of 256.
func NewMatcherWithCacheSize(size int) *Matcher {
	if size < defaultRegexCacheSize {
		size = defaultRegexCacheSize
	}
	return &Matcher{
		regexCache: lru.New(size),
		invalid:    make(map[string]bool),
	}
}

// Matches reports whether name (a bare filename) or path (a slash-separated
// relative path) matches any of the given patterns. Any single match wins.
func (m *Matcher) Matches(patterns []string, name, path string) bool {
	for _, p := range patterns {
		if m.matchOne(p, name, path) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchOne(pattern, name, path string) bool {
	if strings.HasPrefix(pattern, regexPrefix) {
		return m.matchRegex(strings.TrimPrefix(pattern, regexPrefix), name, path)
	}
	return m.matchGlob(pattern, name, path)
}

func (m *Matcher) matchGlob(pattern, name, path string) bool {
	if matched, _ := filepath.Match(pattern, name); matched {
		return true
	}
	if matched, _ := doublestar.Match(pattern, path); matched {
		return true
	}
	return false
}

func (m *Matcher) matchRegex(pattern, name, path string) bool {
	re, ok := m.compile(pattern)
	if !ok {
		return false
	}
	return re.MatchString(name) || re.MatchString(path)
}

func (m *Matcher) compile(pattern string) (*regexp.Regexp, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.invalid[pattern] {
		return nil, false
	}
	if v, ok := m.regexCache.Get(pattern); ok {
		return v.(*regexp.Regexp), true
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		debug.LogWalker("invalid exclude pattern %q: %v (treating as non-matching)", pattern, err)
		m.invalid[pattern] = true
		return nil, false
	}

	m.regexCache.Add(pattern, re)
	return re, true
}
