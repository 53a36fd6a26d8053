package core

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Placeholder names recognised in regex templates.
const (
	PlaceholderToolNumber = "tool_number"
	PlaceholderToolColumn = "tool_column"
	PlaceholderSourceRoot = "source_root"
	PlaceholderTargetRoot = "target_root"
)

// Substitute replaces every {name} placeholder in template with its value.
// Values are inserted verbatim; unknown placeholders are left untouched.
func Substitute(template string, subs map[string]string) string {
	if len(subs) == 0 {
		return template
	}
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", subs[k])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// PatternCache memoizes compiled patterns keyed by template and substitution set.
// Safe for concurrent use.
type PatternCache struct {
	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// NewPatternCache creates an empty cache.
func NewPatternCache() *PatternCache {
	return &PatternCache{compiled: make(map[string]*regexp.Regexp)}
}

// Compile substitutes subs into template and returns the compiled pattern, reusing
// a previous compilation of the same (template, subs) pair.
func (c *PatternCache) Compile(template string, subs map[string]string) (*regexp.Regexp, error) {
	key := cacheKey(template, subs)

	c.mu.Lock()
	if re, ok := c.compiled[key]; ok {
		c.mu.Unlock()
		return re, nil
	}
	c.mu.Unlock()

	re, err := regexp.Compile(Substitute(template, subs))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.compiled[key]; ok {
		return existing, nil
	}
	c.compiled[key] = re
	return re, nil
}

// Len returns the number of cached patterns.
func (c *PatternCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.compiled)
}

// Reset drops every cached pattern.
func (c *PatternCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compiled = make(map[string]*regexp.Regexp)
}

func cacheKey(template string, subs map[string]string) string {
	keys := make([]string, 0, len(subs))
	for k := range subs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(template)
	for _, k := range keys {
		sb.WriteByte(0)
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(subs[k])
	}
	return sb.String()
}
