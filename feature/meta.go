package feature

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMeta marks tests unskippable by matching "suite/test" against glob
// patterns.
type PatternMeta struct {
	suite    string
	patterns []string
}

func NewPatternMeta(suite string, patterns []string) PatternMeta {
	return PatternMeta{suite: suite, patterns: patterns}
}

func (m PatternMeta) Key() string { return m.suite }

func (m PatternMeta) Checker() UnskippableChecker {
	var own []string
	for _, p := range m.patterns {
		if !doublestar.ValidatePattern(p) {
			continue
		}
		own = append(own, p)
	}
	return patternChecker{suite: m.suite, patterns: own}
}

type patternChecker struct {
	suite    string
	patterns []string
}

func (c patternChecker) Unskippable(test string) bool {
	name := path.Join(c.suite, test)
	for _, p := range c.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
