// Package exclude implements the scanner's built-in ignore-glob filter,
// consulted before order=script/similarity so excluded paths never reach
// the segmenter (spec.md §1 lists the filter/ordering plug-in as the only
// in-scope user-extensible filter, but a builder still needs a basic
// built-in ignore list for the common case).
//
// Grounded on kloset's exclude package (RuleSet/Rule shape, AddRule/Match/
// IsExcluded API, gitignore-style '!' negation and trailing-'/' dir-only
// rules); glob compilation is swapped from kloset's doublestar+regexp pair
// to gobwas/glob, kloset's own (otherwise-indirect) glob dependency.
package exclude

import (
	"path"
	"strings"

	"github.com/gobwas/glob"
)

// Rule is one compiled ignore pattern.
type Rule struct {
	Raw      string
	Negate   bool // '!' prefix: a later match un-excludes a path
	DirOnly  bool // trailing '/': only matches directories
	anchored bool // '/' elsewhere in the pattern: matches the full path, not just the basename
	g        glob.Glob
}

// ParseRule compiles pattern into a Rule, following gitignore conventions:
// a leading '!' negates, a trailing '/' restricts the rule to directories,
// and '/' elsewhere anchors the pattern to the rule set's root rather than
// matching at any depth.
//
// Unanchored patterns are matched against the path's basename only, rather
// than compiled with a "**/" prefix: gobwas/glob's "**" (unlike doublestar's)
// does not also match zero leading path segments, so "**/tmp" would fail to
// match the bare top-level path "tmp".
func ParseRule(pattern string) (*Rule, error) {
	r := &Rule{Raw: pattern}

	if strings.HasPrefix(pattern, "!") {
		r.Negate = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") && pattern != "/" {
		r.DirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}

	r.anchored = strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "/")

	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}
	r.g = g
	return r, nil
}

func (r *Rule) matches(p string) bool {
	if r.anchored {
		return r.g.Match(p)
	}
	return r.g.Match(path.Base(p))
}

// RuleSet is an ordered list of Rules; later rules override earlier ones
// for the same path, matching gitignore semantics.
type RuleSet struct {
	Rules []*Rule
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// AddRule parses and appends one pattern.
func (rs *RuleSet) AddRule(pattern string) error {
	r, err := ParseRule(pattern)
	if err != nil {
		return err
	}
	rs.Rules = append(rs.Rules, r)
	return nil
}

// AddRules parses and appends every non-blank, non-comment line in lines.
func (rs *RuleSet) AddRules(lines []string) error {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := rs.AddRule(line); err != nil {
			return err
		}
	}
	return nil
}

// IsExcluded reports whether path (slash-separated, relative to the scan
// root) should be skipped, applying rules in order so a later rule can
// negate an earlier exclusion.
func (rs *RuleSet) IsExcluded(path string, isDir bool) bool {
	excluded := false
	for _, r := range rs.Rules {
		if r.DirOnly && !isDir {
			continue
		}
		if r.matches(path) {
			excluded = !r.Negate
		}
	}
	return excluded
}
