package runner

import (
	"path"

	"github.com/abdul-hamid-achik/apiharness/packages/testdata"
)

// matchesPattern matches name against a glob such as "create_*". A malformed
// pattern only matches the identical name.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		return name == pattern
	}
	return ok
}

func hasAnyTag(tc *testdata.TestCase, filters []string) bool {
	for _, filter := range filters {
		if tc.HasTag(filter) {
			return true
		}
	}
	return false
}

// skipReason returns why tc should not run, or "" when it should.
func (r *Runner) skipReason(tc *testdata.TestCase) string {
	if tc.Skip != "" {
		return tc.Skip
	}
	if r.config.NameFilter != "" && !matchesPattern(tc.Name, r.config.NameFilter) {
		return "filtered out by name"
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(tc, r.config.TagsFilter) {
		return "filtered out by tags"
	}
	return ""
}
