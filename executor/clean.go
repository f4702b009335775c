package executor

import (
	"regexp"
	"strings"
)

const commentPrefix = "// "

// selfImports match the two ways a rule file imports the capability module
// whose members are already globals.
var selfImports = []*regexp.Regexp{
	regexp.MustCompile(`(?i)import danger `),
	regexp.MustCompile(`(?i)import \{ danger`),
}

// CleanScriptSource comments out self-imports of the capability module.
// Matches already preceded by "// " are left alone, so applying it twice is
// the same as applying it once. Nothing else in src changes.
func CleanScriptSource(src string) string {
	for _, re := range selfImports {
		src = commentOut(src, re)
	}
	return src
}

func commentOut(src string, re *regexp.Regexp) string {
	matches := re.FindAllStringIndex(src, -1)
	if len(matches) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src) + len(matches)*len(commentPrefix))

	last := 0
	for _, m := range matches {
		start := m[0]
		b.WriteString(src[last:start])
		if !strings.HasSuffix(src[:start], commentPrefix) {
			b.WriteString(commentPrefix)
		}
		last = start
	}
	b.WriteString(src[last:])
	return b.String()
}
