package screenplay

import "strings"

// recognizedHeadingPrefixes are the prefixes (case-insensitive, after
// leading whitespace is stripped) that qualify text as beginning with a
// scene heading.
var recognizedHeadingPrefixes = []string{
	"INT./EXT.", "INT/EXT.", "I/E.", "I/E ", "INT.", "EXT.",
}

// HasSceneHeading reports whether content begins with one of the
// recognized scene-heading prefixes, after stripping leading whitespace.
// This is the editor's only structural validation of new scene content —
// deeper Fountain validation is delegated to an external collaborator.
func HasSceneHeading(content string) bool {
	trimmed := strings.TrimSpace(content)
	upper := strings.ToUpper(trimmed)
	for _, p := range recognizedHeadingPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}
