package screenplay

import "strings"

// headingPrefix pairs a recognized heading prefix (matched case-insensitively)
// with the heading type it establishes. Ordered longest/most-specific first
// so that, e.g., "INT./EXT." is matched before the shorter "INT." prefix
// would otherwise consume part of it.
type headingPrefix struct {
	prefix string
	typ    SceneHeadingType
}

var headingPrefixes = []headingPrefix{
	{"INT./EXT.", HeadingIntExt},
	{"INT/EXT.", HeadingIntExt},
	{"I/E.", HeadingIntExt},
	{"I/E ", HeadingIntExt},
	{"INT.", HeadingInt},
	{"INT ", HeadingInt},
	{"EXT.", HeadingExt},
	{"EXT ", HeadingExt},
}

// timeIndicators are the recognized time-of-day tokens, matched after
// uppercasing the candidate.
var timeIndicators = map[string]bool{
	"DAY": true, "NIGHT": true, "MORNING": true, "AFTERNOON": true,
	"EVENING": true, "DUSK": true, "DAWN": true, "CONTINUOUS": true,
	"LATER": true, "MOMENTS LATER": true, "MIDNIGHT": true, "NOON": true,
	"SAME TIME": true, "SAME": true,
}

// ParseSceneHeading splits a scene heading into its INT/EXT type, location,
// and time-of-day indicator. Type and time are returned uppercased; location
// preserves its original casing.
func ParseSceneHeading(heading string) (typ SceneHeadingType, location string, timeOfDay string) {
	trimmed := strings.TrimSpace(heading)
	upper := strings.ToUpper(trimmed)

	remainder := trimmed
	typ = HeadingNone
	for _, p := range headingPrefixes {
		if strings.HasPrefix(upper, p.prefix) {
			typ = p.typ
			remainder = strings.TrimSpace(trimmed[len(p.prefix):])
			break
		}
	}

	if idx := strings.LastIndex(remainder, " - "); idx >= 0 {
		left := remainder[:idx]
		right := strings.TrimSpace(remainder[idx+len(" - "):])
		if timeIndicators[strings.ToUpper(right)] {
			return typ, left, strings.ToUpper(right)
		}
	}

	return typ, remainder, ""
}
