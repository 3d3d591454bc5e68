package screenplay

import (
	"regexp"
	"strconv"
	"strings"
)

// headerPattern matches markdown ATX headers: "# Title", "## Title", etc.
var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// bibleSection is an intermediate representation of one heading-delimited
// region of a bible document, before it is linked into a BibleChunk tree.
type bibleSection struct {
	level   int
	heading string
	body    string
}

// ChunkBible splits a bible document's markdown body into an ordered,
// 1-indexed sequence of BibleChunks whose ParentChunkID fields mirror the
// document's heading nesting. A chunk's parent is the nearest preceding
// chunk with a strictly shallower heading level. Content preceding the
// first heading becomes a level-0 chunk, so when it is present it is the
// parent of the top-level headings that follow it; a chunk with no
// shallower predecessor has a nil parent.
//
// Parent references only ever point to earlier chunks in the returned
// slice, so the resulting tree is acyclic by construction.
func ChunkBible(body string) []*BibleChunk {
	sections := splitSections(body)
	if len(sections) == 0 {
		return nil
	}

	chunks := make([]*BibleChunk, 0, len(sections))
	// ancestorByLevel[level] holds the 1-indexed chunk number of the most
	// recent heading at that level, used to find each new chunk's parent.
	ancestorByLevel := make(map[int]int)

	for i, sec := range sections {
		number := i + 1
		var parentID *int64
		for lvl := sec.level - 1; lvl >= 0; lvl-- {
			if n, ok := ancestorByLevel[lvl]; ok {
				id := int64(n)
				parentID = &id
				break
			}
		}

		chunk := &BibleChunk{
			ChunkNumber:   number,
			Heading:       sec.heading,
			Level:         sec.level,
			Content:       sec.body,
			ContentHash:   ComputeSceneHash(sec.body, true),
			ParentChunkID: parentID,
		}
		chunks = append(chunks, chunk)
		ancestorByLevel[sec.level] = number
		// A new heading at level L invalidates any previously recorded
		// descendant levels as ancestors of subsequent siblings.
		for lvl := sec.level + 1; lvl <= 6; lvl++ {
			delete(ancestorByLevel, lvl)
		}
	}

	return chunks
}

// splitSections walks a markdown document line by line, grouping lines
// under the nearest preceding heading. Content before any heading becomes
// a level-0 section with an empty heading.
func splitSections(content string) []bibleSection {
	lines := strings.Split(content, "\n")

	var sections []bibleSection
	var current *bibleSection
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.body = strings.TrimSpace(body.String())
		if current.body != "" || current.heading != "" {
			sections = append(sections, *current)
		}
		body.Reset()
	}

	for _, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			current = &bibleSection{level: level, heading: title}
			continue
		}
		if current == nil {
			current = &bibleSection{level: 0, heading: ""}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return sections
}

// headerLevelString renders a BibleChunk's Level for storage in its
// Metadata map alongside other string-valued analyzer fields.
func headerLevelString(level int) string {
	return strconv.Itoa(level)
}
