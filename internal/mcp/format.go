package mcp

import (
	"fmt"
	"strings"

	"github.com/trieloff/scriptrag/internal/search"
)

// FormatSearchResults formats a query planner result as markdown.
func FormatSearchResults(query string, result *search.Result) string {
	if result == nil || (len(result.Scenes) == 0 && len(result.Bibles) == 0) {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Found %d scene", len(result.Scenes))
	if len(result.Scenes) != 1 {
		sb.WriteString("s")
	}
	if len(result.Bibles) > 0 {
		fmt.Fprintf(&sb, " and %d bible passage", len(result.Bibles))
		if len(result.Bibles) != 1 {
			sb.WriteString("s")
		}
	}
	fmt.Fprintf(&sb, " (of %d total match", result.Total)
	if result.Total != 1 {
		sb.WriteString("es")
	}
	fmt.Fprintf(&sb, ") via %s\n\n", strings.Join(result.Methods, "+"))

	for i, r := range result.Scenes {
		formatSceneResult(&sb, i+1, r)
	}
	for i, r := range result.Bibles {
		formatBibleResult(&sb, i+1, r)
	}

	return sb.String()
}

func formatSceneResult(sb *strings.Builder, num int, r search.SceneResult) {
	fmt.Fprintf(sb, "### %d. %s #%d — %s (score: %.2f, match: %s",
		num, r.Script.Title, r.Scene.SceneNumber, r.Scene.Heading, r.Score, r.MatchKind)
	if r.FromVector {
		sb.WriteString(", semantic")
	}
	sb.WriteString(")\n\n")
	fmt.Fprintf(sb, "```fountain\n%s\n```\n\n", r.Scene.Content)
}

func formatBibleResult(sb *strings.Builder, num int, r search.BibleResult) {
	fmt.Fprintf(sb, "### %d. %s — %s (score: %.2f)\n\n", num, r.Script.Title, r.Chunk.Heading, r.Score)
	sb.WriteString(r.Chunk.Content)
	sb.WriteString("\n\n---\n\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// sceneResultOutput is the JSON-shaped form of a search.SceneResult returned
// by the search tool.
type sceneResultOutput struct {
	Project     string  `json:"project"`
	SceneNumber int     `json:"scene_number"`
	Heading     string  `json:"heading"`
	Content     string  `json:"content"`
	Score       float64 `json:"score"`
	MatchKind   string  `json:"match_kind"`
	FromVector  bool    `json:"from_vector"`
}

// bibleResultOutput is the JSON-shaped form of a search.BibleResult.
type bibleResultOutput struct {
	Project string  `json:"project"`
	Heading string  `json:"heading"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

func toSceneResultOutput(r search.SceneResult) sceneResultOutput {
	return sceneResultOutput{
		Project:     r.Script.Title,
		SceneNumber: r.Scene.SceneNumber,
		Heading:     r.Scene.Heading,
		Content:     r.Scene.Content,
		Score:       r.Score,
		MatchKind:   r.MatchKind,
		FromVector:  r.FromVector,
	}
}

func toBibleResultOutput(r search.BibleResult) bibleResultOutput {
	return bibleResultOutput{
		Project: r.Script.Title,
		Heading: r.Chunk.Heading,
		Content: r.Chunk.Content,
		Score:   r.Score,
	}
}
