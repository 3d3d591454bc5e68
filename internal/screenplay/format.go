package screenplay

import "strings"

// FormatForEmbedding produces the deterministic text sent to the embedding
// provider for a scene. Two scenes with the same content hash always
// produce the same string, because the boneyard block — the only thing a
// re-annotation run can change — is stripped before either branch below is
// reached.
func FormatForEmbedding(scene *Scene) string {
	if scene.OriginalText != "" {
		return StripBoneyard(scene.OriginalText)
	}

	var b strings.Builder
	wrote := false

	if scene.Heading != "" {
		b.WriteString("Scene: ")
		b.WriteString(scene.Heading)
		wrote = true
	}

	var actionLines []string
	for _, a := range scene.Action {
		if strings.TrimSpace(a.Text) != "" {
			actionLines = append(actionLines, a.Text)
		}
	}
	if len(actionLines) > 0 {
		if wrote {
			b.WriteString("\n")
		}
		b.WriteString("Action: ")
		b.WriteString(strings.Join(actionLines, " "))
		wrote = true
	}

	for _, d := range scene.Dialogue {
		if wrote {
			b.WriteString("\n")
		}
		b.WriteString(strings.ToUpper(d.Character))
		b.WriteString(": ")
		b.WriteString(d.Text)
		wrote = true
	}

	if !wrote {
		return scene.Content
	}
	return b.String()
}

// FormatForPrompt produces a human-readable, sectioned rendering of a scene
// for agent consumption. Every non-empty structured field appears exactly
// once, in heading/action/dialogue order.
func FormatForPrompt(scene *Scene) string {
	var sections []string

	if scene.Heading != "" {
		sections = append(sections, scene.Heading)
	}

	if len(scene.Action) > 0 {
		var lines []string
		for _, a := range scene.Action {
			if strings.TrimSpace(a.Text) != "" {
				lines = append(lines, a.Text)
			}
		}
		if len(lines) > 0 {
			sections = append(sections, strings.Join(lines, "\n"))
		}
	}

	for _, d := range scene.Dialogue {
		if strings.TrimSpace(d.Text) == "" {
			continue
		}
		sections = append(sections, strings.ToUpper(d.Character)+"\n"+d.Text)
	}

	return strings.Join(sections, "\n\n")
}
