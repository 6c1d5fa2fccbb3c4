package generator

import "strings"

// cleanMarkdownOutput strips a code fence the model may wrap its answer in.
func cleanMarkdownOutput(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```markdown", "```md", "```"} {
		if strings.HasPrefix(text, fence) && strings.HasSuffix(text, "```") && len(text) > len(fence)+3 {
			text = strings.TrimSuffix(strings.TrimPrefix(text, fence), "```")
			break
		}
	}
	return strings.TrimSpace(text)
}
