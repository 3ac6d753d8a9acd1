package querycmder

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/ctxmem/pkg/retrieval"
	"github.com/papercomputeco/ctxmem/pkg/utils"
)

const previewLimit = 600

// Markdown renders resp as a markdown document.
func Markdown(question string, resp *retrieval.Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", question)
	fmt.Fprintf(&b, "_%s question (confidence %.2f, %s)", resp.QuestionKind, resp.Route.Confidence, resp.Route.Reason)
	if resp.Reranked {
		b.WriteString(", reranked")
	}
	b.WriteString("_\n\n")

	if resp.EvidenceCount == 0 {
		b.WriteString("No matching observations.\n")
		writeMeta(&b, resp)
		return b.String()
	}

	for _, ev := range resp.Evidence {
		title := ev.Title
		if title == "" {
			title = ev.EventType
		}
		fmt.Fprintf(&b, "## %d. %s\n\n", ev.Rank, title)
		fmt.Fprintf(&b, "`%s` · `%s` · %s · session `%s`\n\n", ev.Platform, ev.Project, ev.CreatedAt, ev.SessionID)
		for _, line := range strings.Split(utils.Truncate(ev.Content, previewLimit), "\n") {
			fmt.Fprintf(&b, "> %s\n", line)
		}
		b.WriteString("\n")
	}

	writeMeta(&b, resp)
	return b.String()
}

func writeMeta(b *strings.Builder, resp *retrieval.Response) {
	m := resp.Meta
	b.WriteString("---\n\n")
	if len(m.Platforms) > 0 {
		fmt.Fprintf(b, "- platforms: %s\n", strings.Join(m.Platforms, ", "))
	}
	if len(m.Projects) > 0 {
		fmt.Fprintf(b, "- projects: %s\n", strings.Join(m.Projects, ", "))
	}
	if m.TimeSpan != nil {
		fmt.Fprintf(b, "- span: %s to %s\n", m.TimeSpan.Oldest, m.TimeSpan.Newest)
	}
	if m.CrossSession {
		b.WriteString("- spans multiple sessions\n")
	}
	if m.PrivacyExcluded > 0 {
		fmt.Fprintf(b, "- %d private observation(s) excluded\n", m.PrivacyExcluded)
	}
}
