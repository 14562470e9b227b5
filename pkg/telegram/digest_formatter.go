package telegram

import (
	"fmt"
	"strings"

	"hr-signals/pkg/utils"
)

const maxMessageLen = 4090

// DigestMessage is the subset of a compiled digest that gets posted
// to the operator chat.
type DigestMessage struct {
	Title          string
	Summary        string
	PeriodStart    string
	PeriodEnd      string
	TotalArticles  int
	TopStories     []string
	EmergingTrends []string
}

// FormatDigest renders a compiled digest as a Telegram Markdown
// message, truncated to the Telegram message limit.
func FormatDigest(d DigestMessage) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📰 *%s*\n", d.Title))
	b.WriteString(fmt.Sprintf("_%s — %s_ · %d articles\n\n", d.PeriodStart, d.PeriodEnd, d.TotalArticles))
	b.WriteString(d.Summary)
	b.WriteString("\n")

	if len(d.TopStories) > 0 {
		b.WriteString("\n*Top stories*\n")
		for i, story := range d.TopStories {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, story))
		}
	}

	if len(d.EmergingTrends) > 0 {
		b.WriteString("\n*Emerging trends*\n")
		for _, trend := range d.EmergingTrends {
			b.WriteString(fmt.Sprintf("• %s\n", trend))
		}
	}

	// Rune based so a multi-byte character is never split mid-way.
	return utils.TruncateRunes(b.String(), maxMessageLen)
}
