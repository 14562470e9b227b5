package repository

import (
	"fmt"
	"strings"
	"time"

	"hr-signals/internal/pipeline/dto"
	"hr-signals/pkg/utils"
)

// BuildAnalyzeArticlePrompt builds the per-article analysis prompt.
// Content is truncated to maxInputRunes to bound token cost.
func BuildAnalyzeArticlePrompt(title string, publishedAt time.Time, text string, maxInputRunes int) string {
	return fmt.Sprintf(`You are an expert HR and workforce analyst. Analyze the following article and provide a comprehensive analysis.

Article Title: %s
Published At: %s
Content:
%s

Please provide:
1. A concise executive summary (2-3 sentences, max 500 characters)
2. 3-5 key takeaways (actionable insights)
3. Primary theme classification (one theme name)
4. Secondary themes (up to 2 additional theme names)
5. Geographic region (Global, Australia, Asia Pacific, North America, Europe, UK)
6. Industry sectors mentioned (up to 3)
7. Sentiment label (positive, negative, neutral) and sentiment score (-1.0 to 1.0)
8. Signal strength (0.0 to 1.0): how significant/impactful is this for HR leaders?
9. Confidence score (0.0 to 1.0): how certain are you of this classification?

Respond with JSON only, in this exact shape:
{
  "summary": "...",
  "key_takeaways": ["...", "...", "..."],
  "primary_theme": "...",
  "secondary_themes": ["..."],
  "sectors": ["..."],
  "region": "...",
  "sentiment": "positive",
  "sentiment_score": 0.7,
  "signal_strength": 0.8,
  "confidence_score": 0.9
}`, title, publishedAt.Format(time.RFC3339), utils.TruncateRunes(text, maxInputRunes))
}

// BuildExtractInsightsPrompt builds the cross-article insight prompt
// for one theme group. Only structured projections go in, never raw
// article text.
func BuildExtractInsightsPrompt(theme string, articles []dto.InsightArticle) string {
	var b strings.Builder
	for i, art := range articles {
		b.WriteString(fmt.Sprintf("Article %d: %s\nSummary: %s\nSignal strength: %.2f\n\n",
			i+1, art.Title, art.Summary, art.SignalStrength))
	}

	return fmt.Sprintf(`You are an expert HR strategist. The following recent articles all relate to the theme "%s". Identify 1-3 cross-cutting insights that HR and transformation leaders should know. Do not restate individual articles; find what they mean together.

Articles:
%s
For each insight provide a clear actionable title, a 2-3 sentence description, an impact level (high, medium, low), a time horizon (immediate, short_term, long_term), and a relevance score (0.0 to 1.0).

Respond with JSON only:
{
  "insights": [
    {
      "title": "...",
      "description": "...",
      "impact_level": "high",
      "time_horizon": "short_term",
      "relevance_score": 0.9
    }
  ]
}`, theme, b.String())
}

// BuildDigestPrompt builds the periodic digest prompt from structured
// selections.
func BuildDigestPrompt(period string, stories []dto.DigestStory, trends []dto.DigestTrend, insights []dto.DigestInsight) string {
	var storiesB, trendsB, insightsB strings.Builder
	for _, s := range stories {
		storiesB.WriteString(fmt.Sprintf("- %s (theme: %s, signal: %.2f)\n  %s\n", s.Title, s.PrimaryTheme, s.SignalStrength, s.Summary))
	}
	for _, t := range trends {
		trendsB.WriteString(fmt.Sprintf("- %s (%s, momentum %.2f): %s\n", t.Name, t.Status, t.Momentum, t.Description))
	}
	for _, i := range insights {
		insightsB.WriteString(fmt.Sprintf("- %s [%s]: %s\n", i.Title, i.ImpactLevel, i.Description))
	}

	return fmt.Sprintf(`You are an executive communications expert. Create a %s digest for HR and transformation leaders.

Top Articles:
%s
Emerging Trends:
%s
Key Insights:
%s
Create a compelling executive digest with a punchy title, a 2-paragraph executive summary highlighting the most important developments, the top 3 stories to watch, and 2-3 strategic implications for HR leaders.

Respond with JSON only:
{
  "title": "...",
  "summary": "...",
  "top_stories": ["...", "...", "..."],
  "strategic_implications": ["...", "..."]
}`, period, storiesB.String(), trendsB.String(), insightsB.String())
}
