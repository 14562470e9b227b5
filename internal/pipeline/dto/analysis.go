package dto

import "fmt"

// AnalysisResult is the structured result of analyzing one article.
// Theme and sector guesses are free text; the classifier maps them
// onto the canonical vocabulary.
type AnalysisResult struct {
	Summary               string   `json:"summary"`
	KeyTakeaways          []string `json:"key_takeaways"`
	PrimaryThemeGuess     string   `json:"primary_theme"`
	SecondaryThemeGuesses []string `json:"secondary_themes"`
	SectorGuesses         []string `json:"sectors"`
	Region                string   `json:"region"`
	SentimentLabel        string   `json:"sentiment"`
	SentimentScore        float64  `json:"sentiment_score"`
	SignalStrength        float64  `json:"signal_strength"`
	ConfidenceScore       float64  `json:"confidence_score"`
}

// Validate checks that every required field is present and in range.
// A failing result is treated like a malformed response and retried.
func (r *AnalysisResult) Validate() error {
	if r.Summary == "" {
		return fmt.Errorf("analysis result: summary is empty")
	}
	if len(r.KeyTakeaways) < 3 || len(r.KeyTakeaways) > 5 {
		return fmt.Errorf("analysis result: expected 3-5 key takeaways, got %d", len(r.KeyTakeaways))
	}
	switch r.SentimentLabel {
	case "positive", "neutral", "negative":
	default:
		return fmt.Errorf("analysis result: invalid sentiment label %q", r.SentimentLabel)
	}
	if r.SentimentScore < -1 || r.SentimentScore > 1 {
		return fmt.Errorf("analysis result: sentiment_score %.2f out of [-1, 1]", r.SentimentScore)
	}
	if r.SignalStrength < 0 || r.SignalStrength > 1 {
		return fmt.Errorf("analysis result: signal_strength %.2f out of [0, 1]", r.SignalStrength)
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return fmt.Errorf("analysis result: confidence_score %.2f out of [0, 1]", r.ConfidenceScore)
	}
	return nil
}

// InsightArticle is the structured projection of an article that the
// insight extraction prompt receives. Raw text never goes in.
type InsightArticle struct {
	ID             uint    `json:"id"`
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	PrimaryTheme   string  `json:"primary_theme"`
	SignalStrength float64 `json:"signal_strength"`
}

// InsightResult is one candidate insight produced from a theme group.
type InsightResult struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ImpactLevel    string  `json:"impact_level"`
	TimeHorizon    string  `json:"time_horizon"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Validate checks the insight enums and score range.
func (r *InsightResult) Validate() error {
	if r.Title == "" || r.Description == "" {
		return fmt.Errorf("insight result: title and description are required")
	}
	switch r.ImpactLevel {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("insight result: invalid impact_level %q", r.ImpactLevel)
	}
	switch r.TimeHorizon {
	case "immediate", "short_term", "long_term":
	default:
		return fmt.Errorf("insight result: invalid time_horizon %q", r.TimeHorizon)
	}
	if r.RelevanceScore < 0 || r.RelevanceScore > 1 {
		return fmt.Errorf("insight result: relevance_score %.2f out of [0, 1]", r.RelevanceScore)
	}
	return nil
}

// DigestStory, DigestTrend, DigestInsight are the structured
// selections fed to digest summarization.
type DigestStory struct {
	Title          string  `json:"title"`
	Summary        string  `json:"summary"`
	PrimaryTheme   string  `json:"primary_theme"`
	SignalStrength float64 `json:"signal_strength"`
}

type DigestTrend struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	Momentum    float64 `json:"momentum"`
}

type DigestInsight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImpactLevel string `json:"impact_level"`
}

// DigestSummaryResult is the generated digest content.
type DigestSummaryResult struct {
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	TopStories   []string `json:"top_stories"`
	KeyTakeaways []string `json:"strategic_implications"`
}

// Validate checks the generated digest content.
func (r *DigestSummaryResult) Validate() error {
	if r.Title == "" || r.Summary == "" {
		return fmt.Errorf("digest result: title and summary are required")
	}
	return nil
}
