package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/ratelimit"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiAIRepository implements AIRepository against the Google Gemini
// API. Request and token budgets are enforced here; retry policy is
// the analyzer service's job.
type geminiAIRepository struct {
	client         *http.Client
	cfg            *config.Config
	logger         *logger.Logger
	tokenLimiter   *ratelimit.TokenLimiter
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

// NewGeminiAIRepository creates a new instance of geminiAIRepository.
func NewGeminiAIRepository(cfg *config.Config, log *logger.Logger, genAiClient *genai.Client) (AIRepository, error) {
	secondsPerRequest := time.Minute / time.Duration(cfg.Gemini.MaxRequestPerMinute)
	requestLimiter := rate.NewLimiter(rate.Every(secondsPerRequest), 1)
	tokenLimiter := ratelimit.NewTokenLimiter(cfg.Gemini.MaxTokenPerMinute)

	return &geminiAIRepository{
		client: &http.Client{
			Timeout: cfg.Analyzer.CallTimeout,
		},
		cfg:            cfg,
		logger:         log,
		requestLimiter: requestLimiter,
		tokenLimiter:   tokenLimiter,
		genAiClient:    genAiClient,
	}, nil
}

// AnalyzeArticle runs the per-article analysis prompt.
func (r *geminiAIRepository) AnalyzeArticle(ctx context.Context, title string, publishedAt time.Time, text string) (*dto.AnalysisResult, error) {
	prompt := BuildAnalyzeArticlePrompt(title, publishedAt, text, r.cfg.Analyzer.MaxInputRunes)

	geminiResp, err := r.executeGeminiRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.AnalysisResult
	if err := r.decodeCandidate(geminiResp, &result); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrAnalysisValidation, err)
	}
	return &result, nil
}

// ExtractInsights runs the cross-article insight prompt for one theme
// group.
func (r *geminiAIRepository) ExtractInsights(ctx context.Context, theme string, articles []dto.InsightArticle) ([]dto.InsightResult, error) {
	prompt := BuildExtractInsightsPrompt(theme, articles)

	geminiResp, err := r.executeGeminiRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var envelope dto.InsightsEnvelope
	if err := r.decodeCandidate(geminiResp, &envelope); err != nil {
		return nil, err
	}
	for i := range envelope.Insights {
		if err := envelope.Insights[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", dto.ErrAnalysisValidation, err)
		}
	}
	return envelope.Insights, nil
}

// SummarizeDigest generates the digest text from structured
// selections only.
func (r *geminiAIRepository) SummarizeDigest(ctx context.Context, period string, stories []dto.DigestStory, trends []dto.DigestTrend, insights []dto.DigestInsight) (*dto.DigestSummaryResult, error) {
	prompt := BuildDigestPrompt(period, stories, trends, insights)

	geminiResp, err := r.executeGeminiRequest(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var result dto.DigestSummaryResult
	if err := r.decodeCandidate(geminiResp, &result); err != nil {
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dto.ErrAnalysisValidation, err)
	}
	return &result, nil
}

func (r *geminiAIRepository) executeGeminiRequest(ctx context.Context, prompt string) (*dto.GeminiAPIResponse, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, "user"),
	}
	tokenResp, err := r.genAiClient.Models.CountTokens(ctx, r.cfg.Gemini.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count tokens: %v", dto.ErrAnalysisTransient, err)
	}

	r.logger.Debug("Gemini token count",
		logger.IntField("total_tokens", int(tokenResp.TotalTokens)),
		logger.IntField("remaining", r.tokenLimiter.GetRemaining()),
	)

	if err := r.tokenLimiter.Wait(ctx, int(tokenResp.TotalTokens)); err != nil {
		return nil, fmt.Errorf("failed to wait for token limit: %w", err)
	}
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	payload := dto.GeminiAPIRequest{
		Contents: []dto.Content{{Parts: []dto.Part{{Text: prompt}}}},
	}
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", r.cfg.Gemini.BaseURL, r.cfg.Gemini.Model, r.cfg.Gemini.APIKey)
	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", dto.ErrAnalysisTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		r.logger.Error("Received non-OK response from Gemini API",
			logger.IntField("status_code", resp.StatusCode),
		)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: gemini status %d: %s", dto.ErrAnalysisTransient, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: gemini status %d: %s", dto.ErrAnalysisValidation, resp.StatusCode, string(body))
	}

	var geminiResp dto.GeminiAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response body: %v", dto.ErrAnalysisValidation, err)
	}
	return &geminiResp, nil
}

// decodeCandidate unwraps the first candidate's text, strips markdown
// fencing, and unmarshals it into out.
func (r *geminiAIRepository) decodeCandidate(resp *dto.GeminiAPIResponse, out interface{}) error {
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("%w: no content found in Gemini response", dto.ErrAnalysisValidation)
	}

	jsonString := resp.Candidates[0].Content.Parts[0].Text
	jsonString = strings.Trim(jsonString, "`json\n`")

	if err := json.Unmarshal([]byte(jsonString), out); err != nil {
		r.logger.Error("Failed to unmarshal Gemini response", logger.ErrorField(err), logger.StringField("response", jsonString))
		return fmt.Errorf("%w: %v", dto.ErrAnalysisValidation, err)
	}
	return nil
}
