package config

import (
	"fmt"
	"time"

	"hr-signals/pkg/config"
)

// SourceSeed is one configured content source.
type SourceSeed struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Category string `mapstructure:"category"`
	Active   *bool  `mapstructure:"active"`
}

// ThemeSeed is one canonical theme with its classification keywords.
type ThemeSeed struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Keywords    []string `mapstructure:"keywords"`
	Color       string   `mapstructure:"color"`
}

// SectorSeed is one canonical industry sector.
type SectorSeed struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Keywords    []string `mapstructure:"keywords"`
}

// Fetcher holds fetch-stage tuning.
type Fetcher struct {
	MaxConcurrent      int           `mapstructure:"max_concurrent"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
	MaxItemsPerSource  int           `mapstructure:"max_items_per_source"`
	MaxDocumentAgeDays int           `mapstructure:"max_document_age_days"`
	MinContentLength   int           `mapstructure:"min_content_length"`
	UserAgent          string        `mapstructure:"user_agent"`
}

// Dedup holds deduplication thresholds.
type Dedup struct {
	SimilarityThreshold  float64 `mapstructure:"similarity_threshold"`
	FingerprintPrefixLen int     `mapstructure:"fingerprint_prefix_len"`
	RecentWindowDays     int     `mapstructure:"recent_window_days"`
}

// Analyzer holds the retry and concurrency policy around the external
// analysis capability.
type Analyzer struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffMax    time.Duration `mapstructure:"backoff_max"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	MaxSummaryLen int           `mapstructure:"max_summary_len"`
	MaxInputRunes int           `mapstructure:"max_input_runes"`
}

// Classifier holds the vocabulary-matching thresholds.
type Classifier struct {
	MinKeywordOverlap       int     `mapstructure:"min_keyword_overlap"`
	FeaturedSignalThreshold float64 `mapstructure:"featured_signal_threshold"`
	FeaturedConfidenceMin   float64 `mapstructure:"featured_confidence_min"`
}

// Trend holds the momentum formula parameters. Defaults are empirical
// and documented in DESIGN.md.
type Trend struct {
	WindowDays             int     `mapstructure:"window_days"`
	EmergingMomentum       float64 `mapstructure:"emerging_momentum"`
	EmergingMaxArticles    int     `mapstructure:"emerging_max_articles"`
	GrowingMomentum        float64 `mapstructure:"growing_momentum"`
	PeakBand               float64 `mapstructure:"peak_band"`
	DecliningMomentum      float64 `mapstructure:"declining_momentum"`
	DataPointRetentionDays int     `mapstructure:"data_point_retention_days"`
}

// Insight holds insight-extraction tuning.
type Insight struct {
	MinGroupSize             int           `mapstructure:"min_group_size"`
	SoloSignalThreshold      float64       `mapstructure:"solo_signal_threshold"`
	MaxArticlesPerGroup      int           `mapstructure:"max_articles_per_group"`
	DedupWindowDays          int           `mapstructure:"dedup_window_days"`
	TitleSimilarityThreshold float64       `mapstructure:"title_similarity_threshold"`
	BatchWindow              time.Duration `mapstructure:"batch_window"`
}

// Digest holds digest-compilation tuning.
type Digest struct {
	TopStories  int `mapstructure:"top_stories"`
	MaxTrends   int `mapstructure:"max_trends"`
	MaxInsights int `mapstructure:"max_insights"`
}

// Scheduler holds the cron expressions for the periodic runs.
type Scheduler struct {
	ScrapeCron       string        `mapstructure:"scrape_cron"`
	DailyDigestCron  string        `mapstructure:"daily_digest_cron"`
	WeeklyDigestCron string        `mapstructure:"weekly_digest_cron"`
	CleanupCron      string        `mapstructure:"cleanup_cron"`
	RunLockTTL       time.Duration `mapstructure:"run_lock_ttl"`
	Timezone         string        `mapstructure:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC on
// an empty or unknown name.
func (s Scheduler) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	BaseURL             string `mapstructure:"base_url"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Config holds the full configuration for the pipeline service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Telegram config.Telegram `mapstructure:"telegram"`

	Sources []SourceSeed `mapstructure:"sources"`
	Themes  []ThemeSeed  `mapstructure:"themes"`
	Sectors []SectorSeed `mapstructure:"sectors"`

	Fetcher    Fetcher    `mapstructure:"fetcher"`
	Dedup      Dedup      `mapstructure:"dedup"`
	Analyzer   Analyzer   `mapstructure:"analyzer"`
	Classifier Classifier `mapstructure:"classifier"`
	Trend      Trend      `mapstructure:"trend"`
	Insight    Insight    `mapstructure:"insight"`
	Digest     Digest     `mapstructure:"digest"`
	Scheduler  Scheduler  `mapstructure:"scheduler"`
	Gemini     Gemini     `mapstructure:"gemini"`
}

// Load loads the pipeline configuration from the given path and fills
// in defaults for unset thresholds.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Fetcher.MaxConcurrent == 0 {
		c.Fetcher.MaxConcurrent = 4
	}
	if c.Fetcher.RequestTimeout == 0 {
		c.Fetcher.RequestTimeout = 30 * time.Second
	}
	if c.Fetcher.RequestsPerMinute == 0 {
		c.Fetcher.RequestsPerMinute = 30
	}
	if c.Fetcher.MaxItemsPerSource == 0 {
		c.Fetcher.MaxItemsPerSource = 20
	}
	if c.Fetcher.MaxDocumentAgeDays == 0 {
		c.Fetcher.MaxDocumentAgeDays = 7
	}
	if c.Fetcher.MinContentLength == 0 {
		c.Fetcher.MinContentLength = 100
	}
	if c.Fetcher.UserAgent == "" {
		c.Fetcher.UserAgent = "hr-signals-bot/1.0"
	}

	if c.Dedup.SimilarityThreshold == 0 {
		c.Dedup.SimilarityThreshold = 0.85
	}
	if c.Dedup.FingerprintPrefixLen == 0 {
		c.Dedup.FingerprintPrefixLen = 300
	}
	if c.Dedup.RecentWindowDays == 0 {
		c.Dedup.RecentWindowDays = 14
	}

	if c.Analyzer.MaxConcurrent == 0 {
		c.Analyzer.MaxConcurrent = 5
	}
	if c.Analyzer.MaxAttempts == 0 {
		c.Analyzer.MaxAttempts = 3
	}
	if c.Analyzer.BackoffBase == 0 {
		c.Analyzer.BackoffBase = 2 * time.Second
	}
	if c.Analyzer.BackoffMax == 0 {
		c.Analyzer.BackoffMax = 30 * time.Second
	}
	if c.Analyzer.CallTimeout == 0 {
		c.Analyzer.CallTimeout = 90 * time.Second
	}
	if c.Analyzer.MaxSummaryLen == 0 {
		c.Analyzer.MaxSummaryLen = 500
	}
	if c.Analyzer.MaxInputRunes == 0 {
		c.Analyzer.MaxInputRunes = 5000
	}

	if c.Classifier.MinKeywordOverlap == 0 {
		c.Classifier.MinKeywordOverlap = 1
	}
	if c.Classifier.FeaturedSignalThreshold == 0 {
		c.Classifier.FeaturedSignalThreshold = 0.8
	}
	if c.Classifier.FeaturedConfidenceMin == 0 {
		c.Classifier.FeaturedConfidenceMin = 0.6
	}

	if c.Trend.WindowDays == 0 {
		c.Trend.WindowDays = 7
	}
	if c.Trend.EmergingMomentum == 0 {
		c.Trend.EmergingMomentum = 0.5
	}
	if c.Trend.EmergingMaxArticles == 0 {
		c.Trend.EmergingMaxArticles = 10
	}
	if c.Trend.GrowingMomentum == 0 {
		c.Trend.GrowingMomentum = 0.25
	}
	if c.Trend.PeakBand == 0 {
		c.Trend.PeakBand = 0.1
	}
	if c.Trend.DecliningMomentum == 0 {
		c.Trend.DecliningMomentum = -0.25
	}
	if c.Trend.DataPointRetentionDays == 0 {
		c.Trend.DataPointRetentionDays = 90
	}

	if c.Insight.MinGroupSize == 0 {
		c.Insight.MinGroupSize = 3
	}
	if c.Insight.SoloSignalThreshold == 0 {
		c.Insight.SoloSignalThreshold = 0.85
	}
	if c.Insight.MaxArticlesPerGroup == 0 {
		c.Insight.MaxArticlesPerGroup = 10
	}
	if c.Insight.DedupWindowDays == 0 {
		c.Insight.DedupWindowDays = 14
	}
	if c.Insight.TitleSimilarityThreshold == 0 {
		c.Insight.TitleSimilarityThreshold = 0.8
	}
	if c.Insight.BatchWindow == 0 {
		c.Insight.BatchWindow = 7 * 24 * time.Hour
	}

	if c.Digest.TopStories == 0 {
		c.Digest.TopStories = 10
	}
	if c.Digest.MaxTrends == 0 {
		c.Digest.MaxTrends = 5
	}
	if c.Digest.MaxInsights == 0 {
		c.Digest.MaxInsights = 5
	}

	if c.Scheduler.ScrapeCron == "" {
		c.Scheduler.ScrapeCron = "0 */6 * * *"
	}
	if c.Scheduler.DailyDigestCron == "" {
		c.Scheduler.DailyDigestCron = "0 8 * * *"
	}
	if c.Scheduler.WeeklyDigestCron == "" {
		c.Scheduler.WeeklyDigestCron = "0 9 * * 1"
	}
	if c.Scheduler.CleanupCron == "" {
		c.Scheduler.CleanupCron = "0 3 * * *"
	}
	if c.Scheduler.RunLockTTL == 0 {
		c.Scheduler.RunLockTTL = time.Hour
	}

	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}
	if c.Gemini.MaxRequestPerMinute == 0 {
		c.Gemini.MaxRequestPerMinute = 10
	}
	if c.Gemini.MaxTokenPerMinute == 0 {
		c.Gemini.MaxTokenPerMinute = 250000
	}
}

func (c *Config) validate() error {
	if len(c.Themes) == 0 {
		return fmt.Errorf("config: at least one theme is required")
	}
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("config: dedup.similarity_threshold must be in (0, 1]")
	}
	if c.Analyzer.MaxAttempts < 1 {
		return fmt.Errorf("config: analyzer.max_attempts must be at least 1")
	}
	return nil
}
