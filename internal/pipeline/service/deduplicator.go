package service

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	"hr-signals/internal/entity"
	"hr-signals/internal/pipeline/config"
	"hr-signals/internal/pipeline/dto"
	"hr-signals/internal/pipeline/repository"
	"hr-signals/pkg/logger"
	"hr-signals/pkg/utils"

	gocache "github.com/patrickmn/go-cache"
)

// DedupStats reports the outcome of one admission pass. Rejected
// counts documents missing required fields, not duplicates.
type DedupStats struct {
	ArticlesCreated int
	Duplicates      int
	Rejected        int
}

// Deduplicator admits ingested documents into storage, rejecting
// exact URL duplicates and near-duplicate content.
type Deduplicator interface {
	Admit(ctx context.Context, docs []dto.IngestedDocument) ([]entity.Article, DedupStats, error)
}

// NewDeduplicator creates the URL and fingerprint based deduplicator.
func NewDeduplicator(cfg *config.Config, log *logger.Logger, articleRepo repository.ArticleRepository) Deduplicator {
	return &deduplicator{
		cfg:         cfg,
		logger:      log,
		articleRepo: articleRepo,
		seenCache:   gocache.New(30*time.Minute, 10*time.Minute),
	}
}

type deduplicator struct {
	cfg         *config.Config
	logger      *logger.Logger
	articleRepo repository.ArticleRepository

	// seenCache holds normalized URLs and fingerprints admitted
	// during the current process lifetime, so repeated items inside
	// one run never hit the database twice.
	seenCache *gocache.Cache
}

// Admit processes documents in order. The first occurrence of a URL
// or a near-identical body wins; later ones are counted as
// duplicates.
func (d *deduplicator) Admit(ctx context.Context, docs []dto.IngestedDocument) ([]entity.Article, DedupStats, error) {
	var (
		admitted []entity.Article
		stats    DedupStats
	)

	since := time.Now().UTC().AddDate(0, 0, -d.cfg.Dedup.RecentWindowDays)
	recent, err := d.articleRepo.FindRecent(ctx, since)
	if err != nil {
		return nil, stats, err
	}

	recentFingerprints := make([]string, 0, len(recent))
	for _, a := range recent {
		recentFingerprints = append(recentFingerprints, d.fingerprint(a.Title, a.RawContent))
	}

	for _, doc := range docs {
		if !utils.ShouldContinue(ctx, d.logger) {
			break
		}
		if !doc.Valid() {
			stats.Rejected++
			continue
		}

		normalized := NormalizeURL(doc.URL)
		fp := d.fingerprint(doc.Title, doc.Text)

		if _, found := d.seenCache.Get("url:" + normalized); found {
			stats.Duplicates++
			continue
		}
		if d.isNearDuplicate(fp, recentFingerprints) {
			stats.Duplicates++
			continue
		}

		article := entity.Article{
			URL:            normalized,
			Title:          doc.Title,
			RawContent:     doc.Text,
			Author:         doc.Author,
			SourceID:       doc.SourceID,
			PublishedAt:    doc.PublishedAt,
			AnalysisStatus: entity.AnalysisStatusPending,
		}

		created, err := d.articleRepo.CreateIgnoreConflict(ctx, &article)
		if err != nil {
			d.logger.Error("Failed to persist article",
				logger.ErrorField(err),
				logger.StringField("url", normalized),
			)
			continue
		}

		d.seenCache.Set("url:"+normalized, true, gocache.DefaultExpiration)
		if !created {
			stats.Duplicates++
			continue
		}

		recentFingerprints = append(recentFingerprints, fp)
		admitted = append(admitted, article)
		stats.ArticlesCreated++
	}

	return admitted, stats, nil
}

// fingerprint keys near-duplicate detection on the title plus the
// leading slice of body text, so syndicated copies with tweaked
// openings still collide.
func (d *deduplicator) fingerprint(title, text string) string {
	normalized := strings.ToLower(utils.NormalizeWhitespace(title + " " + text))
	return utils.TruncateRunes(normalized, d.cfg.Dedup.FingerprintPrefixLen)
}

func (d *deduplicator) isNearDuplicate(fp string, known []string) bool {
	for _, existing := range known {
		if jaccardSimilarity(fp, existing) >= d.cfg.Dedup.SimilarityThreshold {
			return true
		}
	}
	return false
}

// trackingParams are query keys stripped during URL normalization.
var trackingParams = []string{"fbclid", "gclid", "mc_cid", "mc_eid", "ref"}

// NormalizeURL canonicalizes an article URL: lowercased scheme, host
// and path, default port stripped, no fragment, no trailing slash,
// tracking parameters removed and the rest sorted.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && u.Port() == "80") || (u.Scheme == "https" && u.Port() == "443") {
		u.Host = u.Hostname()
	}
	u.Fragment = ""
	u.Path = strings.ToLower(strings.TrimSuffix(u.Path, "/"))

	query := u.Query()
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			query.Del(key)
			continue
		}
		if utils.ContainsString(trackingParams, strings.ToLower(key)) {
			query.Del(key)
		}
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var encoded strings.Builder
	for _, key := range keys {
		for _, value := range query[key] {
			if encoded.Len() > 0 {
				encoded.WriteByte('&')
			}
			encoded.WriteString(url.QueryEscape(key))
			encoded.WriteByte('=')
			encoded.WriteString(url.QueryEscape(value))
		}
	}
	u.RawQuery = encoded.String()

	return u.String()
}
