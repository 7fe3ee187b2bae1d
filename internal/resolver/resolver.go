// package resolver maps remote track references to ranked, downloadable candidates.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/time/rate"
)

// Searcher looks up downloadable matches for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.Candidate, error)
}

// Cache returns a previously chosen candidate for a source id. Lookups only; the resolver never writes.
type Cache interface {
	Lookup(sourceID string) (*models.Candidate, error)
}

// Options configures a [Resolver]. Zero values take defaults.
type Options struct {
	MaxCandidates     int     // upper bound on returned candidates (default 5)
	Threshold         float64 // minimum accepted score (default 0.35)
	DurationTolerance float64 // fractional duration difference before penalty (default 0.05)
	Limiter           *rate.Limiter
	Cache             Cache
	Logger            *log.Logger
}

// Resolver ranks candidates for remote tracks. It is safe for concurrent use.
type Resolver struct {
	searcher Searcher
	opts     Options
}

// New creates a [Resolver] backed by searcher.
func New(searcher Searcher, opts Options) *Resolver {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = 5
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.35
	}
	if opts.DurationTolerance <= 0 {
		opts.DurationTolerance = 0.05
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	return &Resolver{searcher: searcher, opts: opts}
}

// Resolve returns at most MaxCandidates candidates for ref, most likely first.
//
// When ref already carries a fetchable handle (its origin can resolve candidates) that handle is
// ranked first. Zero acceptable candidates yields an error wrapping [shared.ErrUnresolvable].
func (r *Resolver) Resolve(ctx context.Context, ref models.RemoteTrack) ([]models.Candidate, error) {
	var ranked []models.Candidate
	seen := map[string]bool{}
	add := func(c models.Candidate) {
		if c.Handle == "" || seen[c.Handle] {
			return
		}
		seen[c.Handle] = true
		ranked = append(ranked, c)
	}

	if direct, ok := directCandidate(ref); ok {
		add(direct)
	}

	if r.opts.Cache != nil && ref.SourceID != "" {
		if cached, err := r.opts.Cache.Lookup(ref.SourceID); err == nil && cached != nil {
			c := *cached
			c.Score = 1
			add(c)
		}
	}

	if len(ranked) < r.opts.MaxCandidates && r.searcher != nil {
		found, err := r.search(ctx, ref)
		if err != nil {
			if len(ranked) == 0 {
				return nil, err
			}
			r.opts.Logger.Warn("search failed, using known handles", "source_id", ref.SourceID, "error", err)
		}
		for _, c := range found {
			add(c)
		}
	}

	if len(ranked) > r.opts.MaxCandidates {
		ranked = ranked[:r.opts.MaxCandidates]
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnresolvable, describe(ref))
	}
	return ranked, nil
}

// search queries the searcher and returns scored candidates above the threshold, best first.
func (r *Resolver) search(ctx context.Context, ref models.RemoteTrack) ([]models.Candidate, error) {
	if r.opts.Limiter != nil {
		if err := r.opts.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	results, err := r.searcher.Search(ctx, Query(ref))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("search failed for %s: %w", describe(ref), err)
	}

	scored := make([]models.Candidate, 0, len(results))
	for _, c := range results {
		c.Score = Score(ref, c, r.opts.DurationTolerance)
		if c.Score < r.opts.Threshold {
			r.opts.Logger.Debug("candidate below threshold", "title", c.Title, "score", c.Score)
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

// Query builds the search string for ref.
func Query(ref models.RemoteTrack) string {
	return strings.TrimSpace(strings.TrimSpace(ref.Artist) + " " + strings.TrimSpace(ref.Title))
}

func directCandidate(ref models.RemoteTrack) (models.Candidate, bool) {
	origin, _, err := models.ParseSourceID(ref.SourceID)
	if err != nil || !origin.Capabilities().ResolveCandidate || ref.URL == "" {
		return models.Candidate{}, false
	}
	return models.Candidate{
		Handle:   ref.URL,
		Title:    ref.Title,
		Artist:   ref.Artist,
		Album:    ref.Album,
		Duration: ref.Duration,
		Score:    1,
	}, true
}

func describe(ref models.RemoteTrack) string {
	if ref.Artist == "" {
		return fmt.Sprintf("%q", ref.Title)
	}
	return fmt.Sprintf("%q by %q", ref.Title, ref.Artist)
}
