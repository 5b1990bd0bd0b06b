// Package recommending builds the discovery feed: three graph
// traversals produce candidate post identifiers, which are unioned,
// hydrated from the document store and paginated.
package recommending

import (
	"context"
	"log/slog"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"

	"skein/internal/config"
	"skein/internal/core"
)

var candidatesReturned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skein_feed_candidates_total",
	Help: "The total number of candidate posts returned per strategy",
}, []string{"strategy"})

type Engine struct {
	Logger *slog.Logger
	Config *config.Config

	Graph  core.GraphStore
	Posts  core.PostRepository
	Mirror core.MirrorRepository
	Actors core.ActorRepository
}

func (e *Engine) Init(_ context.Context) error {
	e.Logger = e.Logger.With("component", "recommending.Engine")
	return nil
}

// DiscoverFeed returns a page of recommended posts for an actor. Each
// graph strategy degrades to an empty contribution on failure; the
// union is deduplicated by post URI, hydrated, and paginated over the
// hydrated list since hydration can drop since-deleted candidates.
func (e *Engine) DiscoverFeed(ctx context.Context, actorURI string, page, limit int) ([]core.FeedPost, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	liked := e.query(ctx, "liked_by_followed", func() ([]core.PostCandidate, error) {
		return e.Graph.LikedByFollowed(ctx, actorURI, limit)
	})
	second := e.query(ctx, "second_degree", func() ([]core.PostCandidate, error) {
		return e.Graph.SecondDegree(ctx, actorURI, limit)
	})
	trending := e.query(ctx, "trending", func() ([]core.PostCandidate, error) {
		return e.Graph.Trending(ctx, e.Config.TrendingWindow, limit)
	})

	union := lo.UniqBy(
		append(append(liked, second...), trending...),
		func(c core.PostCandidate) string { return c.URI },
	)
	if len(union) == 0 {
		return []core.FeedPost{}, nil
	}

	feed, err := e.hydrate(ctx, union)
	if err != nil {
		return nil, err
	}

	sort.Slice(feed, func(i, j int) bool {
		return feed[i].CreatedAt.After(feed[j].CreatedAt)
	})

	return paginate(feed, page, limit), nil
}

func (e *Engine) query(_ context.Context, strategy string, fn func() ([]core.PostCandidate, error)) []core.PostCandidate {
	candidates, err := fn()
	if err != nil {
		e.Logger.Warn("graph strategy failed, contributing nothing", "strategy", strategy, "error", err)
		return nil
	}
	candidatesReturned.WithLabelValues(strategy).Add(float64(len(candidates)))
	return candidates
}

// hydrate loads full post content for candidate URIs from both the
// local post table and the remote mirror. Candidates found in neither
// are dropped.
func (e *Engine) hydrate(ctx context.Context, candidates []core.PostCandidate) ([]core.FeedPost, error) {
	uris := lo.Map(candidates, func(c core.PostCandidate, _ int) string { return c.URI })

	local, err := e.Posts.ByActivityURIs(ctx, uris)
	if err != nil {
		return nil, err
	}
	remote, err := e.Mirror.ByObjectURIs(ctx, uris)
	if err != nil {
		return nil, err
	}

	feed := make([]core.FeedPost, 0, len(local)+len(remote))
	for _, p := range local {
		feed = append(feed, core.FeedPost{
			URI:       p.ActivityURI,
			Author:    e.author(ctx, p.AuthorURI),
			Content:   p.Caption,
			MediaURL:  p.MediaURL,
			MediaType: p.MediaType,
			LikeCount: p.LikeCount + int64(len(p.LikedBy)),
			CreatedAt: p.CreatedAt,
		})
	}
	for _, p := range remote {
		feed = append(feed, core.FeedPost{
			URI:         p.ObjectURI,
			Author:      e.author(ctx, p.ActorURI),
			Content:     p.Content,
			Attachments: p.Attachments,
			LikeCount:   p.LikeCount,
			CreatedAt:   p.PublishedAt,
		})
	}
	return feed, nil
}

// author fills denormalized display fields so readers never need a
// second resolution round-trip. Unknown authors keep the bare URI.
func (e *Engine) author(ctx context.Context, uri string) core.ActorInfo {
	actor, err := e.Actors.ByURI(ctx, uri)
	if err != nil {
		return core.ActorInfo{URI: uri}
	}
	return actor.Info()
}

func paginate(feed []core.FeedPost, page, limit int) []core.FeedPost {
	offset := (page - 1) * limit
	if offset >= len(feed) {
		return []core.FeedPost{}
	}
	end := offset + limit
	if end > len(feed) {
		end = len(feed)
	}
	return feed[offset:end]
}
