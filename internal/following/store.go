// Package following owns the dual-backed follow-edge repository: the
// document store is authoritative, the graph store is a derived index,
// and list/count reads go through a short-TTL cache.
package following

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skein/internal/cache"
	"skein/internal/core"
)

const graphWriteTimeout = 10 * time.Second

var graphWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skein_graph_write_failures_total",
	Help: "The total number of failed graph store writes",
}, []string{"operation"})

type Store struct {
	Logger  *slog.Logger
	Follows core.FollowRepository
	Graph   core.GraphStore
	Cache   *cache.Cache
}

func (s *Store) Init(_ context.Context) error {
	s.Logger = s.Logger.With("component", "following.Store")
	return nil
}

// Create persists a follow edge. The existence pre-check and the unique
// index both surface as ErrRelationshipConflict; the index is the
// arbiter under concurrent duplicate deliveries. The graph mirror is
// asynchronous and best-effort.
func (s *Store) Create(ctx context.Context, actor, object *core.Actor, activityURI string) (*core.FollowEdge, error) {
	exists, err := s.Follows.Exists(ctx, actor.URI, object.URI)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, core.ErrRelationshipConflict
	}

	edge := &core.FollowEdge{
		ID:          uuid.New(),
		ActorURI:    actor.URI,
		ObjectURI:   object.URI,
		ActivityURI: activityURI,
		Actor:       actor.Info(),
		Object:      object.Info(),
		CreatedAt:   time.Now(),
	}

	if err := s.Follows.Insert(ctx, edge); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return nil, core.ErrRelationshipConflict
		}
		return nil, err
	}

	s.invalidate(ctx, actor.URI, object.URI)
	s.mirror(ctx, "follow", func(ctx context.Context) error {
		// Local actors never pass through remote bootstrap, so their
		// User nodes may not exist yet. MERGE both endpoints before
		// the edge; AddFollow stays strict to surface drift.
		if err := s.Graph.EnsureActor(ctx, actor.URI); err != nil {
			return err
		}
		if err := s.Graph.EnsureActor(ctx, object.URI); err != nil {
			return err
		}
		return s.Graph.AddFollow(ctx, actor.URI, object.URI)
	})

	return edge, nil
}

// Remove deletes the edge and reports whether one existed. Removing a
// nonexistent edge performs no invalidation.
func (s *Store) Remove(ctx context.Context, actorURI, objectURI string) (bool, error) {
	deleted, err := s.Follows.Delete(ctx, actorURI, objectURI)
	if err != nil || !deleted {
		return false, err
	}

	s.invalidate(ctx, actorURI, objectURI)
	s.mirror(ctx, "unfollow", func(ctx context.Context) error {
		return s.Graph.RemoveFollow(ctx, actorURI, objectURI)
	})

	return true, nil
}

// RemoveByActivityURI resolves an edge through its follow activity id,
// for Undo deliveries that reference the activity rather than the pair.
func (s *Store) RemoveByActivityURI(ctx context.Context, activityURI string) (bool, error) {
	edge, err := s.Follows.ByActivityURI(ctx, activityURI)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Remove(ctx, edge.ActorURI, edge.ObjectURI)
}

// IsFollowing is a cached read. Idempotency decisions never come
// through here; Create checks the document store directly.
func (s *Store) IsFollowing(ctx context.Context, actorURI, objectURI string) (bool, error) {
	key := cache.Key("isf", actorURI, objectURI)

	var cached bool
	if s.Cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	exists, err := s.Follows.Exists(ctx, actorURI, objectURI)
	if err != nil {
		return false, err
	}
	s.Cache.Put(ctx, key, exists)
	return exists, nil
}

func (s *Store) Followers(ctx context.Context, uri string, page, limit int) ([]core.FollowEdge, error) {
	return s.list(ctx, "followers", uri, page, limit, s.Follows.Followers)
}

func (s *Store) Following(ctx context.Context, uri string, page, limit int) ([]core.FollowEdge, error) {
	return s.list(ctx, "following", uri, page, limit, s.Follows.Following)
}

func (s *Store) Counts(ctx context.Context, uri string) (core.FollowCounts, error) {
	key := cache.Key("counts", uri)

	var counts core.FollowCounts
	if s.Cache.Get(ctx, key, &counts) {
		return counts, nil
	}

	counts, err := s.Follows.Counts(ctx, uri)
	if err != nil {
		return counts, err
	}
	s.Cache.Put(ctx, key, counts)
	return counts, nil
}

type pageQuery func(ctx context.Context, uri string, offset, limit int) ([]core.FollowEdge, error)

func (s *Store) list(ctx context.Context, kind, uri string, page, limit int, query pageQuery) ([]core.FollowEdge, error) {
	if page < 1 {
		page = 1
	}
	key := cache.Key(kind, uri, pageKey(page, limit))

	var edges []core.FollowEdge
	if s.Cache.Get(ctx, key, &edges) {
		return edges, nil
	}

	edges, err := query(ctx, uri, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	s.Cache.Put(ctx, key, edges)
	return edges, nil
}

// invalidate synchronously drops cached lists and counts for both
// endpoints of an edge.
func (s *Store) invalidate(ctx context.Context, actorURI, objectURI string) {
	s.Cache.InvalidatePrefix(ctx,
		cache.Key("following", actorURI),
		cache.Key("followers", actorURI),
		cache.Key("counts", actorURI),
		cache.Key("isf", actorURI),
		cache.Key("following", objectURI),
		cache.Key("followers", objectURI),
		cache.Key("counts", objectURI),
	)
}

// mirror applies a graph store write off the request path. Failures are
// logged and counted; the reconciliation job repairs drift later.
func (s *Store) mirror(ctx context.Context, operation string, write func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, graphWriteTimeout)
		defer cancel()

		if err := write(ctx); err != nil {
			graphWriteFailures.WithLabelValues(operation).Inc()
			s.Logger.Warn("graph mirror write failed", "operation", operation, "error", err)
		}
	}()
}

func pageKey(page, limit int) string {
	return "p" + strconv.Itoa(page) + "l" + strconv.Itoa(limit)
}
