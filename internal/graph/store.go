// Package graph maintains the derived traversal index: User and Post
// nodes with FOLLOWS, AUTHORED and LIKED edges. It is never
// authoritative; every write here is best-effort from the caller's
// point of view.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"skein/internal/config"
	"skein/internal/core"
)

type Store struct {
	Logger *slog.Logger
	Config *config.Config

	driver neo4j.DriverWithContext
}

func (s *Store) Init(ctx context.Context) error {
	s.Logger = s.Logger.With("component", "graph.Store")

	driver, err := neo4j.NewDriverWithContext(
		s.Config.Neo4jURI,
		neo4j.BasicAuth(s.Config.Neo4jUser, s.Config.Neo4jPassword, ""),
	)
	if err != nil {
		return err
	}
	s.driver = driver

	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Shutdown(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	return neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
}

func (s *Store) EnsureActor(ctx context.Context, uri string) error {
	_, err := s.run(ctx, `MERGE (u:User {uri: $uri})`, map[string]any{"uri": uri})
	return err
}

// AddFollow requires both endpoints to exist as nodes; callers ensure
// them first. A follow between unknown nodes is an error so the caller
// can log the drift.
func (s *Store) AddFollow(ctx context.Context, actorURI, objectURI string) error {
	result, err := s.run(ctx, `
		MATCH (a:User {uri: $actor}), (b:User {uri: $object})
		MERGE (a)-[:FOLLOWS]->(b)
		RETURN count(*) AS merged`,
		map[string]any{"actor": actorURI, "object": objectURI})
	if err != nil {
		return err
	}
	if len(result.Records) == 0 {
		return fmt.Errorf("follow endpoints missing in graph: %s -> %s", actorURI, objectURI)
	}
	return nil
}

func (s *Store) RemoveFollow(ctx context.Context, actorURI, objectURI string) error {
	_, err := s.run(ctx, `
		MATCH (a:User {uri: $actor})-[f:FOLLOWS]->(b:User {uri: $object})
		DELETE f`,
		map[string]any{"actor": actorURI, "object": objectURI})
	return err
}

func (s *Store) AddPost(ctx context.Context, postURI, authorURI string, createdAt time.Time) error {
	_, err := s.run(ctx, `
		MERGE (p:Post {uri: $post})
		SET p.createdAt = $createdAt
		MERGE (u:User {uri: $author})
		MERGE (u)-[:AUTHORED]->(p)`,
		map[string]any{
			"post":      postURI,
			"author":    authorURI,
			"createdAt": createdAt.UnixMilli(),
		})
	return err
}

func (s *Store) RemovePost(ctx context.Context, postURI string) error {
	_, err := s.run(ctx, `
		MATCH (p:Post {uri: $post})
		DETACH DELETE p`,
		map[string]any{"post": postURI})
	return err
}

// AddLike creates missing nodes on demand; a like may arrive before the
// post's author was ever mirrored here.
func (s *Store) AddLike(ctx context.Context, actorURI, postURI string) error {
	_, err := s.run(ctx, `
		MERGE (u:User {uri: $actor})
		MERGE (p:Post {uri: $post})
		MERGE (u)-[:LIKED]->(p)`,
		map[string]any{"actor": actorURI, "post": postURI})
	return err
}

func (s *Store) RemoveLike(ctx context.Context, actorURI, postURI string) error {
	_, err := s.run(ctx, `
		MATCH (u:User {uri: $actor})-[l:LIKED]->(p:Post {uri: $post})
		DELETE l`,
		map[string]any{"actor": actorURI, "post": postURI})
	return err
}

// LikedByFollowed returns posts liked by actors the requester follows,
// excluding posts the requester already liked, newest first.
func (s *Store) LikedByFollowed(ctx context.Context, actorURI string, limit int) ([]core.PostCandidate, error) {
	result, err := s.run(ctx, `
		MATCH (me:User {uri: $actor})-[:FOLLOWS]->(:User)-[:LIKED]->(p:Post)
		WHERE NOT (me)-[:LIKED]->(p)
		RETURN DISTINCT p.uri AS uri, p.createdAt AS createdAt
		ORDER BY createdAt DESC
		LIMIT $limit`,
		map[string]any{"actor": actorURI, "limit": limit})
	if err != nil {
		return nil, err
	}
	return candidates(result)
}

// SecondDegree returns posts authored by follows-of-follows, excluding
// direct follows and the requester, newest first.
func (s *Store) SecondDegree(ctx context.Context, actorURI string, limit int) ([]core.PostCandidate, error) {
	result, err := s.run(ctx, `
		MATCH (me:User {uri: $actor})-[:FOLLOWS]->(:User)-[:FOLLOWS]->(author:User)-[:AUTHORED]->(p:Post)
		WHERE author.uri <> $actor AND NOT (me)-[:FOLLOWS]->(author)
		RETURN DISTINCT p.uri AS uri, p.createdAt AS createdAt
		ORDER BY createdAt DESC
		LIMIT $limit`,
		map[string]any{"actor": actorURI, "limit": limit})
	if err != nil {
		return nil, err
	}
	return candidates(result)
}

// Trending returns posts authored within the rolling window, ordered by
// like count then recency.
func (s *Store) Trending(ctx context.Context, window time.Duration, limit int) ([]core.PostCandidate, error) {
	since := time.Now().Add(-window).UnixMilli()

	result, err := s.run(ctx, `
		MATCH (p:Post)
		WHERE p.createdAt >= $since
		OPTIONAL MATCH (:User)-[l:LIKED]->(p)
		RETURN p.uri AS uri, p.createdAt AS createdAt, count(l) AS likes
		ORDER BY likes DESC, createdAt DESC
		LIMIT $limit`,
		map[string]any{"since": since, "limit": limit})
	if err != nil {
		return nil, err
	}
	return candidates(result)
}

func candidates(result *neo4j.EagerResult) ([]core.PostCandidate, error) {
	out := make([]core.PostCandidate, 0, len(result.Records))
	for _, record := range result.Records {
		uri, _, err := neo4j.GetRecordValue[string](record, "uri")
		if err != nil {
			return nil, err
		}
		createdAt, _, err := neo4j.GetRecordValue[int64](record, "createdAt")
		if err != nil {
			return nil, err
		}
		out = append(out, core.PostCandidate{
			URI:       uri,
			CreatedAt: time.UnixMilli(createdAt),
		})
	}
	return out, nil
}
