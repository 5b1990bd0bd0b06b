package recommending_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"skein/internal/config"
	"skein/internal/core"
	"skein/internal/recommending"
)

type fakeGraph struct {
	liked    []core.PostCandidate
	second   []core.PostCandidate
	trending []core.PostCandidate

	likedErr error
}

func (f *fakeGraph) EnsureActor(context.Context, string) error          { return nil }
func (f *fakeGraph) AddFollow(context.Context, string, string) error    { return nil }
func (f *fakeGraph) RemoveFollow(context.Context, string, string) error { return nil }
func (f *fakeGraph) AddPost(context.Context, string, string, time.Time) error {
	return nil
}
func (f *fakeGraph) RemovePost(context.Context, string) error         { return nil }
func (f *fakeGraph) AddLike(context.Context, string, string) error    { return nil }
func (f *fakeGraph) RemoveLike(context.Context, string, string) error { return nil }

func (f *fakeGraph) LikedByFollowed(context.Context, string, int) ([]core.PostCandidate, error) {
	if f.likedErr != nil {
		return nil, f.likedErr
	}
	return f.liked, nil
}

func (f *fakeGraph) SecondDegree(context.Context, string, int) ([]core.PostCandidate, error) {
	return f.second, nil
}

func (f *fakeGraph) Trending(context.Context, time.Duration, int) ([]core.PostCandidate, error) {
	return f.trending, nil
}

type fakePosts struct {
	posts map[string]core.Post
}

func (f *fakePosts) ByActivityURI(_ context.Context, uri string) (*core.Post, error) {
	post, ok := f.posts[uri]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &post, nil
}

func (f *fakePosts) ByActivityURIs(_ context.Context, uris []string) ([]core.Post, error) {
	var out []core.Post
	for _, uri := range uris {
		if post, ok := f.posts[uri]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *fakePosts) AddLikeCount(context.Context, string, int64) error { return nil }

type fakeMirror struct {
	posts map[string]core.RemotePost
}

func (f *fakeMirror) Upsert(context.Context, *core.RemotePost) error { return nil }
func (f *fakeMirror) Update(context.Context, *core.RemotePost) error { return nil }
func (f *fakeMirror) Remove(context.Context, string) (bool, error)   { return false, nil }

func (f *fakeMirror) ByObjectURI(_ context.Context, uri string) (*core.RemotePost, error) {
	post, ok := f.posts[uri]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &post, nil
}

func (f *fakeMirror) ByObjectURIs(_ context.Context, uris []string) ([]core.RemotePost, error) {
	var out []core.RemotePost
	for _, uri := range uris {
		if post, ok := f.posts[uri]; ok {
			out = append(out, post)
		}
	}
	return out, nil
}

func (f *fakeMirror) AddEngagement(context.Context, string, int64, int64, int64) error {
	return nil
}

type fakeActors struct{}

func (fakeActors) ByURI(context.Context, string) (*core.Actor, error) {
	return nil, core.ErrNotFound
}
func (fakeActors) ByUsername(context.Context, string) (*core.Actor, error) {
	return nil, core.ErrNotFound
}
func (fakeActors) Insert(context.Context, *core.Actor) error { return nil }
func (fakeActors) Update(context.Context, *core.Actor) error { return nil }

func newEngine(t *testing.T, graph *fakeGraph, posts *fakePosts, mirror *fakeMirror) *recommending.Engine {
	t.Helper()

	e := &recommending.Engine{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{TrendingWindow: 24 * time.Hour},
		Graph:  graph,
		Posts:  posts,
		Mirror: mirror,
		Actors: fakeActors{},
	}
	if err := e.Init(t.Context()); err != nil {
		t.Fatal(err)
	}
	return e
}

func candidate(uri string, age time.Duration) core.PostCandidate {
	return core.PostCandidate{URI: uri, CreatedAt: time.Now().Add(-age)}
}

func remotePost(uri string, age time.Duration) core.RemotePost {
	return core.RemotePost{ObjectURI: uri, Content: uri, PublishedAt: time.Now().Add(-age)}
}

const viewer = "https://local.example/users/bob"

func TestDiscoverFeedDeduplicatesUnion(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{
		liked:    []core.PostCandidate{candidate("p1", time.Hour), candidate("p2", 2*time.Hour)},
		second:   []core.PostCandidate{candidate("p2", 2*time.Hour), candidate("p3", 3*time.Hour)},
		trending: []core.PostCandidate{candidate("p3", 3*time.Hour), candidate("p4", 4*time.Hour)},
	}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{
		"p1": remotePost("p1", time.Hour),
		"p2": remotePost("p2", 2*time.Hour),
		"p3": remotePost("p3", 3*time.Hour),
		"p4": remotePost("p4", 4*time.Hour),
	}}

	feed, err := newEngine(t, graph, &fakePosts{}, mirror).DiscoverFeed(t.Context(), viewer, 1, 20)
	if err != nil {
		t.Fatal(err)
	}

	if len(feed) != 4 {
		t.Fatalf("expected 4 unique posts, got %d", len(feed))
	}
	seen := map[string]int{}
	for _, post := range feed {
		seen[post.URI]++
	}
	for uri, n := range seen {
		if n != 1 {
			t.Errorf("%s appeared %d times", uri, n)
		}
	}
}

func TestDiscoverFeedSortsByRecency(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{
		trending: []core.PostCandidate{candidate("old", 10 * time.Hour), candidate("new", time.Hour)},
	}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{
		"old": remotePost("old", 10*time.Hour),
		"new": remotePost("new", time.Hour),
	}}

	feed, err := newEngine(t, graph, &fakePosts{}, mirror).DiscoverFeed(t.Context(), viewer, 1, 20)
	if err != nil {
		t.Fatal(err)
	}

	if len(feed) != 2 || feed[0].URI != "new" {
		t.Errorf("newest post should come first: %v", feed)
	}
}

func TestDiscoverFeedDropsUnhydratable(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{
		trending: []core.PostCandidate{candidate("alive", time.Hour), candidate("deleted", 2 * time.Hour)},
	}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{
		"alive": remotePost("alive", time.Hour),
	}}

	feed, err := newEngine(t, graph, &fakePosts{}, mirror).DiscoverFeed(t.Context(), viewer, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].URI != "alive" {
		t.Errorf("since-deleted candidates should be dropped silently: %v", feed)
	}
}

func TestDiscoverFeedPaginatesHydratedList(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{}}
	for _, c := range []struct {
		uri string
		age time.Duration
	}{
		{"p1", 1 * time.Hour},
		{"p2", 2 * time.Hour},
		{"p3", 3 * time.Hour},
	} {
		graph.trending = append(graph.trending, candidate(c.uri, c.age))
		mirror.posts[c.uri] = remotePost(c.uri, c.age)
	}

	e := newEngine(t, graph, &fakePosts{}, mirror)

	page1, err := e.DiscoverFeed(t.Context(), viewer, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 || page1[0].URI != "p1" || page1[1].URI != "p2" {
		t.Errorf("unexpected first page: %v", page1)
	}

	page2, err := e.DiscoverFeed(t.Context(), viewer, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 || page2[0].URI != "p3" {
		t.Errorf("unexpected second page: %v", page2)
	}

	page3, err := e.DiscoverFeed(t.Context(), viewer, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3) != 0 {
		t.Errorf("expected an empty page past the end, got %v", page3)
	}
}

func TestDiscoverFeedMixesLocalAndMirrored(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{
		trending: []core.PostCandidate{candidate("local-1", time.Hour), candidate("remote-1", 2 * time.Hour)},
	}
	posts := &fakePosts{posts: map[string]core.Post{
		"local-1": {ActivityURI: "local-1", Caption: "mine", LikeCount: 2, LikedBy: []string{"x"}, CreatedAt: time.Now().Add(-time.Hour)},
	}}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{
		"remote-1": remotePost("remote-1", 2*time.Hour),
	}}

	feed, err := newEngine(t, graph, posts, mirror).DiscoverFeed(t.Context(), viewer, 1, 20)
	if err != nil {
		t.Fatal(err)
	}

	if len(feed) != 2 {
		t.Fatalf("expected both posts, got %d", len(feed))
	}
	if feed[0].URI != "local-1" || feed[0].LikeCount != 3 {
		t.Errorf("local post should merge array and counter likes: %+v", feed[0])
	}
}

func TestDiscoverFeedStrategyFailureDegrades(t *testing.T) {
	t.Parallel()

	graph := &fakeGraph{
		likedErr: errors.New("graph offline"),
		trending: []core.PostCandidate{candidate("p1", time.Hour)},
	}
	mirror := &fakeMirror{posts: map[string]core.RemotePost{
		"p1": remotePost("p1", time.Hour),
	}}

	feed, err := newEngine(t, graph, &fakePosts{}, mirror).DiscoverFeed(t.Context(), viewer, 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 {
		t.Errorf("a failing strategy contributes nothing, the rest still serve: %v", feed)
	}
}
