package mirroring_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"skein/internal/core"
	"skein/internal/mirroring"
	"skein/pkg/apub"
)

type fakeRepo struct {
	byObject map[string]*core.RemotePost

	updates int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byObject: map[string]*core.RemotePost{}}
}

func (f *fakeRepo) Upsert(_ context.Context, post *core.RemotePost) error {
	f.byObject[post.ObjectURI] = post
	return nil
}

func (f *fakeRepo) Update(_ context.Context, post *core.RemotePost) error {
	f.updates++
	f.byObject[post.ObjectURI] = post
	return nil
}

func (f *fakeRepo) Remove(_ context.Context, objectURI string) (bool, error) {
	if _, ok := f.byObject[objectURI]; !ok {
		return false, nil
	}
	delete(f.byObject, objectURI)
	return true, nil
}

func (f *fakeRepo) ByObjectURI(_ context.Context, objectURI string) (*core.RemotePost, error) {
	post, ok := f.byObject[objectURI]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *post
	return &cp, nil
}

func (f *fakeRepo) ByObjectURIs(_ context.Context, uris []string) ([]core.RemotePost, error) {
	var out []core.RemotePost
	for _, uri := range uris {
		if post, ok := f.byObject[uri]; ok {
			out = append(out, *post)
		}
	}
	return out, nil
}

func (f *fakeRepo) AddEngagement(_ context.Context, objectURI string, likes, replies, shares int64) error {
	post, ok := f.byObject[objectURI]
	if !ok {
		return core.ErrNotFound
	}
	post.LikeCount += likes
	post.ReplyCount += replies
	post.ShareCount += shares
	return nil
}

type nopGraph struct{}

func (nopGraph) EnsureActor(context.Context, string) error          { return nil }
func (nopGraph) AddFollow(context.Context, string, string) error    { return nil }
func (nopGraph) RemoveFollow(context.Context, string, string) error { return nil }
func (nopGraph) AddPost(context.Context, string, string, time.Time) error {
	return nil
}
func (nopGraph) RemovePost(context.Context, string) error         { return nil }
func (nopGraph) AddLike(context.Context, string, string) error    { return nil }
func (nopGraph) RemoveLike(context.Context, string, string) error { return nil }
func (nopGraph) LikedByFollowed(context.Context, string, int) ([]core.PostCandidate, error) {
	return nil, nil
}
func (nopGraph) SecondDegree(context.Context, string, int) ([]core.PostCandidate, error) {
	return nil, nil
}
func (nopGraph) Trending(context.Context, time.Duration, int) ([]core.PostCandidate, error) {
	return nil, nil
}

func newMirror(t *testing.T, repo *fakeRepo) *mirroring.Mirror {
	t.Helper()

	m := &mirroring.Mirror{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Posts:  repo,
		Graph:  nopGraph{},
	}
	if err := m.Init(t.Context()); err != nil {
		t.Fatal(err)
	}
	return m
}

const (
	objectURI = "https://remote.example/objects/1"
	authorURI = "https://remote.example/users/alice"
)

func note(contentHTML string) *apub.Note {
	return &apub.Note{
		ID:          objectURI,
		Type:        "Note",
		ContentHTML: contentHTML,
		ContentText: apub.StripHTML(contentHTML),
		Published:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestUpsertAndGet(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	m := newMirror(t, repo)

	post, err := m.Upsert(t.Context(), note("<p>hi</p>"), authorURI, "https://remote.example/activities/1")
	if err != nil {
		t.Fatal(err)
	}
	if post.Content != "hi" {
		t.Errorf("unexpected plain text: %q", post.Content)
	}

	got, err := m.Get(t.Context(), objectURI)
	if err != nil {
		t.Fatal(err)
	}
	if got.ActorURI != authorURI {
		t.Errorf("unexpected author: %s", got.ActorURI)
	}
}

func TestApplyUpdateOwnershipMismatch(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	m := newMirror(t, repo)

	if _, err := m.Upsert(t.Context(), note("<p>hi</p>"), authorURI, ""); err != nil {
		t.Fatal(err)
	}

	err := m.ApplyUpdate(t.Context(), note("<p>hijacked</p>"), "https://evil.example/users/mallory")
	if !errors.Is(err, core.ErrOwnershipMismatch) {
		t.Fatalf("expected ErrOwnershipMismatch, got %v", err)
	}

	got, _ := m.Get(t.Context(), objectURI)
	if got.Content != "hi" {
		t.Error("a rejected update must not mutate the mirror entry")
	}
}

func TestApplyUpdateDiffsOnly(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	m := newMirror(t, repo)

	n := note("<p>hi</p>")
	if _, err := m.Upsert(t.Context(), n, authorURI, ""); err != nil {
		t.Fatal(err)
	}

	// Identical content: no write.
	if err := m.ApplyUpdate(t.Context(), n, authorURI); err != nil {
		t.Fatal(err)
	}
	if repo.updates != 0 {
		t.Error("an update with no changes must not write")
	}

	if err := m.ApplyUpdate(t.Context(), note("<p>edited</p>"), authorURI); err != nil {
		t.Fatal(err)
	}
	if repo.updates != 1 {
		t.Errorf("expected one write, got %d", repo.updates)
	}

	got, _ := m.Get(t.Context(), objectURI)
	if got.Content != "edited" {
		t.Errorf("unexpected content after update: %q", got.Content)
	}
}

func TestApplyUpdateUnmirroredIsNoop(t *testing.T) {
	t.Parallel()

	m := newMirror(t, newFakeRepo())

	if err := m.ApplyUpdate(t.Context(), note("<p>hi</p>"), authorURI); err != nil {
		t.Errorf("update for an unmirrored object should be a no-op, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	m := newMirror(t, repo)

	if _, err := m.Upsert(t.Context(), note("<p>hi</p>"), authorURI, ""); err != nil {
		t.Fatal(err)
	}

	removed, err := m.Remove(t.Context(), objectURI)
	if err != nil || !removed {
		t.Fatalf("expected removal, got %v %v", removed, err)
	}

	removed, err = m.Remove(t.Context(), objectURI)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("second removal should report false")
	}
}
