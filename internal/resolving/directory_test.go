package resolving_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"skein/internal/core"
	"skein/internal/resolving"
	"skein/pkg/apub"
)

type fakeActors struct {
	byURI   map[string]*core.Actor
	inserts int

	insertErr error
}

func newFakeActors(actors ...*core.Actor) *fakeActors {
	f := &fakeActors{byURI: map[string]*core.Actor{}}
	for _, a := range actors {
		f.byURI[a.URI] = a
	}
	return f
}

func (f *fakeActors) ByURI(_ context.Context, uri string) (*core.Actor, error) {
	a, ok := f.byURI[uri]
	if !ok {
		return nil, core.ErrNotFound
	}
	return a, nil
}

func (f *fakeActors) ByUsername(context.Context, string) (*core.Actor, error) {
	return nil, core.ErrNotFound
}

func (f *fakeActors) Insert(_ context.Context, actor *core.Actor) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserts++
	f.byURI[actor.URI] = actor
	return nil
}

func (f *fakeActors) Update(_ context.Context, actor *core.Actor) error {
	f.byURI[actor.URI] = actor
	return nil
}

type nopGraph struct {
	ensured []string
}

func (g *nopGraph) EnsureActor(_ context.Context, uri string) error {
	g.ensured = append(g.ensured, uri)
	return nil
}
func (g *nopGraph) AddFollow(context.Context, string, string) error    { return nil }
func (g *nopGraph) RemoveFollow(context.Context, string, string) error { return nil }
func (g *nopGraph) AddPost(context.Context, string, string, time.Time) error {
	return nil
}
func (g *nopGraph) RemovePost(context.Context, string) error           { return nil }
func (g *nopGraph) AddLike(context.Context, string, string) error      { return nil }
func (g *nopGraph) RemoveLike(context.Context, string, string) error   { return nil }
func (g *nopGraph) LikedByFollowed(context.Context, string, int) ([]core.PostCandidate, error) {
	return nil, nil
}
func (g *nopGraph) SecondDegree(context.Context, string, int) ([]core.PostCandidate, error) {
	return nil, nil
}
func (g *nopGraph) Trending(context.Context, time.Duration, int) ([]core.PostCandidate, error) {
	return nil, nil
}

type fakeFetcher struct {
	accounts map[string]string
	actors   map[string]*apub.Actor

	fetchErr error
}

func (f *fakeFetcher) ResolveAccount(_ context.Context, acct string) (string, error) {
	uri, ok := f.accounts[acct]
	if !ok {
		return "", errors.New("webfinger: no such account")
	}
	return uri, nil
}

func (f *fakeFetcher) FetchActor(_ context.Context, uri string) (*apub.Actor, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	doc, ok := f.actors[uri]
	if !ok {
		return nil, errors.New("fetch: not found")
	}
	return doc, nil
}

func (f *fakeFetcher) FetchObject(context.Context, string) (*apub.Note, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeFetcher) Deliver(context.Context, string, []byte) error { return nil }

func newDirectory(t *testing.T, actors *fakeActors, graph *nopGraph, fetcher *fakeFetcher) *resolving.Directory {
	t.Helper()

	d := &resolving.Directory{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Actors: actors,
		Graph:  graph,
		Client: fetcher,
	}
	if err := d.Init(t.Context()); err != nil {
		t.Fatal(err)
	}
	return d
}

const aliceURI = "https://remote.example/users/alice"

func aliceDoc() *apub.Actor {
	return &apub.Actor{
		ID:                aliceURI,
		Type:              "Person",
		PreferredUsername: "alice",
		Name:              "Alice",
		Inbox:             aliceURI + "/inbox",
		Outbox:            aliceURI + "/outbox",
	}
}

func TestResolveKnownActor(t *testing.T) {
	t.Parallel()

	known := &core.Actor{ID: uuid.New(), URI: aliceURI, Username: "alice"}
	actors := newFakeActors(known)
	d := newDirectory(t, actors, &nopGraph{}, &fakeFetcher{})

	got, err := d.Resolve(t.Context(), aliceURI)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != known.ID {
		t.Error("known actor should be returned without bootstrap")
	}
	if actors.inserts != 0 {
		t.Error("no insert expected for a known actor")
	}
}

func TestResolveBootstrapsUnknownActor(t *testing.T) {
	t.Parallel()

	actors := newFakeActors()
	graph := &nopGraph{}
	fetcher := &fakeFetcher{actors: map[string]*apub.Actor{aliceURI: aliceDoc()}}
	d := newDirectory(t, actors, graph, fetcher)

	got, err := d.Resolve(t.Context(), aliceURI)
	if err != nil {
		t.Fatal(err)
	}

	if got.Local {
		t.Error("bootstrapped actor must be remote")
	}
	if got.Username != "alice" || got.Domain != "remote.example" {
		t.Errorf("unexpected handle parts: %s@%s", got.Username, got.Domain)
	}
	if actors.inserts != 1 {
		t.Errorf("expected one insert, got %d", actors.inserts)
	}
	if len(graph.ensured) != 1 || graph.ensured[0] != aliceURI {
		t.Errorf("graph node not ensured: %v", graph.ensured)
	}
}

func TestResolveAccountReference(t *testing.T) {
	t.Parallel()

	known := &core.Actor{ID: uuid.New(), URI: aliceURI, Username: "alice"}
	fetcher := &fakeFetcher{accounts: map[string]string{"alice@remote.example": aliceURI}}
	d := newDirectory(t, newFakeActors(known), &nopGraph{}, fetcher)

	got, err := d.Resolve(t.Context(), "alice@remote.example")
	if err != nil {
		t.Fatal(err)
	}
	if got.URI != aliceURI {
		t.Errorf("unexpected URI: %s", got.URI)
	}
}

func TestResolveLosesInsertRace(t *testing.T) {
	t.Parallel()

	actors := newFakeActors()
	actors.insertErr = core.ErrConflict
	winner := &core.Actor{ID: uuid.New(), URI: aliceURI, Username: "alice"}

	fetcher := &fakeFetcher{actors: map[string]*apub.Actor{aliceURI: aliceDoc()}}
	d := newDirectory(t, actors, &nopGraph{}, fetcher)

	// The concurrent winner's record appears between insert and re-read.
	actors.byURI[aliceURI] = winner

	got, err := d.Resolve(t.Context(), aliceURI)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != winner.ID {
		t.Error("losing the insert race should re-read the winner's record")
	}
}

func TestResolveSoftFailures(t *testing.T) {
	t.Parallel()

	t.Run("discovery failed", func(t *testing.T) {
		t.Parallel()

		d := newDirectory(t, newFakeActors(), &nopGraph{}, &fakeFetcher{})

		_, err := d.Resolve(t.Context(), "ghost@remote.example")
		if !errors.Is(err, core.ErrActorResolutionFailed) {
			t.Errorf("expected ErrActorResolutionFailed, got %v", err)
		}
	})

	t.Run("profile fetch failed", func(t *testing.T) {
		t.Parallel()

		fetcher := &fakeFetcher{fetchErr: errors.New("connection refused")}
		d := newDirectory(t, newFakeActors(), &nopGraph{}, fetcher)

		_, err := d.Resolve(t.Context(), aliceURI)
		if !errors.Is(err, core.ErrActorResolutionFailed) {
			t.Errorf("expected ErrActorResolutionFailed, got %v", err)
		}
	})
}
