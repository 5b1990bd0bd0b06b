// Package resolving implements the actor directory: one lookup surface
// over local users and cached remote actors, with lazy bootstrap of
// remote actors on first reference.
package resolving

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skein/internal/core"
)

var resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skein_actor_resolutions_total",
	Help: "The total number of actor resolutions",
}, []string{"outcome"})

type Directory struct {
	Logger *slog.Logger
	Actors core.ActorRepository
	Graph  core.GraphStore
	Client core.Fetcher
}

func (d *Directory) Init(_ context.Context) error {
	d.Logger = d.Logger.With("component", "resolving.Directory")
	return nil
}

// Resolve turns an actor reference (a canonical URI or a user@domain
// account) into an actor record. Unknown remote actors are bootstrapped
// via discovery and profile fetch; discovery failure resolves soft with
// ErrActorResolutionFailed, it never panics the surrounding delivery.
func (d *Directory) Resolve(ctx context.Context, ref string) (*core.Actor, error) {
	uri := ref

	if isAccount(ref) {
		resolved, err := d.Client.ResolveAccount(ctx, ref)
		if err != nil {
			resolutions.WithLabelValues("discovery_failed").Inc()
			d.Logger.Warn("account discovery failed", "account", ref, "error", err)
			return nil, fmt.Errorf("%w: %w", core.ErrActorResolutionFailed, err)
		}
		uri = resolved
	}

	actor, err := d.Actors.ByURI(ctx, uri)
	if err == nil {
		resolutions.WithLabelValues("known").Inc()
		return actor, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	return d.bootstrap(ctx, uri)
}

// bootstrap cold-starts a remote actor: fetch the profile document,
// validate it, persist exactly one record. A concurrent bootstrap of
// the same URI loses the insert race and re-reads.
func (d *Directory) bootstrap(ctx context.Context, uri string) (*core.Actor, error) {
	doc, err := d.Client.FetchActor(ctx, uri)
	if err != nil {
		resolutions.WithLabelValues("fetch_failed").Inc()
		d.Logger.Warn("actor profile fetch failed", "uri", uri, "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrActorResolutionFailed, err)
	}

	actor := &core.Actor{
		ID:           uuid.New(),
		URI:          doc.ID,
		Local:        false,
		Username:     doc.PreferredUsername,
		Domain:       doc.Domain(),
		DisplayName:  doc.Name,
		Summary:      doc.Summary,
		AvatarURL:    doc.Icon.URL,
		InboxURI:     doc.Inbox,
		OutboxURI:    doc.Outbox,
		FollowersURI: doc.Followers,
		FollowingURI: doc.Following,
	}

	err = d.Actors.Insert(ctx, actor)
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			resolutions.WithLabelValues("known").Inc()
			return d.Actors.ByURI(ctx, doc.ID)
		}
		return nil, err
	}

	if err := d.Graph.EnsureActor(ctx, actor.URI); err != nil {
		d.Logger.Warn("graph node creation failed", "uri", actor.URI, "error", err)
	}

	resolutions.WithLabelValues("bootstrapped").Inc()
	d.Logger.Info("bootstrapped remote actor", "uri", actor.URI, "handle", actor.Username+"@"+actor.Domain)

	return actor, nil
}

// isAccount reports whether ref looks like user@domain rather than a
// URI.
func isAccount(ref string) bool {
	return !strings.Contains(ref, "://") && strings.Contains(ref, "@")
}
