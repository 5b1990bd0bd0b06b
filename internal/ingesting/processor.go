// Package ingesting dispatches verified inbound activities to their
// kind-specific effects and writes the canonical inbox record. The
// dispatch shares two invariants across kinds: the idempotency gate on
// the sender-assigned origin id up front, and the canonical record
// written after the effect so a rejection never leaves an orphaned
// record. Follow is the one exception with the edge persisted first.
package ingesting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"skein/internal/config"
	"skein/internal/core"
	"skein/pkg/apub"
)

const summaryLimit = 280

var activitiesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "skein_activities_processed_total",
	Help: "The total number of processed inbox activities",
}, []string{"type", "outcome"})

type Processor struct {
	Logger *slog.Logger
	Config *config.Config

	Directory     core.ActorDirectory
	Relationships core.RelationshipStore
	Mirror        core.PostMirror
	Inbox         core.InboxRepository
	Actors        core.ActorRepository
	Posts         core.PostRepository
	Likes         core.LikeRepository
	Graph         core.GraphStore
	Client        core.Fetcher
	Deliveries    core.DeliveryQueue
}

func (p *Processor) Init(_ context.Context) error {
	p.Logger = p.Logger.With("component", "ingesting.Processor")
	return nil
}

// Process handles one delivered activity. A nil return acknowledges the
// delivery; a rejection error (core.IsRejection) fails it without
// corrupting committed state; anything else is transient and safe to
// retry.
func (p *Processor) Process(ctx context.Context, inboxID string, act *apub.Activity) error {
	if act.ID != "" {
		dup, err := p.Inbox.ExistsByOrigin(ctx, act.ID)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		if dup {
			p.Logger.Info("duplicate delivery acknowledged", "origin", act.ID, "type", act.Type)
			activitiesProcessed.WithLabelValues(act.Type, "duplicate").Inc()
			return nil
		}
	}

	if act.ActorIRI() == "" {
		activitiesProcessed.WithLabelValues(act.Type, "rejected").Inc()
		return fmt.Errorf("%w: activity has no actor", core.ErrValidationFailed)
	}

	var err error
	switch act.Type {
	case apub.TypeFollow:
		err = p.processFollow(ctx, inboxID, act)
	case apub.TypeCreate:
		err = p.processCreate(ctx, inboxID, act)
	case apub.TypeDelete:
		err = p.processDelete(ctx, inboxID, act)
	case apub.TypeUpdate:
		err = p.processUpdate(ctx, inboxID, act)
	case apub.TypeUndo:
		err = p.processUndo(ctx, inboxID, act)
	case apub.TypeLike:
		err = p.processLike(ctx, inboxID, act)
	default:
		p.Logger.Warn("unsupported activity type", "type", act.Type, "actor", act.ActorIRI())
		err = p.record(ctx, inboxID, act, nil, "")
	}

	activitiesProcessed.WithLabelValues(act.Type, outcome(err)).Inc()
	return err
}

// processFollow resolves both endpoints, persists the edge before the
// canonical record, then queues an Accept back to the follower. A
// pre-existing edge under a fresh activity id is a conflict, distinct
// from the origin-id gate.
func (p *Processor) processFollow(ctx context.Context, inboxID string, act *apub.Activity) error {
	actor, err := p.Directory.Resolve(ctx, act.ActorIRI())
	if err != nil {
		return err
	}

	objectRef := act.ObjectIRI()
	if objectRef == "" {
		return fmt.Errorf("%w: follow has no object", core.ErrValidationFailed)
	}
	object, err := p.Directory.Resolve(ctx, objectRef)
	if err != nil {
		return err
	}

	if _, err := p.Relationships.Create(ctx, actor, object, act.ID); err != nil {
		return err
	}

	if err := p.record(ctx, inboxID, act, actor, ""); err != nil {
		return err
	}

	p.queueAccept(ctx, actor, object, act)
	return nil
}

// processCreate mirrors the referenced object. Fetch or parse failure
// degrades to an acknowledged delivery without a mirror entry.
func (p *Processor) processCreate(ctx context.Context, inboxID string, act *apub.Activity) error {
	actor, err := p.Directory.Resolve(ctx, act.ActorIRI())
	if err != nil {
		return err
	}

	note, err := p.loadObject(ctx, act)

	summary := ""
	if err != nil {
		p.Logger.Warn("create object unavailable, acknowledging without mirror",
			"object", act.ObjectIRI(), "error", err)
		activitiesProcessed.WithLabelValues(act.Type, "degraded").Inc()
	} else {
		if _, err := p.Mirror.Upsert(ctx, note, actor.URI, act.ID); err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		summary = truncate(note.ContentText, summaryLimit)
	}

	return p.record(ctx, inboxID, act, actor, summary)
}

func (p *Processor) processDelete(ctx context.Context, inboxID string, act *apub.Activity) error {
	objectURI := act.ObjectIRI()

	if objectURI != "" {
		removed, err := p.Mirror.Remove(ctx, objectURI)
		if err != nil {
			return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		if removed {
			p.Logger.Info("mirror entry deleted", "object", objectURI)
		}
	}

	return p.record(ctx, inboxID, act, p.knownActor(ctx, act.ActorIRI()), "")
}

// processUpdate distinguishes profile updates (actor id equals object
// id) from content updates. Profile diffs apply to remote actors only;
// content diffs require the activity actor to own the mirror entry.
func (p *Processor) processUpdate(ctx context.Context, inboxID string, act *apub.Activity) error {
	actorURI := act.ActorIRI()

	if actorURI == act.ObjectIRI() {
		p.updateProfile(ctx, actorURI, act)
		return p.record(ctx, inboxID, act, p.knownActor(ctx, actorURI), "")
	}

	raw, ok := act.EmbeddedObject()
	if !ok {
		p.Logger.Warn("update without embedded object ignored", "actor", actorURI)
		return p.record(ctx, inboxID, act, p.knownActor(ctx, actorURI), "")
	}

	note, err := apub.ParseObject(raw)
	if err != nil || !apub.IsContentType(note.Type) {
		p.Logger.Warn("unsupported update object ignored", "actor", actorURI, "error", err)
		return p.record(ctx, inboxID, act, p.knownActor(ctx, actorURI), "")
	}

	if err := p.Mirror.ApplyUpdate(ctx, note, actorURI); err != nil {
		if errors.Is(err, core.ErrOwnershipMismatch) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	return p.record(ctx, inboxID, act, p.knownActor(ctx, actorURI), truncate(note.ContentText, summaryLimit))
}

// updateProfile applies field-level diffs to an already-known remote
// actor. Unknown actors degrade to a no-op; local actors are never
// mutated by federation.
func (p *Processor) updateProfile(ctx context.Context, actorURI string, act *apub.Activity) {
	known, err := p.Actors.ByURI(ctx, actorURI)
	if err != nil {
		p.Logger.Info("profile update for unknown actor ignored", "actor", actorURI)
		return
	}
	if known.Local {
		p.Logger.Warn("refusing federated update of local actor", "actor", actorURI)
		return
	}

	raw, ok := act.EmbeddedObject()
	if !ok {
		p.Logger.Info("profile update without document ignored", "actor", actorURI)
		return
	}
	doc, err := apub.ParseActor(raw)
	if err != nil {
		p.Logger.Warn("profile update unparsable", "actor", actorURI, "error", err)
		return
	}

	changed := false
	if doc.Name != "" && doc.Name != known.DisplayName {
		known.DisplayName = doc.Name
		changed = true
	}
	if summary := apub.StripHTML(doc.Summary); summary != "" && summary != known.Summary {
		known.Summary = summary
		changed = true
	}
	if doc.Icon.URL != "" && doc.Icon.URL != known.AvatarURL {
		known.AvatarURL = doc.Icon.URL
		changed = true
	}

	if !changed {
		return
	}

	known.UpdatedAt = time.Now()
	if err := p.Actors.Update(ctx, known); err != nil {
		p.Logger.Error("profile update failed", "actor", actorURI, "error", err)
		return
	}
	p.Logger.Info("remote profile updated", "actor", actorURI)
}

// processUndo dispatches on the wrapped activity's kind. Undoing
// something that never happened is logged, never an error.
func (p *Processor) processUndo(ctx context.Context, inboxID string, act *apub.Activity) error {
	wrapped, err := act.Wrapped()
	if err != nil {
		p.Logger.Warn("undo with unparsable object ignored", "actor", act.ActorIRI(), "error", err)
		return p.record(ctx, inboxID, act, p.knownActor(ctx, act.ActorIRI()), "")
	}

	switch wrapped.Type {
	case apub.TypeFollow:
		if err := p.undoFollow(ctx, act, wrapped); err != nil {
			return err
		}
	case apub.TypeLike:
		if err := p.undoLike(ctx, act, wrapped); err != nil {
			return err
		}
	default:
		p.Logger.Warn("unsupported undo kind ignored", "kind", wrapped.Type)
	}

	return p.record(ctx, inboxID, act, p.knownActor(ctx, act.ActorIRI()), "")
}

func (p *Processor) undoFollow(ctx context.Context, act, wrapped *apub.Activity) error {
	actorURI := wrapped.ActorIRI()
	if actorURI == "" {
		actorURI = act.ActorIRI()
	}
	objectURI := wrapped.ObjectIRI()

	var (
		removed bool
		err     error
	)
	if objectURI != "" {
		removed, err = p.Relationships.Remove(ctx, actorURI, objectURI)
	} else if wrapped.ID != "" {
		removed, err = p.Relationships.RemoveByActivityURI(ctx, wrapped.ID)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	if !removed {
		p.Logger.Info("undo follow for unknown edge", "actor", actorURI, "object", objectURI)
	}
	return nil
}

func (p *Processor) undoLike(ctx context.Context, act, wrapped *apub.Activity) error {
	objectURI := wrapped.ObjectIRI()
	if objectURI == "" {
		p.Logger.Info("undo like without object ignored", "actor", act.ActorIRI())
		return nil
	}

	removed, err := p.Likes.Delete(ctx, act.ActorIRI(), objectURI)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	if !removed {
		p.Logger.Info("undo like for unknown like", "actor", act.ActorIRI(), "object", objectURI)
		return nil
	}

	p.bumpLikes(ctx, objectURI, -1)

	if err := p.Graph.RemoveLike(ctx, act.ActorIRI(), objectURI); err != nil {
		p.Logger.Warn("graph like removal failed", "object", objectURI, "error", err)
	}
	return nil
}

// processLike records a federated like. Actor resolution is
// best-effort here; a like from an unresolvable actor still counts
// against the object by URI.
func (p *Processor) processLike(ctx context.Context, inboxID string, act *apub.Activity) error {
	objectURI := act.ObjectIRI()
	if objectURI == "" {
		return fmt.Errorf("%w: like has no object", core.ErrValidationFailed)
	}

	actor, err := p.Directory.Resolve(ctx, act.ActorIRI())
	if err != nil {
		p.Logger.Warn("like actor unresolved, recording by URI", "actor", act.ActorIRI())
		actor = nil
	}

	like := &core.Like{
		ID:          uuid.New(),
		ActorURI:    act.ActorIRI(),
		ObjectURI:   objectURI,
		ActivityURI: act.ID,
		IsLocal:     false,
		CreatedAt:   time.Now(),
	}

	err = p.Likes.Insert(ctx, like)
	if err != nil {
		if !errors.Is(err, core.ErrConflict) {
			return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
		}
		p.Logger.Info("like already recorded", "actor", act.ActorIRI(), "object", objectURI)
	} else {
		p.bumpLikes(ctx, objectURI, 1)

		if err := p.Graph.AddLike(ctx, act.ActorIRI(), objectURI); err != nil {
			p.Logger.Warn("graph like projection failed", "object", objectURI, "error", err)
		}
	}

	return p.record(ctx, inboxID, act, actor, "")
}

// bumpLikes adjusts the engagement counter on whichever store holds the
// object: local posts or the remote mirror.
func (p *Processor) bumpLikes(ctx context.Context, objectURI string, delta int64) {
	if _, err := p.Posts.ByActivityURI(ctx, objectURI); err == nil {
		if err := p.Posts.AddLikeCount(ctx, objectURI, delta); err != nil {
			p.Logger.Warn("like count update failed", "object", objectURI, "error", err)
		}
		return
	}

	if err := p.Mirror.AddEngagement(ctx, objectURI, delta, 0, 0); err != nil {
		p.Logger.Warn("mirror engagement update failed", "object", objectURI, "error", err)
	}
}

// loadObject prefers the embedded object and falls back to fetching the
// referenced URI.
func (p *Processor) loadObject(ctx context.Context, act *apub.Activity) (*apub.Note, error) {
	if raw, ok := act.EmbeddedObject(); ok {
		return apub.ParseObject(raw)
	}
	if uri := act.ObjectIRI(); uri != "" {
		note, err := p.Client.FetchObject(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", core.ErrMirrorFetchFailed, err)
		}
		return note, nil
	}
	return nil, fmt.Errorf("%w: create has no object", core.ErrValidationFailed)
}

// record writes the canonical inbox activity. A missing origin id gets
// a server-assigned activity URI. Losing the insert race to a
// concurrent duplicate delivery is an acknowledged no-op.
func (p *Processor) record(ctx context.Context, inboxID string, act *apub.Activity, actor *core.Actor, objectSummary string) error {
	id := uuid.New()

	activityURI := act.ID
	var origin *string
	if act.ID != "" {
		o := act.ID
		origin = &o
	} else {
		activityURI = fmt.Sprintf("https://%s/activities/%s", p.Config.Domain, id)
	}

	rec := &core.InboxActivity{
		ID:            id,
		InboxID:       inboxID,
		Type:          act.Type,
		ActivityURI:   activityURI,
		Origin:        origin,
		ActorURI:      act.ActorIRI(),
		ObjectURI:     act.ObjectIRI(),
		TargetURI:     act.Target,
		ObjectSummary: objectSummary,
		CreatedAt:     time.Now(),
	}
	if actor != nil {
		rec.Actor = actor.Info()
	}

	err := p.Inbox.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateActivity) {
			p.Logger.Info("concurrent duplicate delivery absorbed", "origin", act.ID)
			return nil
		}
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return nil
}

// queueAccept hands an Accept activity to the delivery queue. Failure
// is logged only: the follow edge stays, the accept may be re-sent by
// redelivery of the follow.
func (p *Processor) queueAccept(ctx context.Context, follower, followed *core.Actor, follow *apub.Activity) {
	actorRaw, err := json.Marshal(followed.URI)
	if err != nil {
		return
	}
	objectRaw, err := json.Marshal(follow)
	if err != nil {
		p.Logger.Warn("accept payload marshal failed", "error", err)
		return
	}

	accept := apub.Activity{
		Context: apub.ActivityStreamsContext,
		ID:      fmt.Sprintf("https://%s/activities/%s", p.Config.Domain, uuid.New()),
		Type:    apub.TypeAccept,
		Actor:   actorRaw,
		Object:  objectRaw,
	}

	payload, err := json.Marshal(accept)
	if err != nil {
		p.Logger.Warn("accept payload marshal failed", "error", err)
		return
	}

	err = p.Deliveries.Enqueue(ctx, core.Delivery{
		From:     followed.URI,
		To:       follower.URI,
		InboxURI: follower.InboxURI,
		Payload:  payload,
	})
	if err != nil {
		p.Logger.Warn("accept enqueue failed", "to", follower.URI, "error", err)
		return
	}
	p.Logger.Info("accept queued", "from", followed.URI, "to", follower.URI)
}

// knownActor looks up an already-materialized actor for denormalized
// display fields, without triggering a bootstrap.
func (p *Processor) knownActor(ctx context.Context, uri string) *core.Actor {
	actor, err := p.Actors.ByURI(ctx, uri)
	if err != nil {
		return nil
	}
	return actor
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case core.IsRejection(err):
		return "rejected"
	default:
		return "error"
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
