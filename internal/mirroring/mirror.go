// Package mirroring maintains local copies of remote posts referenced
// by incoming Create/Update/Delete activities. The mirror feeds the
// recommendation and feed readers; the remote origin is never polled.
package mirroring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"skein/internal/core"
	"skein/pkg/apub"
)

type Mirror struct {
	Logger *slog.Logger
	Posts  core.MirrorRepository
	Graph  core.GraphStore
}

func (m *Mirror) Init(_ context.Context) error {
	m.Logger = m.Logger.With("component", "mirroring.Mirror")
	return nil
}

// Upsert stores or refreshes the mirror entry keyed by the object id
// and projects the post into the graph store best-effort.
func (m *Mirror) Upsert(ctx context.Context, note *apub.Note, actorURI, activityURI string) (*core.RemotePost, error) {
	post := &core.RemotePost{
		ID:          uuid.New(),
		ActivityURI: activityURI,
		ActorURI:    actorURI,
		ObjectURI:   note.ID,
		Content:     note.ContentText,
		ContentHTML: note.ContentHTML,
		Attachments: attachments(note),
		PublishedAt: note.Published,
	}

	if err := m.Posts.Upsert(ctx, post); err != nil {
		return nil, err
	}

	if err := m.Graph.AddPost(ctx, note.ID, actorURI, note.Published); err != nil {
		m.Logger.Warn("graph post projection failed", "object", note.ID, "error", err)
	}

	return post, nil
}

// Remove drops the mirror entry if present and reports whether one
// existed.
func (m *Mirror) Remove(ctx context.Context, objectURI string) (bool, error) {
	removed, err := m.Posts.Remove(ctx, objectURI)
	if err != nil {
		return false, err
	}

	if removed {
		if err := m.Graph.RemovePost(ctx, objectURI); err != nil {
			m.Logger.Warn("graph post removal failed", "object", objectURI, "error", err)
		}
	}

	return removed, nil
}

func (m *Mirror) Get(ctx context.Context, objectURI string) (*core.RemotePost, error) {
	return m.Posts.ByObjectURI(ctx, objectURI)
}

// ApplyUpdate applies field-level diffs from an Update activity. The
// activity's actor must match the recorded author; a mismatch rejects
// without mutating. An update for an object never mirrored is a no-op.
func (m *Mirror) ApplyUpdate(ctx context.Context, note *apub.Note, actorURI string) error {
	existing, err := m.Posts.ByObjectURI(ctx, note.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			m.Logger.Info("update for unmirrored object ignored", "object", note.ID)
			return nil
		}
		return err
	}

	if existing.ActorURI != actorURI {
		return fmt.Errorf("%w: %s is not %s", core.ErrOwnershipMismatch, actorURI, existing.ActorURI)
	}

	changed := false
	if note.ContentHTML != existing.ContentHTML {
		existing.ContentHTML = note.ContentHTML
		existing.Content = note.ContentText
		changed = true
	}
	if updated := attachments(note); !sameAttachments(updated, existing.Attachments) {
		existing.Attachments = updated
		changed = true
	}
	if !note.Published.IsZero() && !note.Published.Equal(existing.PublishedAt) {
		existing.PublishedAt = note.Published
		changed = true
	}

	if !changed {
		return nil
	}

	existing.UpdatedAt = time.Now()
	return m.Posts.Update(ctx, existing)
}

func (m *Mirror) AddEngagement(ctx context.Context, objectURI string, likes, replies, shares int64) error {
	return m.Posts.AddEngagement(ctx, objectURI, likes, replies, shares)
}

func attachments(note *apub.Note) []core.Attachment {
	if len(note.Attachments) == 0 {
		return nil
	}
	out := make([]core.Attachment, len(note.Attachments))
	for i, a := range note.Attachments {
		out[i] = core.Attachment{URL: a.URL, MediaType: a.MediaType, Kind: a.Kind}
	}
	return out
}

func sameAttachments(a, b []core.Attachment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
