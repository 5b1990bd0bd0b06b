// Package apub is the federation toolkit surface: wire shapes for
// activities, a fail-closed normalizer for heterogeneous remote objects,
// and an HTTP client for discovery, document fetches and inbox delivery.
package apub

import (
	"encoding/json"
	"errors"
)

const ActivityStreamsContext = "https://www.w3.org/ns/activitystreams"

// Activity kinds handled by the ingestion core.
const (
	TypeFollow = "Follow"
	TypeCreate = "Create"
	TypeUpdate = "Update"
	TypeDelete = "Delete"
	TypeUndo   = "Undo"
	TypeLike   = "Like"
	TypeAccept = "Accept"
)

var ErrMalformedActivity = errors.New("apub: malformed activity")

// Activity is a verified, deserialized activity as handed over by the
// inbound edge. Actor and Object may each be a bare IRI string or an
// embedded object; the accessors below normalize both shapes.
type Activity struct {
	Context any             `json:"@context,omitempty"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Actor   json.RawMessage `json:"actor,omitempty"`
	Object  json.RawMessage `json:"object,omitempty"`
	Target  string          `json:"target,omitempty"`
}

// ActorIRI returns the acting actor's IRI, or "" if absent.
func (a *Activity) ActorIRI() string {
	return iriOf(a.Actor)
}

// ObjectIRI returns the object's IRI, or "" if absent.
func (a *Activity) ObjectIRI() string {
	return iriOf(a.Object)
}

// EmbeddedObject reports the raw object when it is an embedded JSON
// object rather than a bare IRI.
func (a *Activity) EmbeddedObject() (json.RawMessage, bool) {
	if len(a.Object) == 0 || a.Object[0] != '{' {
		return nil, false
	}
	return a.Object, true
}

// Wrapped unwraps the inner activity of an Undo (or Accept). It fails
// if the object is not an embedded activity.
func (a *Activity) Wrapped() (*Activity, error) {
	raw, ok := a.EmbeddedObject()
	if !ok {
		return nil, ErrMalformedActivity
	}

	var inner Activity
	if err := json.Unmarshal(raw, &inner); err != nil {
		return nil, errors.Join(ErrMalformedActivity, err)
	}
	if inner.Type == "" {
		return nil, ErrMalformedActivity
	}
	return &inner, nil
}

// iriOf extracts an IRI from a value that is either a JSON string or an
// object carrying an "id" field.
func iriOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{':
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return ""
		}
		return obj.ID
	}
	return ""
}
