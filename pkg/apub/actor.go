package apub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidActor = errors.New("apub: invalid actor document")

// Actor is a parsed remote actor profile document.
type Actor struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Outbox            string `json:"outbox"`
	Followers         string `json:"followers"`
	Following         string `json:"following"`
	Icon              Image  `json:"icon"`
}

type Image struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

// Domain returns the host part of the actor's canonical URI.
func (a *Actor) Domain() string {
	u, err := url.Parse(a.ID)
	if err != nil {
		return ""
	}
	return u.Host
}

// ParseActor validates a raw actor document: the id and inbox must be
// present, every embedded URL must be a well-formed absolute URL, and a
// missing outbox is inferred from the actor URI (some deployments omit
// it).
func ParseActor(raw json.RawMessage) (*Actor, error) {
	var actor Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		return nil, errors.Join(ErrInvalidActor, err)
	}

	if actor.ID == "" || actor.Inbox == "" {
		return nil, fmt.Errorf("%w: missing id or inbox", ErrInvalidActor)
	}
	if actor.Outbox == "" {
		actor.Outbox = strings.TrimSuffix(actor.ID, "/") + "/outbox"
	}

	for _, u := range []string{actor.ID, actor.Inbox, actor.Outbox, actor.Followers, actor.Following, actor.Icon.URL} {
		if u == "" {
			continue
		}
		if !IsAbsoluteURL(u) {
			return nil, fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidActor, u)
		}
	}

	return &actor, nil
}
