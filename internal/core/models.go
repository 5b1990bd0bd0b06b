package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorInfo is the denormalized actor surface carried on every edge and
// inbox record, so read paths never need a second resolution round-trip.
type ActorInfo struct {
	URI         string `gorm:"column:uri" json:"uri"`
	Handle      string `gorm:"column:handle" json:"handle"`
	DisplayName string `gorm:"column:display_name" json:"displayName"`
	AvatarURL   string `gorm:"column:avatar_url" json:"avatarUrl"`
}

// Actor is a local user or a lazily-materialized remote actor, keyed by
// its stable URI. Remote actors mutate only via Update activities.
type Actor struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	URI   string    `gorm:"uniqueIndex;not null"`
	Local bool

	Username    string
	Domain      string
	DisplayName string
	Summary     string
	AvatarURL   string

	InboxURI     string
	OutboxURI    string
	FollowersURI string
	FollowingURI string

	Private bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Actor) TableName() string {
	return "actors"
}

func (a *Actor) Info() ActorInfo {
	return ActorInfo{
		URI:         a.URI,
		Handle:      a.Username + "@" + a.Domain,
		DisplayName: a.DisplayName,
		AvatarURL:   a.AvatarURL,
	}
}

// FollowEdge is the authoritative follow relationship. At most one edge
// exists per (actor_uri, object_uri) pair.
type FollowEdge struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActorURI    string    `gorm:"uniqueIndex:ux_follows_actor_object;not null"`
	ObjectURI   string    `gorm:"uniqueIndex:ux_follows_actor_object;not null"`
	ActivityURI string

	Actor  ActorInfo `gorm:"embedded;embeddedPrefix:actor_"`
	Object ActorInfo `gorm:"embedded;embeddedPrefix:object_"`

	CreatedAt time.Time
}

func (FollowEdge) TableName() string {
	return "follows"
}

// FollowCounts is the counts projection for a single actor.
type FollowCounts struct {
	Following int64 `json:"following"`
	Followers int64 `json:"followers"`
}

// InboxActivity is the canonical record of a processed activity. Origin
// is the sender-assigned id and, when present, the idempotency key;
// ActivityURI is server-assigned if the origin did not supply one.
type InboxActivity struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	InboxID string    `gorm:"index;not null"`
	Type    string    `gorm:"not null"`

	ActivityURI string  `gorm:"uniqueIndex;not null"`
	Origin      *string `gorm:"uniqueIndex"`

	ActorURI  string `gorm:"index"`
	ObjectURI string
	TargetURI string

	Actor         ActorInfo `gorm:"embedded;embeddedPrefix:actor_"`
	ObjectSummary string

	CreatedAt time.Time
}

func (InboxActivity) TableName() string {
	return "inbox_activities"
}

// Post is a canonical local post. Local likes live in the LikedBy array;
// federated likes are standalone Like records. Total engagement is the
// union of both.
type Post struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuthorURI   string    `gorm:"index;not null"`
	Caption     string
	MediaURL    string
	MediaType   string
	ActivityURI string `gorm:"uniqueIndex;not null"`

	LikedBy   []string `gorm:"serializer:json"`
	LikeCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Post) TableName() string {
	return "posts"
}

// Attachment is a type-classified media reference on a mirrored post.
type Attachment struct {
	URL       string `json:"url"`
	MediaType string `json:"mediaType"`
	Kind      string `json:"kind"`
}

// RemotePost mirrors a post that lives on another server. Engagement
// counters are denormalized because the origin is not continuously
// polled.
type RemotePost struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActivityURI string
	ActorURI    string `gorm:"index;not null"`
	ObjectURI   string `gorm:"uniqueIndex;not null"`

	Content     string
	ContentHTML string
	Attachments []Attachment `gorm:"serializer:json"`
	PublishedAt time.Time

	LikeCount  int64
	ReplyCount int64
	ShareCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RemotePost) TableName() string {
	return "remote_posts"
}

// Like records a single federated engagement. Unique per
// (actor_uri, object_uri).
type Like struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ActorURI    string    `gorm:"uniqueIndex:ux_likes_actor_object;not null"`
	ObjectURI   string    `gorm:"uniqueIndex:ux_likes_actor_object;not null"`
	ActivityURI string
	IsLocal     bool

	CreatedAt time.Time
}

func (Like) TableName() string {
	return "likes"
}

// PostCandidate is what a graph traversal returns: the graph store only
// knows identifiers and timestamps, never content.
type PostCandidate struct {
	URI       string
	CreatedAt time.Time
}

// FeedPost is a hydrated recommendation result.
type FeedPost struct {
	URI         string       `json:"uri"`
	Author      ActorInfo    `json:"author"`
	Content     string       `json:"content"`
	MediaURL    string       `json:"mediaUrl,omitempty"`
	MediaType   string       `json:"mediaType,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	LikeCount   int64        `json:"likeCount"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// Delivery is a queued outbound activity delivery.
type Delivery struct {
	From     string          `json:"from"`
	To       string          `json:"to"`
	InboxURI string          `json:"inboxUri"`
	Payload  json.RawMessage `json:"payload"`
}
