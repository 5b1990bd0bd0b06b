package core

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/gorm"

	"skein/pkg/apub"
)

// DB is the document store handle. It is the single source of truth for
// every existence check that feeds an idempotency decision.
type DB interface {
	Model(a any) *gorm.DB
	EstimatedCount(tableName string) (int64, error)
	DB() (*sql.DB, error)
}

// KeyValueClient is a small KV surface over the cache bucket.
type KeyValueClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type ActorRepository interface {
	ByURI(ctx context.Context, uri string) (*Actor, error)
	ByUsername(ctx context.Context, username string) (*Actor, error)
	Insert(ctx context.Context, actor *Actor) error
	Update(ctx context.Context, actor *Actor) error
}

type FollowRepository interface {
	Insert(ctx context.Context, edge *FollowEdge) error
	Delete(ctx context.Context, actorURI, objectURI string) (bool, error)
	Exists(ctx context.Context, actorURI, objectURI string) (bool, error)
	ByActivityURI(ctx context.Context, activityURI string) (*FollowEdge, error)
	Followers(ctx context.Context, objectURI string, offset, limit int) ([]FollowEdge, error)
	Following(ctx context.Context, actorURI string, offset, limit int) ([]FollowEdge, error)
	Counts(ctx context.Context, uri string) (FollowCounts, error)
}

type InboxRepository interface {
	Insert(ctx context.Context, activity *InboxActivity) error
	ExistsByOrigin(ctx context.Context, origin string) (bool, error)
}

type PostRepository interface {
	ByActivityURI(ctx context.Context, uri string) (*Post, error)
	ByActivityURIs(ctx context.Context, uris []string) ([]Post, error)
	AddLikeCount(ctx context.Context, uri string, delta int64) error
}

type MirrorRepository interface {
	Upsert(ctx context.Context, post *RemotePost) error
	Update(ctx context.Context, post *RemotePost) error
	Remove(ctx context.Context, objectURI string) (bool, error)
	ByObjectURI(ctx context.Context, objectURI string) (*RemotePost, error)
	ByObjectURIs(ctx context.Context, uris []string) ([]RemotePost, error)
	AddEngagement(ctx context.Context, objectURI string, likes, replies, shares int64) error
}

type LikeRepository interface {
	Insert(ctx context.Context, like *Like) error
	Delete(ctx context.Context, actorURI, objectURI string) (bool, error)
}

// GraphStore is the derived traversal index. It may lag or drop writes;
// callers log failures and move on, the document store stays
// authoritative.
type GraphStore interface {
	EnsureActor(ctx context.Context, uri string) error
	AddFollow(ctx context.Context, actorURI, objectURI string) error
	RemoveFollow(ctx context.Context, actorURI, objectURI string) error
	AddPost(ctx context.Context, postURI, authorURI string, createdAt time.Time) error
	RemovePost(ctx context.Context, postURI string) error
	AddLike(ctx context.Context, actorURI, postURI string) error
	RemoveLike(ctx context.Context, actorURI, postURI string) error

	LikedByFollowed(ctx context.Context, actorURI string, limit int) ([]PostCandidate, error)
	SecondDegree(ctx context.Context, actorURI string, limit int) ([]PostCandidate, error)
	Trending(ctx context.Context, window time.Duration, limit int) ([]PostCandidate, error)
}

// Fetcher is the outbound federation surface: discovery, document
// fetches and inbox delivery. Implementations impose a bounded timeout.
type Fetcher interface {
	ResolveAccount(ctx context.Context, acct string) (string, error)
	FetchActor(ctx context.Context, uri string) (*apub.Actor, error)
	FetchObject(ctx context.Context, uri string) (*apub.Note, error)
	Deliver(ctx context.Context, inboxURI string, payload []byte) error
}

// ActorDirectory resolves an actor reference to a local or remote actor
// record, bootstrapping unknown remote actors on first sight.
type ActorDirectory interface {
	Resolve(ctx context.Context, ref string) (*Actor, error)
}

type RelationshipStore interface {
	Create(ctx context.Context, actor, object *Actor, activityURI string) (*FollowEdge, error)
	Remove(ctx context.Context, actorURI, objectURI string) (bool, error)
	RemoveByActivityURI(ctx context.Context, activityURI string) (bool, error)
	IsFollowing(ctx context.Context, actorURI, objectURI string) (bool, error)
	Followers(ctx context.Context, uri string, page, limit int) ([]FollowEdge, error)
	Following(ctx context.Context, uri string, page, limit int) ([]FollowEdge, error)
	Counts(ctx context.Context, uri string) (FollowCounts, error)
}

type PostMirror interface {
	Upsert(ctx context.Context, note *apub.Note, actorURI, activityURI string) (*RemotePost, error)
	Remove(ctx context.Context, objectURI string) (bool, error)
	Get(ctx context.Context, objectURI string) (*RemotePost, error)
	ApplyUpdate(ctx context.Context, note *apub.Note, actorURI string) error
	AddEngagement(ctx context.Context, objectURI string, likes, replies, shares int64) error
}

// DeliveryQueue hands outbound activities to the at-least-once delivery
// worker. Enqueue failure never rolls back committed state.
type DeliveryQueue interface {
	Enqueue(ctx context.Context, d Delivery) error
}
