package persistence

import (
	"github.com/zhulik/pal"

	"skein/internal/core"
	"skein/internal/persistence/actors"
	"skein/internal/persistence/follows"
	"skein/internal/persistence/inbox"
	"skein/internal/persistence/likes"
	"skein/internal/persistence/mirror"
	"skein/internal/persistence/posts"
)

func Provide() pal.ServiceDef {
	return pal.ProvideList(
		pal.Provide[core.DB](&DB{}),
		pal.Provide[core.ActorRepository](&actors.Repository{}),
		pal.Provide[core.FollowRepository](&follows.Repository{}),
		pal.Provide[core.InboxRepository](&inbox.Repository{}),
		pal.Provide[core.PostRepository](&posts.Repository{}),
		pal.Provide[core.MirrorRepository](&mirror.Repository{}),
		pal.Provide[core.LikeRepository](&likes.Repository{}),
	)
}
