package likes

import (
	"context"

	"skein/internal/core"
	"skein/internal/persistence/pg"
)

type Repository struct {
	DB core.DB
}

func (r *Repository) Insert(ctx context.Context, like *core.Like) error {
	err := r.DB.Model(&core.Like{}).WithContext(ctx).Create(like).Error
	if pg.IsDuplicate(err) {
		return core.ErrConflict
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, actorURI, objectURI string) (bool, error) {
	res := r.DB.Model(&core.Like{}).
		WithContext(ctx).
		Where("actor_uri = ? AND object_uri = ?", actorURI, objectURI).
		Delete(&core.Like{})
	return res.RowsAffected > 0, res.Error
}
