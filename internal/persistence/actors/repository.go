package actors

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"skein/internal/core"
	"skein/internal/persistence/pg"
)

type Repository struct {
	DB core.DB
}

func (r *Repository) ByURI(ctx context.Context, uri string) (*core.Actor, error) {
	var actor core.Actor
	err := r.DB.Model(&core.Actor{}).
		WithContext(ctx).
		Where("uri = ?", uri).
		First(&actor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &actor, nil
}

func (r *Repository) ByUsername(ctx context.Context, username string) (*core.Actor, error) {
	var actor core.Actor
	err := r.DB.Model(&core.Actor{}).
		WithContext(ctx).
		Where("username = ? AND local", username).
		First(&actor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &actor, nil
}

// Insert creates a new actor record. The unique index on uri makes
// concurrent bootstraps of the same actor collapse into ErrConflict.
func (r *Repository) Insert(ctx context.Context, actor *core.Actor) error {
	err := r.DB.Model(&core.Actor{}).WithContext(ctx).Create(actor).Error
	if pg.IsDuplicate(err) {
		return core.ErrConflict
	}
	return err
}

func (r *Repository) Update(ctx context.Context, actor *core.Actor) error {
	return r.DB.Model(&core.Actor{}).
		WithContext(ctx).
		Where("id = ?", actor.ID).
		Updates(actor).Error
}
