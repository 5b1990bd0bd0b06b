package follows

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

func (r *Repository) Insert(ctx context.Context, edge *core.FollowEdge) error {
	err := r.DB.Model(&core.FollowEdge{}).WithContext(ctx).Create(edge).Error
	if pg.IsDuplicate(err) {
		return core.ErrConflict
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, actorURI, objectURI string) (bool, error) {
	res := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("actor_uri = ? AND object_uri = ?", actorURI, objectURI).
		Delete(&core.FollowEdge{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) Exists(ctx context.Context, actorURI, objectURI string) (bool, error) {
	var count int64
	err := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("actor_uri = ? AND object_uri = ?", actorURI, objectURI).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ByActivityURI(ctx context.Context, activityURI string) (*core.FollowEdge, error) {
	var edge core.FollowEdge
	err := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("activity_uri = ?", activityURI).
		First(&edge).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &edge, nil
}

func (r *Repository) Followers(ctx context.Context, objectURI string, offset, limit int) ([]core.FollowEdge, error) {
	var edges []core.FollowEdge
	err := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("object_uri = ?", objectURI).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&edges).Error
	return edges, err
}

func (r *Repository) Following(ctx context.Context, actorURI string, offset, limit int) ([]core.FollowEdge, error) {
	var edges []core.FollowEdge
	err := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("actor_uri = ?", actorURI).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&edges).Error
	return edges, err
}

func (r *Repository) Counts(ctx context.Context, uri string) (core.FollowCounts, error) {
	var counts core.FollowCounts

	err := r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("actor_uri = ?", uri).
		Count(&counts.Following).Error
	if err != nil {
		return counts, err
	}

	err = r.DB.Model(&core.FollowEdge{}).
		WithContext(ctx).
		Where("object_uri = ?", uri).
		Count(&counts.Followers).Error
	return counts, err
}
