package posts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"skein/internal/core"
)

type Repository struct {
	DB core.DB
}

func (r *Repository) ByActivityURI(ctx context.Context, uri string) (*core.Post, error) {
	var post core.Post
	err := r.DB.Model(&core.Post{}).
		WithContext(ctx).
		Where("activity_uri = ?", uri).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ByActivityURIs(ctx context.Context, uris []string) ([]core.Post, error) {
	var posts []core.Post
	err := r.DB.Model(&core.Post{}).
		WithContext(ctx).
		Where("activity_uri IN (?)", uris).
		Find(&posts).Error
	return posts, err
}

func (r *Repository) AddLikeCount(ctx context.Context, uri string, delta int64) error {
	return r.DB.Model(&core.Post{}).
		WithContext(ctx).
		Where("activity_uri = ?", uri).
		UpdateColumn("like_count", gorm.Expr("like_count + ?", delta)).Error
}
