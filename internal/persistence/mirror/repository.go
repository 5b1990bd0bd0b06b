package mirror

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"skein/internal/core"
)

type Repository struct {
	DB core.DB
}

// Upsert inserts the mirror entry or refreshes the existing one keyed
// by object_uri.
func (r *Repository) Upsert(ctx context.Context, post *core.RemotePost) error {
	return r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "object_uri"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"activity_uri", "content", "content_html", "attachments", "published_at", "updated_at",
			}),
		}).
		Create(post).Error
}

func (r *Repository) Update(ctx context.Context, post *core.RemotePost) error {
	return r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Where("id = ?", post.ID).
		Updates(post).Error
}

func (r *Repository) Remove(ctx context.Context, objectURI string) (bool, error) {
	res := r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Where("object_uri = ?", objectURI).
		Delete(&core.RemotePost{})
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) ByObjectURI(ctx context.Context, objectURI string) (*core.RemotePost, error) {
	var post core.RemotePost
	err := r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Where("object_uri = ?", objectURI).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

func (r *Repository) ByObjectURIs(ctx context.Context, uris []string) ([]core.RemotePost, error) {
	var posts []core.RemotePost
	err := r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Where("object_uri IN (?)", uris).
		Find(&posts).Error
	return posts, err
}

func (r *Repository) AddEngagement(ctx context.Context, objectURI string, likes, replies, shares int64) error {
	return r.DB.Model(&core.RemotePost{}).
		WithContext(ctx).
		Where("object_uri = ?", objectURI).
		UpdateColumns(map[string]any{
			"like_count":  gorm.Expr("like_count + ?", likes),
			"reply_count": gorm.Expr("reply_count + ?", replies),
			"share_count": gorm.Expr("share_count + ?", shares),
		}).Error
}
