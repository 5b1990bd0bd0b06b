package inbox

import (
	"context"

	"skein/internal/core"
	"skein/internal/persistence/pg"
)

type Repository struct {
	DB core.DB
}

// Insert writes the canonical record. The unique indexes on origin and
// activity_uri are the final arbiter for duplicate deliveries; the
// conflict surfaces as the typed ErrDuplicateActivity, never matched by
// string.
func (r *Repository) Insert(ctx context.Context, activity *core.InboxActivity) error {
	err := r.DB.Model(&core.InboxActivity{}).WithContext(ctx).Create(activity).Error
	if pg.IsDuplicate(err) {
		return core.ErrDuplicateActivity
	}
	return err
}

func (r *Repository) ExistsByOrigin(ctx context.Context, origin string) (bool, error) {
	var count int64
	err := r.DB.Model(&core.InboxActivity{}).
		WithContext(ctx).
		Where("origin = ?", origin).
		Count(&count).Error
	return count > 0, err
}
