package collection

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/pagevault/pagevault/internal/domain"
)

// collectionRepository implements domain.CollectionRepository using GORM.
type collectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new CollectionRepository backed by the given GORM database.
func NewCollectionRepository(db *gorm.DB) domain.CollectionRepository {
	return &collectionRepository{db: db}
}

// Create inserts a new collection, including any nested recordings.
func (r *collectionRepository) Create(ctx context.Context, coll *domain.Collection) error {
	if err := r.db.WithContext(ctx).Create(coll).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// ListByOwner returns the owner's collections ordered by creation time.
// With includeRecs, recordings and their pages are preloaded, both in
// creation order so nested listings are stable.
func (r *collectionRepository) ListByOwner(ctx context.Context, ownerID uint, includeRecs bool) ([]domain.Collection, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at asc")
	if includeRecs {
		q = q.Preload("Recordings", func(db *gorm.DB) *gorm.DB {
			return db.Order("recordings.created_at asc")
		}).Preload("Recordings.Pages", func(db *gorm.DB) *gorm.DB {
			return db.Order("pages.created_at asc")
		})
	}

	var colls []domain.Collection
	if err := q.Find(&colls).Error; err != nil {
		return nil, mapError(err)
	}
	return colls, nil
}

// CountByOwner returns the number of collections owned by ownerID.
func (r *collectionRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Collection{}).
		Where("owner_id = ?", ownerID).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// DeleteByOwner removes all collections of a user together with their
// recordings and pages. Used when an account is deleted.
func (r *collectionRepository) DeleteByOwner(ctx context.Context, ownerID uint) error {
	var colls []domain.Collection
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&colls).Error; err != nil {
		return mapError(err)
	}
	for _, coll := range colls {
		var recs []domain.Recording
		if err := r.db.WithContext(ctx).Where("collection_id = ?", coll.ID).Find(&recs).Error; err != nil {
			return mapError(err)
		}
		for _, rec := range recs {
			if err := r.db.WithContext(ctx).Where("recording_id = ?", rec.ID).Delete(&domain.Page{}).Error; err != nil {
				return mapError(err)
			}
		}
		if err := r.db.WithContext(ctx).Where("collection_id = ?", coll.ID).Delete(&domain.Recording{}).Error; err != nil {
			return mapError(err)
		}
	}
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&domain.Collection{}).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. This is needed because not all GORM dialectors translate
// driver-level errors to gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
