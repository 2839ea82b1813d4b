package collection

import (
	"context"
	"strings"

	"github.com/pagevault/pagevault/internal/domain"
)

// collectionService implements domain.CollectionService.
type collectionService struct {
	repo domain.CollectionRepository
}

// NewCollectionService creates a new CollectionService with the given repository.
func NewCollectionService(repo domain.CollectionRepository) domain.CollectionService {
	return &collectionService{repo: repo}
}

// CreateCollection validates input and persists a new collection.
// Synthetic collections are the auto-created default assigned at signup.
func (s *collectionService) CreateCollection(ctx context.Context, ownerID uint, slug, title, desc string, public, synthetic bool) (*domain.Collection, error) {
	slug = strings.TrimSpace(slug)
	title = strings.TrimSpace(title)

	if slug == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "collection id is required", nil)
	}
	if title == "" {
		return nil, domain.NewAppError(domain.CodeValidation, "collection title is required", nil)
	}

	coll := &domain.Collection{
		Slug:      slug,
		OwnerID:   ownerID,
		Title:     title,
		Desc:      desc,
		Public:    public,
		Synthetic: synthetic,
	}

	if err := s.repo.Create(ctx, coll); err != nil {
		return nil, err
	}
	return coll, nil
}

// ListCollections returns the owner's collections, optionally with nested
// recordings and pages.
func (s *collectionService) ListCollections(ctx context.Context, ownerID uint, includeRecs bool) ([]domain.Collection, error) {
	return s.repo.ListByOwner(ctx, ownerID, includeRecs)
}

// NumCollections returns the owner's collection count.
func (s *collectionService) NumCollections(ctx context.Context, ownerID uint) (int64, error) {
	return s.repo.CountByOwner(ctx, ownerID)
}

// DeleteUserCollections removes all collections owned by ownerID.
func (s *collectionService) DeleteUserCollections(ctx context.Context, ownerID uint) error {
	return s.repo.DeleteByOwner(ctx, ownerID)
}
