package repository

import (
	"context"
	"fmt"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"gorm.io/gorm"
)

type AuthorRepository interface {
	Create(ctx context.Context, author *model.Author) error
	List(ctx context.Context) ([]*model.Author, error)
	FindMany(ctx context.Context, authorIDs []uint) ([]*model.Author, error)
}

type authorRepoImpl struct {
	db *gorm.DB
}

func NewAuthorRepository(db *gorm.DB) AuthorRepository {
	return &authorRepoImpl{
		db: db,
	}
}

func (r *authorRepoImpl) Create(ctx context.Context, author *model.Author) error {
	return translate(r.db.WithContext(ctx).Create(author).Error, "author")
}

func (r *authorRepoImpl) List(ctx context.Context) ([]*model.Author, error) {
	var authors []*model.Author
	if err := r.db.WithContext(ctx).Order("last_name, first_name").Find(&authors).Error; err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

// FindMany loads the given authors and fails with NotFound if any id is unknown.
func (r *authorRepoImpl) FindMany(ctx context.Context, authorIDs []uint) ([]*model.Author, error) {
	var authors []*model.Author
	err := r.db.WithContext(ctx).
		Where("id IN ?", authorIDs).
		Find(&authors).
		Error

	if err != nil {
		return nil, fmt.Errorf("find authors: %w", err)
	}

	if len(authors) != len(unique(authorIDs)) {
		return nil, apperr.New(apperr.NotFound, "some authors not found")
	}

	return authors, nil
}

func unique(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
