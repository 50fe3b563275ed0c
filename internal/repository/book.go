package repository

import (
	"context"
	"fmt"
	"strings"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"gorm.io/gorm"
)

type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	Update(ctx context.Context, book *model.Book, fields map[string]interface{}, authors []*model.Author) error
	Delete(ctx context.Context, bookID uint) error
	FindByID(ctx context.Context, tx *gorm.DB, bookID uint) (*model.Book, error)
	List(ctx context.Context, title string) ([]*model.Book, error)
	HasBorrowings(ctx context.Context, bookID uint) (bool, error)
	DecrementInventory(ctx context.Context, tx *gorm.DB, bookID uint) error
	IncrementInventory(ctx context.Context, tx *gorm.DB, bookID uint) error
}

type bookRepoImpl struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepoImpl{
		db: db,
	}
}

func (r *bookRepoImpl) Create(ctx context.Context, book *model.Book) error {
	err := r.db.WithContext(ctx).Create(book).Error
	return translate(err, "book")
}

// Update applies the given column changes and, when authors is non-nil,
// replaces the author list.
func (r *bookRepoImpl) Update(ctx context.Context, book *model.Book, fields map[string]interface{}, authors []*model.Author) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := tx.Model(book).Updates(fields).Error; err != nil {
				return translate(err, fmt.Sprintf("book %d", book.ID))
			}
		}
		if authors != nil {
			if err := tx.Model(book).Association("Authors").Replace(authors); err != nil {
				return fmt.Errorf("replace authors of book %d: %w", book.ID, err)
			}
		}
		return nil
	})
}

func (r *bookRepoImpl) Delete(ctx context.Context, bookID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		book := &model.Book{ID: bookID}
		if err := tx.Model(book).Association("Authors").Clear(); err != nil {
			return fmt.Errorf("clear authors of book %d: %w", bookID, err)
		}
		res := tx.Delete(book)
		if res.Error != nil {
			return translate(res.Error, fmt.Sprintf("book %d", bookID))
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.NotFound, "book %d not found", bookID)
		}
		return nil
	})
}

func (r *bookRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, bookID uint) (*model.Book, error) {
	var book model.Book
	err := dbOr(tx, r.db).WithContext(ctx).
		Preload("Authors").
		Where("id = ?", bookID).
		First(&book).Error

	if err != nil {
		return nil, translate(err, fmt.Sprintf("book %d", bookID))
	}

	return &book, nil
}

func (r *bookRepoImpl) List(ctx context.Context, title string) ([]*model.Book, error) {
	var books []*model.Book
	q := r.db.WithContext(ctx).Preload("Authors").Order("id")
	if title != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(title)+"%")
	}

	if err := q.Find(&books).Error; err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	return books, nil
}

func (r *bookRepoImpl) HasBorrowings(ctx context.Context, bookID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Borrowing{}).
		Where("book_id = ?", bookID).
		Count(&count).Error

	return count > 0, err
}

// DecrementInventory takes one copy out of stock. It never goes below zero:
// when no copy is left the update matches nothing and an Inventory error is returned.
func (r *bookRepoImpl) DecrementInventory(ctx context.Context, tx *gorm.DB, bookID uint) error {
	res := tx.WithContext(ctx).Model(&model.Book{}).
		Where("id = ? AND inventory > 0", bookID).
		Update("inventory", gorm.Expr("inventory - 1"))

	if res.Error != nil {
		return fmt.Errorf("decrement inventory of book %d: %w", bookID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.Inventory, "no copies of book %d available", bookID)
	}
	return nil
}

func (r *bookRepoImpl) IncrementInventory(ctx context.Context, tx *gorm.DB, bookID uint) error {
	res := tx.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("inventory", gorm.Expr("inventory + 1"))

	if res.Error != nil {
		return fmt.Errorf("increment inventory of book %d: %w", bookID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.New(apperr.NotFound, "book %d not found", bookID)
	}
	return nil
}
