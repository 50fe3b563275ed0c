package service

import (
	"context"

	"library-service/internal/apperr"
	"library-service/internal/model"
	"library-service/internal/repository"

	"github.com/shopspring/decimal"
)

type BookInput struct {
	Title     string
	AuthorIDs []uint
	Cover     model.CoverType
	Inventory int
	DailyFee  decimal.Decimal
}

// BookPatch holds the fields of a partial update; nil fields are left unchanged.
type BookPatch struct {
	Title     *string
	AuthorIDs []uint
	Cover     *model.CoverType
	Inventory *int
	DailyFee  *decimal.Decimal
}

type BookService interface {
	ListBooks(ctx context.Context, title string) ([]*model.Book, error)
	GetBook(ctx context.Context, bookID uint) (*model.Book, error)
	CreateBook(ctx context.Context, in BookInput) (*model.Book, error)
	UpdateBook(ctx context.Context, bookID uint, patch BookPatch) (*model.Book, error)
	DeleteBook(ctx context.Context, bookID uint) error
	ListAuthors(ctx context.Context) ([]*model.Author, error)
	CreateAuthor(ctx context.Context, firstName, lastName string) (*model.Author, error)
}

type bookServiceImpl struct {
	bookRepo   repository.BookRepository
	authorRepo repository.AuthorRepository
}

func NewBookService(bookRepo repository.BookRepository, authorRepo repository.AuthorRepository) BookService {
	return &bookServiceImpl{
		bookRepo:   bookRepo,
		authorRepo: authorRepo,
	}
}

func (s *bookServiceImpl) ListBooks(ctx context.Context, title string) ([]*model.Book, error) {
	return s.bookRepo.List(ctx, title)
}

func (s *bookServiceImpl) GetBook(ctx context.Context, bookID uint) (*model.Book, error) {
	return s.bookRepo.FindByID(ctx, nil, bookID)
}

func (s *bookServiceImpl) CreateBook(ctx context.Context, in BookInput) (*model.Book, error) {
	if err := validateStock(in.Inventory, in.DailyFee); err != nil {
		return nil, err
	}

	authors, err := s.authorRepo.FindMany(ctx, in.AuthorIDs)
	if err != nil {
		return nil, err
	}

	book := &model.Book{
		Title:     in.Title,
		Authors:   authors,
		Cover:     in.Cover,
		Inventory: in.Inventory,
		DailyFee:  in.DailyFee,
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

func (s *bookServiceImpl) UpdateBook(ctx context.Context, bookID uint, patch BookPatch) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, nil, bookID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Cover != nil {
		fields["cover"] = *patch.Cover
	}
	if patch.Inventory != nil {
		if err := validateStock(*patch.Inventory, book.DailyFee); err != nil {
			return nil, err
		}
		fields["inventory"] = *patch.Inventory
	}
	if patch.DailyFee != nil {
		if err := validateStock(book.Inventory, *patch.DailyFee); err != nil {
			return nil, err
		}
		fields["daily_fee"] = *patch.DailyFee
	}

	var authors []*model.Author
	if patch.AuthorIDs != nil {
		if authors, err = s.authorRepo.FindMany(ctx, patch.AuthorIDs); err != nil {
			return nil, err
		}
	}

	if err := s.bookRepo.Update(ctx, book, fields, authors); err != nil {
		return nil, err
	}
	return s.bookRepo.FindByID(ctx, nil, bookID)
}

// DeleteBook removes a book that was never borrowed. Borrowing history is kept,
// so a book with borrowings cannot be deleted.
func (s *bookServiceImpl) DeleteBook(ctx context.Context, bookID uint) error {
	borrowed, err := s.bookRepo.HasBorrowings(ctx, bookID)
	if err != nil {
		return err
	}
	if borrowed {
		return apperr.New(apperr.Conflict, "book %d has borrowings and cannot be deleted", bookID)
	}
	return s.bookRepo.Delete(ctx, bookID)
}

func (s *bookServiceImpl) ListAuthors(ctx context.Context) ([]*model.Author, error) {
	return s.authorRepo.List(ctx)
}

func (s *bookServiceImpl) CreateAuthor(ctx context.Context, firstName, lastName string) (*model.Author, error) {
	author := &model.Author{FirstName: firstName, LastName: lastName}
	if err := s.authorRepo.Create(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

func validateStock(inventory int, dailyFee decimal.Decimal) error {
	if inventory < 0 {
		return apperr.New(apperr.Validation, "inventory must not be negative")
	}
	if !dailyFee.IsPositive() {
		return apperr.New(apperr.Validation, "daily fee must be positive")
	}
	if !dailyFee.Equal(dailyFee.Round(2)) {
		return apperr.New(apperr.Validation, "daily fee has more than two decimal places")
	}
	return nil
}
