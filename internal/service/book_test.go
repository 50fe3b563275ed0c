package service

import (
	"context"
	"testing"

	"library-service/internal/apperr"
	"library-service/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	author, err := e.books.CreateAuthor(ctx, "Ursula", "Le Guin")
	require.NoError(t, err)

	testCases := []struct {
		name string
		in   BookInput
		kind apperr.Kind
	}{
		{"negative inventory", BookInput{Title: "A", AuthorIDs: []uint{author.ID}, Cover: model.CoverSoft, Inventory: -1, DailyFee: decimal.NewFromInt(1)}, apperr.Validation},
		{"zero fee", BookInput{Title: "A", AuthorIDs: []uint{author.ID}, Cover: model.CoverSoft, Inventory: 1, DailyFee: decimal.Zero}, apperr.Validation},
		{"sub-cent fee", BookInput{Title: "A", AuthorIDs: []uint{author.ID}, Cover: model.CoverSoft, Inventory: 1, DailyFee: decimal.RequireFromString("0.005")}, apperr.Validation},
		{"unknown author", BookInput{Title: "A", AuthorIDs: []uint{author.ID, 99}, Cover: model.CoverSoft, Inventory: 1, DailyFee: decimal.NewFromInt(1)}, apperr.NotFound},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.books.CreateBook(ctx, tt.in)
			assert.Equal(t, tt.kind, apperr.Code(err))
		})
	}
}

func TestUpdateBookPartial(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	book := e.seedBook(t, 2, "1.00")

	coauthor, err := e.books.CreateAuthor(ctx, "Brian", "Herbert")
	require.NoError(t, err)

	inventory := 7
	updated, err := e.books.UpdateBook(ctx, book.ID, BookPatch{
		Inventory: &inventory,
		AuthorIDs: []uint{book.Authors[0].ID, coauthor.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Dune", updated.Title)
	assert.Equal(t, 7, updated.Inventory)
	assert.Equal(t, "1.00", updated.DailyFee.StringFixed(2))
	assert.Len(t, updated.Authors, 2)
	assert.Equal(t, "Dune by Frank Herbert, Brian Herbert (Hardcover)", updated.String())
}

func TestDeleteBook(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	unused := e.seedBook(t, 1, "1.00")
	require.NoError(t, e.books.DeleteBook(ctx, unused.ID))
	_, err := e.books.GetBook(ctx, unused.ID)
	assert.Equal(t, apperr.NotFound, apperr.Code(err))

	borrowed := e.seedBook(t, 1, "1.00")
	_, err = e.checkout.InitiateBorrow(ctx, reader, borrowed.ID, dateN(2))
	require.NoError(t, err)

	err = e.books.DeleteBook(ctx, borrowed.ID)
	assert.Equal(t, apperr.Conflict, apperr.Code(err))
}

func TestListBooksByTitle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedBook(t, 1, "1.00")

	found, err := e.books.ListBooks(ctx, "dun")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = e.books.ListBooks(ctx, "foundation")
	require.NoError(t, err)
	assert.Empty(t, found)
}
