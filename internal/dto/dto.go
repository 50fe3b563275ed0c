package dto

import (
	"time"

	"library-service/internal/lending"
	"library-service/internal/model"
)

type AuthorRequest struct {
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
}

type BookRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	AuthorIDs []uint `json:"authors" validate:"required,min=1"`
	Cover     string `json:"cover" validate:"required,cover"`
	Inventory int    `json:"inventory" validate:"gte=0"`
	DailyFee  string `json:"daily_fee" validate:"required,money"`
}

type BookPatchRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=255"`
	AuthorIDs []uint  `json:"authors" validate:"omitempty,min=1"`
	Cover     *string `json:"cover" validate:"omitempty,cover"`
	Inventory *int    `json:"inventory" validate:"omitempty,gte=0"`
	DailyFee  *string `json:"daily_fee" validate:"omitempty,money"`
}

type BorrowRequest struct {
	BookID             uint   `json:"book" validate:"required"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required,datetime=2006-01-02"`
}

type AuthorResponse struct {
	ID        uint   `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type BookResponse struct {
	ID        uint             `json:"id"`
	Title     string           `json:"title"`
	Authors   []AuthorResponse `json:"authors"`
	Cover     model.CoverType  `json:"cover"`
	Inventory int              `json:"inventory"`
	DailyFee  string           `json:"daily_fee"`
}

type PaymentResponse struct {
	ID          uint                `json:"id"`
	BorrowingID uint                `json:"borrowing"`
	Type        model.PaymentType   `json:"type"`
	Status      model.PaymentStatus `json:"status"`
	Amount      string              `json:"amount"`
	SessionID   string              `json:"session_id"`
	SessionURL  string              `json:"session_url,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	PaidAt      *time.Time          `json:"paid_at,omitempty"`
}

type BorrowingResponse struct {
	ID                 uint              `json:"id"`
	Book               *BookResponse     `json:"book,omitempty"`
	UserID             string            `json:"user_id"`
	BorrowDate         string            `json:"borrow_date"`
	ExpectedReturnDate string            `json:"expected_return_date"`
	ActualReturnDate   *string           `json:"actual_return_date"`
	Status             lending.Status    `json:"status"`
	Payments           []PaymentResponse `json:"payments"`
}

type BorrowResponse struct {
	Borrowing  BorrowingResponse `json:"borrowing"`
	PaymentID  uint              `json:"payment_id"`
	SessionID  string            `json:"session_id"`
	SessionURL string            `json:"session_url"`
	Amount     string            `json:"amount"`
}

type ReturnResponse struct {
	Result     lending.ReturnOutcome `json:"result"`
	Borrowing  BorrowingResponse     `json:"borrowing"`
	PaymentID  uint                  `json:"payment_id,omitempty"`
	SessionURL string                `json:"session_url,omitempty"`
	Amount     string                `json:"amount,omitempty"`
}

func NewAuthorResponse(a *model.Author) AuthorResponse {
	return AuthorResponse{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
}

func NewBookResponse(b *model.Book) BookResponse {
	authors := make([]AuthorResponse, 0, len(b.Authors))
	for _, a := range b.Authors {
		authors = append(authors, NewAuthorResponse(a))
	}
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Authors:   authors,
		Cover:     b.Cover,
		Inventory: b.Inventory,
		DailyFee:  b.DailyFee.StringFixed(2),
	}
}

func NewPaymentResponse(p *model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID,
		BorrowingID: p.BorrowingID,
		Type:        p.Type,
		Status:      p.Status,
		Amount:      lending.FormatCents(p.AmountCents),
		SessionID:   p.SessionID,
		CreatedAt:   p.CreatedAt,
		PaidAt:      p.PaidAt,
	}
	// only a payable session is worth a link
	if !p.Status.IsTerminal() {
		resp.SessionURL = p.SessionURL
	}
	return resp
}

func NewBorrowingResponse(b *model.Borrowing, status lending.Status) BorrowingResponse {
	resp := BorrowingResponse{
		ID:                 b.ID,
		UserID:             b.UserID,
		BorrowDate:         b.BorrowDate.Format(time.DateOnly),
		ExpectedReturnDate: b.ExpectedReturnDate.Format(time.DateOnly),
		Status:             status,
		Payments:           make([]PaymentResponse, 0, len(b.Payments)),
	}
	if b.Book != nil {
		book := NewBookResponse(b.Book)
		resp.Book = &book
	}
	if b.ActualReturnDate != nil {
		d := b.ActualReturnDate.Format(time.DateOnly)
		resp.ActualReturnDate = &d
	}
	for _, p := range b.Payments {
		resp.Payments = append(resp.Payments, NewPaymentResponse(p))
	}
	return resp
}
