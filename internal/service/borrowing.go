package service

import (
	"context"

	"library-service/internal/apperr"
	"library-service/internal/lending"
	"library-service/internal/model"
	"library-service/internal/repository"
)

type BorrowingQuery struct {
	UserID   string
	IsActive *bool
}

type BorrowingService interface {
	List(ctx context.Context, actor model.Actor, query BorrowingQuery) ([]*model.Borrowing, error)
	Get(ctx context.Context, actor model.Actor, borrowingID uint) (*model.Borrowing, error)
	StatusOf(borrowing *model.Borrowing) lending.Status
}

type borrowingServiceImpl struct {
	borrowingRepo repository.BorrowingRepository
	calendar      Calendar
}

func NewBorrowingService(borrowingRepo repository.BorrowingRepository, calendar Calendar) BorrowingService {
	return &borrowingServiceImpl{
		borrowingRepo: borrowingRepo,
		calendar:      calendar,
	}
}

// List returns the caller's borrowings. Staff see everyone's and may narrow by user.
func (s *borrowingServiceImpl) List(ctx context.Context, actor model.Actor, query BorrowingQuery) ([]*model.Borrowing, error) {
	filter := repository.BorrowingFilter{UserID: actor.UserID, IsActive: query.IsActive}
	if actor.IsStaff {
		filter.UserID = query.UserID
	}
	return s.borrowingRepo.List(ctx, filter)
}

func (s *borrowingServiceImpl) Get(ctx context.Context, actor model.Actor, borrowingID uint) (*model.Borrowing, error) {
	borrowing, err := s.borrowingRepo.FindByID(ctx, nil, borrowingID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(borrowing.UserID) {
		return nil, apperr.New(apperr.Forbidden, "borrowing %d belongs to another user", borrowingID)
	}
	return borrowing, nil
}

func (s *borrowingServiceImpl) StatusOf(borrowing *model.Borrowing) lending.Status {
	return lending.StatusOf(borrowing, s.calendar.Today())
}
