package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"library-service/internal/dto"
	"library-service/internal/lending"
	"library-service/internal/middleware"
	"library-service/internal/service"

	"github.com/labstack/echo/v4"
)

type BorrowingHandler struct {
	checkoutService  service.CheckoutService
	returnService    service.ReturnService
	borrowingService service.BorrowingService
	logger           *slog.Logger
}

func NewBorrowingHandler(
	checkoutService service.CheckoutService,
	returnService service.ReturnService,
	borrowingService service.BorrowingService,
	logger *slog.Logger,
) *BorrowingHandler {
	return &BorrowingHandler{
		checkoutService:  checkoutService,
		returnService:    returnService,
		borrowingService: borrowingService,
		logger:           logger,
	}
}

// ListBorrowings supports ?is_active=true|false, and ?user_id= for staff.
func (h *BorrowingHandler) ListBorrowings(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	query := service.BorrowingQuery{UserID: c.QueryParam("user_id")}
	if raw := c.QueryParam("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "is_active must be true or false")
		}
		query.IsActive = &active
	}

	borrowings, err := h.borrowingService.List(ctx, actor, query)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := make([]dto.BorrowingResponse, 0, len(borrowings))
	for _, b := range borrowings {
		resp = append(resp, dto.NewBorrowingResponse(b, h.borrowingService.StatusOf(b)))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BorrowingHandler) GetBorrowing(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	borrowing, err := h.borrowingService.Get(ctx, actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto.NewBorrowingResponse(borrowing, h.borrowingService.StatusOf(borrowing)))
}

func (h *BorrowingHandler) Borrow(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var req dto.BorrowRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}
	expectedReturn, err := time.ParseInLocation(time.DateOnly, req.ExpectedReturnDate, time.UTC)
	if err != nil {
		return badRequest(c, "expected_return_date must be YYYY-MM-DD")
	}

	result, err := h.checkoutService.InitiateBorrow(ctx, actor, req.BookID, expectedReturn)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, dto.BorrowResponse{
		Borrowing:  dto.NewBorrowingResponse(result.Borrowing, h.borrowingService.StatusOf(result.Borrowing)),
		PaymentID:  result.Payment.ID,
		SessionID:  result.Payment.SessionID,
		SessionURL: result.Payment.SessionURL,
		Amount:     lending.FormatCents(result.Payment.AmountCents),
	})
}

// Return answers 200 when the book is back and 202 when a fine must be paid first.
func (h *BorrowingHandler) Return(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	result, err := h.returnService.Return(ctx, actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := dto.ReturnResponse{
		Result:    result.Outcome,
		Borrowing: dto.NewBorrowingResponse(result.Borrowing, h.borrowingService.StatusOf(result.Borrowing)),
	}
	if result.Fine == nil {
		return c.JSON(http.StatusOK, resp)
	}

	resp.PaymentID = result.Fine.ID
	resp.SessionURL = result.Fine.SessionURL
	resp.Amount = lending.FormatCents(result.Fine.AmountCents)
	return c.JSON(http.StatusAccepted, resp)
}
