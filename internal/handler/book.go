package handler

import (
	"log/slog"
	"net/http"

	"library-service/internal/dto"
	"library-service/internal/model"
	"library-service/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type BookHandler struct {
	bookService service.BookService
	logger      *slog.Logger
}

func NewBookHandler(bookService service.BookService, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		logger:      logger,
	}
}

func (h *BookHandler) ListBooks(c echo.Context) error {
	ctx := c.Request().Context()

	books, err := h.bookService.ListBooks(ctx, c.QueryParam("title"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := make([]dto.BookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, dto.NewBookResponse(b))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BookHandler) GetBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	book, err := h.bookService.GetBook(ctx, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto.NewBookResponse(book))
}

func (h *BookHandler) CreateBook(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	cover, err := model.ParseCoverType(req.Cover)
	if err != nil {
		return badRequest(c, err.Error())
	}
	fee, err := decimal.NewFromString(req.DailyFee)
	if err != nil {
		return badRequest(c, "daily_fee must be a decimal amount")
	}

	book, err := h.bookService.CreateBook(ctx, service.BookInput{
		Title:     req.Title,
		AuthorIDs: req.AuthorIDs,
		Cover:     cover,
		Inventory: req.Inventory,
		DailyFee:  fee,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBookResponse(book))
}

func (h *BookHandler) UpdateBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req dto.BookPatchRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	patch := service.BookPatch{
		Title:     req.Title,
		AuthorIDs: req.AuthorIDs,
		Inventory: req.Inventory,
	}
	if req.Cover != nil {
		cover, err := model.ParseCoverType(*req.Cover)
		if err != nil {
			return badRequest(c, err.Error())
		}
		patch.Cover = &cover
	}
	if req.DailyFee != nil {
		fee, err := decimal.NewFromString(*req.DailyFee)
		if err != nil {
			return badRequest(c, "daily_fee must be a decimal amount")
		}
		patch.DailyFee = &fee
	}

	book, err := h.bookService.UpdateBook(ctx, id, patch)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto.NewBookResponse(book))
}

func (h *BookHandler) DeleteBook(c echo.Context) error {
	ctx := c.Request().Context()

	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	if err := h.bookService.DeleteBook(ctx, id); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BookHandler) ListAuthors(c echo.Context) error {
	ctx := c.Request().Context()

	authors, err := h.bookService.ListAuthors(ctx)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	resp := make([]dto.AuthorResponse, 0, len(authors))
	for _, a := range authors {
		resp = append(resp, dto.NewAuthorResponse(a))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BookHandler) CreateAuthor(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AuthorRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, err.Error())
	}

	author, err := h.bookService.CreateAuthor(ctx, req.FirstName, req.LastName)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, dto.NewAuthorResponse(author))
}
