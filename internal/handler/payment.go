package handler

import (
	"io"
	"log/slog"
	"net/http"

	"library-service/internal/apperr"
	"library-service/internal/dto"
	"library-service/internal/middleware"
	"library-service/internal/model"
	"library-service/internal/service"

	"github.com/labstack/echo/v4"
)

type PaymentHandler struct {
	checkoutService service.CheckoutService
	paymentService  service.PaymentService
	logger          *slog.Logger
}

func NewPaymentHandler(checkoutService service.CheckoutService, paymentService service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkoutService: checkoutService,
		paymentService:  paymentService,
		logger:          logger,
	}
}

// ListPayments supports ?status= and ?type= filters.
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	payments, err := h.paymentService.List(ctx, actor, service.PaymentQuery{
		Status: c.QueryParam("status"),
		Type:   c.QueryParam("type"),
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, paymentList(payments))
}

func (h *PaymentHandler) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, ok := parseID(c)
	if !ok {
		return badRequest(c, "invalid id")
	}

	payment, err := h.paymentService.Get(ctx, actor, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, dto.NewPaymentResponse(payment))
}

// PendingPayments lists the caller's open sessions so an abandoned checkout can be resumed.
func (h *PaymentHandler) PendingPayments(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := middleware.ActorFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	payments, err := h.paymentService.PendingForUser(ctx, actor)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, paymentList(payments))
}

// HandleSuccess is where the provider redirects the payer; token is the session id.
func (h *PaymentHandler) HandleSuccess(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("token")
	if sessionID == "" {
		return badRequest(c, "missing order token")
	}

	payment, err := h.checkoutService.ConfirmPayment(ctx, sessionID)
	if apperr.Is(err, apperr.AlreadyProcessed) {
		return c.JSON(http.StatusOK, echo.Map{"message": "payment already processed"})
	}
	if err != nil {
		return respondError(c, h.logger, err)
	}

	msg := "Payment successful"
	if payment.Type == model.PaymentTypeFine {
		msg = "Fine paid, book returned"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": msg,
		"payment": dto.NewPaymentResponse(payment),
	})
}

// HandleCancel keeps the session payable until it expires and hands its link back.
func (h *PaymentHandler) HandleCancel(c echo.Context) error {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("token")
	if sessionID == "" {
		return badRequest(c, "missing order token")
	}

	payment, err := h.paymentService.GetBySession(ctx, sessionID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if payment.Status.IsTerminal() {
		return c.JSON(http.StatusOK, echo.Map{
			"message": "payment is no longer payable",
			"payment": dto.NewPaymentResponse(payment),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Payment can be completed later while the session is open",
		"session_url": payment.SessionURL,
		"payment":     dto.NewPaymentResponse(payment),
	})
}

func (h *PaymentHandler) PayPalWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	if err := h.checkoutService.HandleWebhook(ctx, c.Request().Header, body); err != nil {
		return respondError(c, h.logger, err)
	}
	return c.NoContent(http.StatusOK)
}

func paymentList(payments []*model.Payment) []dto.PaymentResponse {
	resp := make([]dto.PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, dto.NewPaymentResponse(p))
	}
	return resp
}
