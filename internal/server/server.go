package server

import (
	"context"
	"log/slog"
	"net/http"

	"library-service/internal/handler"
	"library-service/internal/middleware"
	"library-service/internal/service"
	"library-service/internal/validation"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Services struct {
	Books      service.BookService
	Borrowings service.BorrowingService
	Checkout   service.CheckoutService
	Returns    service.ReturnService
	Payments   service.PaymentService
}

type Server struct {
	echo             *echo.Echo
	jwtSecret        string
	bookHandler      *handler.BookHandler
	borrowingHandler *handler.BorrowingHandler
	paymentHandler   *handler.PaymentHandler
}

func NewServer(services Services, jwtSecret string, logger *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:             e,
		jwtSecret:        jwtSecret,
		bookHandler:      handler.NewBookHandler(services.Books, logger),
		borrowingHandler: handler.NewBorrowingHandler(services.Checkout, services.Returns, services.Borrowings, logger),
		paymentHandler:   handler.NewPaymentHandler(services.Checkout, services.Payments, logger),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- catalogue (public reads) --------
	api.GET("/books", s.bookHandler.ListBooks)
	api.GET("/books/:id", s.bookHandler.GetBook)
	api.GET("/authors", s.bookHandler.ListAuthors)

	// -------- paypal redirects / webhooks --------
	api.GET("/payments/success", s.paymentHandler.HandleSuccess)
	api.GET("/payments/cancel", s.paymentHandler.HandleCancel)
	api.POST("/payments/webhook", s.paymentHandler.PayPalWebhook)

	auth := api.Group("", middleware.AuthMiddleware(s.jwtSecret))

	// -------- catalogue admin --------
	staff := auth.Group("", middleware.StaffOnly())
	staff.POST("/books", s.bookHandler.CreateBook)
	staff.PATCH("/books/:id", s.bookHandler.UpdateBook)
	staff.DELETE("/books/:id", s.bookHandler.DeleteBook)
	staff.POST("/authors", s.bookHandler.CreateAuthor)

	// -------- borrowings --------
	auth.GET("/borrowings", s.borrowingHandler.ListBorrowings)
	auth.POST("/borrowings", s.borrowingHandler.Borrow)
	auth.GET("/borrowings/:id", s.borrowingHandler.GetBorrowing)
	auth.POST("/borrowings/:id/return", s.borrowingHandler.Return)

	// -------- payments --------
	auth.GET("/payments", s.paymentHandler.ListPayments)
	auth.GET("/payments/pending", s.paymentHandler.PendingPayments)
	auth.GET("/payments/:id", s.paymentHandler.GetPayment)
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
