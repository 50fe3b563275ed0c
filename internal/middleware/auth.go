package middleware

import (
	"errors"
	"net/http"

	"library-service/internal/model"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const actorKey = "actor"

// Claims are the access token claims issued by the identity provider.
type Claims struct {
	Email   string `json:"email"`
	IsStaff bool   `json:"is_staff"`
	jwt.RegisteredClaims
}

// AuthMiddleware verifies the bearer token and stores the caller as a model.Actor.
func AuthMiddleware(secret string) echo.MiddlewareFunc {
	verify := echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		NewClaimsFunc: func(c echo.Context) jwt.Claims { return new(Claims) },
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return verify(func(c echo.Context) error {
			token, ok := c.Get("user").(*jwt.Token)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			claims, ok := token.Claims.(*Claims)
			if !ok || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			c.Set(actorKey, model.Actor{
				UserID:  claims.Subject,
				Email:   claims.Email,
				IsStaff: claims.IsStaff,
			})
			return next(c)
		})
	}
}

// StaffOnly rejects callers without the staff claim. It must run after AuthMiddleware.
func StaffOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := ActorFromContext(c)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !actor.IsStaff {
				return echo.NewHTTPError(http.StatusForbidden, "staff only")
			}
			return next(c)
		}
	}
}

func ActorFromContext(c echo.Context) (model.Actor, error) {
	actor, ok := c.Get(actorKey).(model.Actor)
	if !ok {
		return model.Actor{}, errors.New("no authenticated actor in context")
	}
	return actor, nil
}
