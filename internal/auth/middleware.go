package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/settings"
)

// SettingsFunc returns the settings in force for a request.
type SettingsFunc func(ctx context.Context) settings.Settings

// forbidden is the body every rejected request receives.
var forbidden = map[string]string{"detail": "Forbidden"}

// RequireAdmin rejects requests whose token does not identify an
// administrator with 403 {"detail": "Forbidden"}. Accepted requests carry
// the identity in their context and in c.Get("user_id").
func RequireAdmin(v *Verifier, current SettingsFunc, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id, err := v.FromRequest(req)
			if err != nil {
				logger.Debug("rejected request", zap.String("path", req.URL.Path), zap.Error(err))
				return c.JSON(http.StatusForbidden, forbidden)
			}
			if !id.IsAdmin(current(req.Context())) {
				logger.Info("non-admin request rejected",
					zap.String("path", req.URL.Path),
					zap.String("user", id.Username))
				return c.JSON(http.StatusForbidden, forbidden)
			}

			c.Set("user_id", id.Subject)
			c.SetRequest(req.WithContext(WithIdentity(req.Context(), id)))
			return next(c)
		}
	}
}
