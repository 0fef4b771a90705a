package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docmanager/internal/commands"
	"github.com/fyrsmithlabs/docmanager/internal/hooks"
)

// HooksPath receives host chat messages.
const HooksPath = "/hooks/message"

// HookRequest is the request body for POST /hooks/message.
type HookRequest struct {
	Message string `json:"message"`
	// Prefix is the host's current system prompt prefix.
	Prefix string `json:"prefix"`
}

// HookResponse tells the host how to continue. When Handled is true,
// Output replaces the agent's answer.
type HookResponse struct {
	Handled bool   `json:"handled"`
	Output  string `json:"output,omitempty"`
	Prefix  string `json:"prefix"`
}

// MountHooks serves hm on HooksPath. Tokens are optional here: an
// anonymous caller reaches the commands, which apply their own access
// check.
func (s *Server) MountHooks(hm *hooks.HookManager) {
	s.echo.POST(HooksPath, func(c echo.Context) error {
		return s.handleHookMessage(c, hm)
	})
}

func (s *Server) handleHookMessage(c echo.Context, hm *hooks.HookManager) error {
	var req HookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "message is required")
	}

	ctx := c.Request().Context()
	var caller commands.Caller
	if id, err := s.verifier.FromRequest(c.Request()); err == nil {
		caller = commands.Caller{UserID: id.Subject, Identity: &id}
	}

	prefix, err := hm.PromptPrefix(ctx, req.Message, req.Prefix)
	if err != nil {
		s.reqLog(c).Error("prompt prefix hook failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	out, handled, err := hm.FastReply(ctx, req.Message, caller)
	if err != nil {
		s.reqLog(c).Error("fast reply hook failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, HookResponse{Handled: handled, Output: out, Prefix: prefix})
}
