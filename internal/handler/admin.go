package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ubaid/marketplace-auth/internal/model"
	"github.com/ubaid/marketplace-auth/internal/queue"
	"github.com/ubaid/marketplace-auth/internal/repository"
)

// AdminHandler exposes administrative operations on the directory. The
// routes carrying it are restricted to ADMIN by the router policy.
type AdminHandler struct {
	Users  UserStore
	Events EventPublisher
}

func NewAdminHandler(u UserStore, ev EventPublisher) *AdminHandler {
	return &AdminHandler{Users: u, Events: ev}
}

type promoteReq struct {
	Email string `json:"email"`
	Role  string `json:"role"` // optional, defaults to SELLER
}

// Promote overwrites a user's role, located by email. The new role takes
// effect on the user's next issued access token; outstanding tokens keep
// their old role claim until they expire.
func (h *AdminHandler) Promote(c echo.Context) error {
	var req promoteReq
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}
	role := req.Role
	if role == "" {
		role = model.RoleSeller
	}
	if !model.ValidRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	c.Logger().Infof("promote requested: email=%s role=%s", req.Email, role)

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	if err := h.Users.PromoteRole(ctx, req.Email, role); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			c.Logger().Warnf("promote failed: user %s not found", req.Email)
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, context.DeadlineExceeded):
			return c.JSON(http.StatusRequestTimeout, echo.Map{"error": "database timeout"})
		default:
			c.Logger().Errorf("promote failed for %s: %v", req.Email, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
		}
	}

	if h.Events != nil {
		_ = h.Events.Publish(ctx, queue.AuthEvent{
			Type:  queue.EventRolePromoted,
			Email: req.Email,
			Role:  role,
			At:    time.Now().UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("user %s is now a %s", req.Email, role),
	})
}
