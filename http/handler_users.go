package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"raillink/entity"
)

type postUserRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// PostUsers registers a user. Registering an existing id is a no-op.
func (s Server) PostUsers(c echo.Context) error {
	var request postUserRequest
	if err := c.Bind(&request); err != nil {
		return err
	}

	if request.UserID == "" {
		request.UserID = uuid.NewString()
	}
	if err := entity.ValidateID("user id", request.UserID); err != nil {
		return err
	}
	if !strings.Contains(request.Email, "@") {
		return fmt.Errorf("%w: email %q is not valid", entity.ErrValidation, request.Email)
	}

	user := entity.User{
		ID:        request.UserID,
		Email:     request.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.usersRepo.Store(c.Request().Context(), user); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, user)
}
