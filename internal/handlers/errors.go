package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/campus-hub/backend/internal/middleware"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// httpError maps service and repository errors to HTTP errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrConflict), errors.Is(err, repositories.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

func currentActor(c echo.Context) (string, error) {
	id := middleware.ActorID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// bindAndValidate binds the request body into req and validates it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}
