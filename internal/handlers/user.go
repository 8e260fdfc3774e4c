package handlers

import (
	"net/http"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler serves the actor's profile, preferences and stats
type UserHandler struct {
	userRepository repositories.UserRepository
	scoring        *services.ScoringEngine
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, scoring *services.ScoringEngine) *UserHandler {
	return &UserHandler{userRepository: userRepo, scoring: scoring}
}

// RegisterProfileRoutes registers routes about the authenticated actor
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/me", h.GetProfile)
	g.GET("/me/stats", h.GetStats)
	g.GET("/me/preferences", h.GetPreferences)
	g.PUT("/me/preferences", h.UpdatePreferences)
}

// RegisterAdminRoutes registers routes that require the admin role
func (h *UserHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/points", h.AwardPoints)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, user)
}

// GetStats returns the actor's counters and badges
func (h *UserHandler) GetStats(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	stats, badges, err := h.scoring.Summary(c.Request().Context(), actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"stats": stats, "badges": badges})
}

func (h *UserHandler) GetPreferences(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	user, err := h.userRepository.GetUserByID(c.Request().Context(), actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, user.NotificationPreferences)
}

// UpdatePreferences changes only the toggles present in the body
func (h *UserHandler) UpdatePreferences(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	var req models.UpdatePreferencesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.userRepository.GetUserByID(ctx, actorID)
	if err != nil {
		return httpError(err)
	}
	prefs := req.Apply(user.NotificationPreferences)
	if err := h.userRepository.UpdatePreferences(ctx, actorID, prefs); err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, prefs)
}

// AwardPoints grants points to an existing actor
func (h *UserHandler) AwardPoints(c echo.Context) error {
	var req models.AwardPointsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	points, err := h.scoring.AwardPoints(c.Request().Context(), req.ActorID, req.Amount, services.Reason(req.Reason))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"points": points})
}
