package handlers

import (
	"net/http"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ActivityHandler receives content events from the CRUD services and applies
// their scoring and notification side-effects.
type ActivityHandler struct {
	activity *services.Activity
}

func NewActivityHandler(activity *services.Activity) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// RegisterActivityRoutes registers content activity routes
func (h *ActivityHandler) RegisterActivityRoutes(g *echo.Group) {
	g.POST("/activity/posts", h.PostCreated)
	g.POST("/activity/resources", h.ResourceUploaded)
	g.POST("/activity/resources/:id/download", h.ResourceDownloaded)
	g.POST("/activity/resources/:id/rating", h.ResourceRated)
	g.POST("/activity/posts/:id/answers", h.AnswerPosted)
	g.POST("/activity/posts/:id/answers/:answer_id/accept", h.AnswerAccepted)
	g.POST("/jobs/:id/apply", h.ApplyJob)
}

func (h *ActivityHandler) PostCreated(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	points, err := h.activity.PostCreated(c.Request().Context(), actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"points": points})
}

func (h *ActivityHandler) ResourceUploaded(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	points, err := h.activity.ResourceUploaded(c.Request().Context(), actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"points": points})
}

func (h *ActivityHandler) ResourceDownloaded(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	ref := models.TargetRef{Kind: models.KindResource, ID: c.Param("id")}
	stats, err := h.activity.ResourceDownloaded(c.Request().Context(), actorID, ref)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, stats)
}

// ResourceRated takes the resource's recomputed average rating
func (h *ActivityHandler) ResourceRated(c echo.Context) error {
	if _, err := currentActor(c); err != nil {
		return err
	}
	var req models.RatingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ref := models.TargetRef{Kind: models.KindResource, ID: c.Param("id")}
	rewarded, err := h.activity.ResourceRated(c.Request().Context(), ref, req.AverageRating)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"uploader_rewarded": rewarded})
}

func (h *ActivityHandler) AnswerPosted(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	ref := models.TargetRef{Kind: models.KindPost, ID: c.Param("id")}
	points, err := h.activity.AnswerPosted(c.Request().Context(), actorID, ref)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"points": points})
}

// AnswerAccepted is only allowed for the author of the post
func (h *ActivityHandler) AnswerAccepted(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	postRef := models.TargetRef{Kind: models.KindPost, ID: c.Param("id")}
	answerRef := models.TargetRef{Kind: models.KindAnswer, ID: c.Param("answer_id")}
	if err := h.activity.AnswerAccepted(c.Request().Context(), actorID, postRef, answerRef); err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"accepted": true})
}

// ApplyJob records an application and an optional deadline reminder
func (h *ActivityHandler) ApplyJob(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	var req models.ApplyRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	app, err := h.activity.JobApplied(c.Request().Context(), actorID, c.Param("id"), req.ReminderDate)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusCreated, app)
}
