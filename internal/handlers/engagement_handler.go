package handlers

import (
	"net/http"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// EngagementHandler exposes votes, bookmarks and saved item listings
type EngagementHandler struct {
	ledger    *services.InteractionLedger
	bookmarks *services.BookmarkIndex
	targets   repositories.TargetRepository
}

func NewEngagementHandler(ledger *services.InteractionLedger, bookmarks *services.BookmarkIndex, targets repositories.TargetRepository) *EngagementHandler {
	return &EngagementHandler{ledger: ledger, bookmarks: bookmarks, targets: targets}
}

// RegisterEngagementRoutes registers vote and bookmark routes
func (h *EngagementHandler) RegisterEngagementRoutes(g *echo.Group) {
	g.GET("/targets/:kind/:id", h.GetState)
	g.POST("/targets/:kind/:id/vote", h.ToggleVote)
	g.POST("/targets/:kind/:id/upvote", h.toggleDirection(models.VoteUp))
	g.POST("/targets/:kind/:id/downvote", h.toggleDirection(models.VoteDown))
	g.POST("/targets/:kind/:id/bookmark", h.ToggleBookmark)
	g.GET("/saved/:kind", h.ListSaved)
}

func targetRef(c echo.Context) (models.TargetRef, error) {
	ref := models.TargetRef{Kind: models.TargetKind(c.Param("kind")), ID: c.Param("id")}
	if !ref.Kind.Valid() {
		return ref, echo.NewHTTPError(http.StatusNotFound, "Unknown content kind")
	}
	return ref, nil
}

func (h *EngagementHandler) vote(c echo.Context, dir models.VoteDirection) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	ref, err := targetRef(c)
	if err != nil {
		return err
	}
	counts, err := h.ledger.ToggleVote(c.Request().Context(), ref, actorID, dir)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, counts)
}

// ToggleVote toggles the vote given in the body
func (h *EngagementHandler) ToggleVote(c echo.Context) error {
	var req models.VoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	return h.vote(c, req.Direction)
}

func (h *EngagementHandler) toggleDirection(dir models.VoteDirection) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h.vote(c, dir)
	}
}

// ToggleBookmark flips the actor's bookmark on the target
func (h *EngagementHandler) ToggleBookmark(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	ref, err := targetRef(c)
	if err != nil {
		return err
	}
	bookmarked, err := h.ledger.ToggleBookmark(c.Request().Context(), ref, actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"bookmarked": bookmarked})
}

// GetState returns counts plus the actor's own vote and bookmark
func (h *EngagementHandler) GetState(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	ref, err := targetRef(c)
	if err != nil {
		return err
	}
	state, err := h.ledger.State(c.Request().Context(), ref, actorID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, state)
}

// ListSaved returns the actor's saved ids of one kind that still resolve to visible content
func (h *EngagementHandler) ListSaved(c echo.Context) error {
	actorID, err := currentActor(c)
	if err != nil {
		return err
	}
	kind := models.TargetKind(c.Param("kind"))
	if !kind.Valid() {
		return echo.NewHTTPError(http.StatusNotFound, "Unknown content kind")
	}

	ctx := c.Request().Context()
	ids, err := h.bookmarks.ListSaved(ctx, actorID, kind)
	if err != nil {
		return httpError(err)
	}
	visible, err := h.targets.FilterActive(ctx, kind, ids)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"kind": kind, "ids": visible, "count": len(visible)})
}
