package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"github.com/anonto42/campus-hub/backend/internal/repositories"
	"github.com/anonto42/campus-hub/backend/internal/services"
	"github.com/labstack/echo/v4"
)

const maxPageSize = 50

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	dispatcher             *services.Dispatcher
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, dispatcher *services.Dispatcher) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		dispatcher:             dispatcher,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread", h.GetUnread)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
	g.DELETE("/notifications", h.ClearNotifications)
}

// RegisterAdminRoutes registers routes that require the admin role
func (h *NotificationHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/notifications", h.Dispatch)
}

func notificationID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}
	return uint(id), nil
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageSize {
		limit = 20
	}

	notifications, total, err := h.notificationRepository.GetByRecipientID(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return httpError(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetUnread returns up to 50 unread notifications
func (h *NotificationHandler) GetUnread(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}
	notifications, err := h.notificationRepository.GetUnread(c.Request().Context(), currentUserID, maxPageSize)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"notifications": notifications})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	today, yesterday, thisWeek, older, err := h.notificationRepository.GetGrouped(ctx, currentUserID, time.Now())
	if err != nil {
		return httpError(err)
	}

	unreadCount, _ := h.notificationRepository.GetUnreadCount(ctx, currentUserID)

	return ok(c, http.StatusOK, echo.Map{
		"notifications": echo.Map{
			"today":     today,
			"yesterday": yesterday,
			"thisWeek":  thisWeek,
			"older":     older,
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the actor's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}
	notifID, err := notificationID(c)
	if err != nil {
		return err
	}

	notification, err := h.notificationRepository.MarkAsRead(c.Request().Context(), currentUserID, notifID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, notification)
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}

	updated, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"updated": updated})
}

// DeleteNotification removes one of the actor's notifications
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}
	notifID, err := notificationID(c)
	if err != nil {
		return err
	}

	if err := h.notificationRepository.Delete(c.Request().Context(), currentUserID, notifID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearNotifications removes all of the actor's notifications
func (h *NotificationHandler) ClearNotifications(c echo.Context) error {
	currentUserID, err := currentActor(c)
	if err != nil {
		return err
	}

	deleted, err := h.notificationRepository.DeleteAll(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"deleted": deleted})
}

// Dispatch sends a notification to any recipient
func (h *NotificationHandler) Dispatch(c echo.Context) error {
	var req models.DispatchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	notification, err := h.dispatcher.Dispatch(c.Request().Context(), req.RecipientID, req.Type, services.Payload{
		Title:        req.Title,
		Message:      req.Message,
		RelatedID:    req.RelatedID,
		RelatedModel: req.RelatedModel,
		Icon:         req.Icon,
		ActionURL:    req.ActionURL,
	})
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusCreated, echo.Map{"notification_id": notification.ID})
}
