package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	notifyservice "estately/internal/app/services/notify"
	domainnotify "estately/internal/domain/notify"
	domainuser "estately/internal/domain/user"
)

// NotificationHandler lets back-office staff push notifications to online
// users. Delivery is realtime-only; there is no stored inbox to query.
type NotificationHandler struct {
	Notify *notifyservice.Service
	Logger *slog.Logger
}

type dispatchNotificationRequest struct {
	Kind   string `json:"kind"`
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body"`
	Target struct {
		Kind   string `json:"kind" binding:"required"`
		UserID string `json:"userId"`
		Role   string `json:"role"`
	} `json:"target" binding:"required"`
}

func (h NotificationHandler) Create(c *gin.Context) {
	if _, ok := requireRole(c, domainuser.RoleAdmin); !ok {
		return
	}
	var req dispatchNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	target, err := parseTarget(req.Target.Kind, req.Target.UserID, req.Target.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notification, err := h.Notify.Dispatch(c.Request.Context(), notifyservice.DispatchParams{
		Kind:   req.Kind,
		Title:  req.Title,
		Body:   req.Body,
		Target: target,
	})
	if err != nil {
		switch {
		case errors.Is(err, domainnotify.ErrTitleRequired), errors.Is(err, domainnotify.ErrTargetRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			if h.Logger != nil {
				h.Logger.Error("notification dispatch failed", "error", err)
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "notification dispatch failed"})
		}
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": string(notification.ID)})
}

func parseTarget(kind, userID, role string) (domainnotify.Target, error) {
	switch domainnotify.TargetKind(strings.TrimSpace(kind)) {
	case domainnotify.KindTargeted:
		target := domainnotify.Targeted(domainuser.ID(strings.TrimSpace(userID)))
		if !target.Valid() {
			return domainnotify.Target{}, errors.New("target userId is required")
		}
		return target, nil
	case domainnotify.KindBroadcastToRole:
		target := domainnotify.BroadcastToRole(domainuser.Role(strings.TrimSpace(role)))
		if !target.Valid() {
			return domainnotify.Target{}, errors.New("target role is required")
		}
		return target, nil
	default:
		return domainnotify.Target{}, errors.New("target kind must be targeted or role")
	}
}

var _ NotificationHTTP = (*NotificationHandler)(nil)
