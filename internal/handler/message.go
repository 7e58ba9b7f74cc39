package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/service"
)

// ChatNotifier pushes stored messages to live sockets. *realtime.Server
// implements it.
type ChatNotifier interface {
	Notify(ctx context.Context, m *model.Message)
	NotifyRead(ctx context.Context, m *model.Message)
}

// MessageHandler is the REST side of chat, used by clients that are
// offline or have no socket open.
type MessageHandler struct {
	Messages *service.MessageService
	Live     ChatNotifier
	Log      *logrus.Logger
}

func NewMessageHandler(messages *service.MessageService, live ChatNotifier, log *logrus.Logger) *MessageHandler {
	return &MessageHandler{Messages: messages, Live: live, Log: log}
}

// Conversations handles GET /api/messages/conversations.
func (h *MessageHandler) Conversations(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Messages.Conversations(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items})
}

// Thread handles GET /api/messages/:user_id.
func (h *MessageHandler) Thread(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	other, err := pathID(c, "user_id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	page, limit := pageParams(c)
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, p, err := h.Messages.Thread(ctx, uid, other, page, limit)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, paged(items, p))
}

// Unread handles GET /api/messages/unread-count.
func (h *MessageHandler) Unread(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	n, err := h.Messages.UnreadCount(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"unread_count": n})
}

// Send handles POST /api/messages.
func (h *MessageHandler) Send(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req struct {
		ReceiverID uint64 `json:"receiver_id"`
		Message    string `json:"message"`
	}
	if err := bindJSON(c, &req); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Messages.Send(ctx, uid, req.ReceiverID, req.Message)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if h.Live != nil {
		h.Live.Notify(ctx, m)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": m})
}

// MarkRead handles POST /api/messages/:id/read.
func (h *MessageHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Messages.MarkRead(ctx, id, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if h.Live != nil {
		h.Live.NotifyRead(ctx, m)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": m})
}
