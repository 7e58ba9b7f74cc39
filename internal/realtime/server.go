package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/queue"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/service"
	"github.com/iliyamo/car-marketplace/internal/utils"
)

// Messenger persists chat messages. *service.MessageService implements it.
type Messenger interface {
	Send(ctx context.Context, senderID, receiverID uint64, body string) (*model.Message, error)
	MarkRead(ctx context.Context, messageID, readerID uint64) (*model.Message, error)
}

// Broker fans chat frames out to the other instances. *queue.Publisher
// implements it.
type Broker interface {
	Enabled() bool
	PublishChat(ctx context.Context, ev queue.ChatEvent) error
}

// Server upgrades authenticated requests to websockets and relays events.
type Server struct {
	Messages  Messenger
	Presence  Presence
	Hub       *Hub
	Broker    Broker
	Origin    string // instance id stamped on fanned out events
	JWTSecret string
	Heartbeat time.Duration // presence refresh interval, 0 disables
	Log       *logrus.Logger
}

type joinData struct {
	UserID uint64 `json:"user_id"`
}

type sendData struct {
	SenderID   uint64 `json:"sender_id"`
	ReceiverID uint64 `json:"receiver_id"`
	Message    string `json:"message"`
}

type markReadData struct {
	MessageID  uint64   `json:"message_id"`
	MessageIDs []uint64 `json:"message_ids"`
}

type statusData struct {
	Status string `json:"status"`
	UserID uint64 `json:"user_id"`
}

type readData struct {
	MessageID uint64 `json:"message_id"`
	ReaderID  uint64 `json:"reader_id"`
}

type errorData struct {
	Message string `json:"message"`
}

// Handle is the echo handler for the websocket endpoint. The access token
// comes from the "token" query parameter or a Bearer header.
func (s *Server) Handle(c echo.Context) error {
	raw := c.QueryParam("token")
	if raw == "" {
		raw = strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	}
	uid, _, err := utils.ParseAccessToken(s.JWTSecret, raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	ws := websocket.Server{
		// native clients send no Origin header
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   func(conn *websocket.Conn) { s.serve(conn, uid) },
	}
	ws.ServeHTTP(c.Response(), c.Request())
	return nil
}

// DeliverRemote hands an event fanned out by another instance to the local
// connections of its recipient.
func (s *Server) DeliverRemote(ev queue.ChatEvent) {
	frame, err := json.Marshal(Envelope{Event: ev.Event, Data: ev.Data})
	if err != nil {
		return
	}
	s.Hub.Deliver(ev.UserID, frame)
}

func (s *Server) serve(ws *websocket.Conn, uid uint64) {
	ctx, cancel := context.WithCancel(ws.Request().Context())
	defer cancel()
	c := &client{id: uuid.NewString(), userID: uid, send: make(chan []byte, sendBuffer)}
	log := s.Log.WithFields(logrus.Fields{"conn": c.id, "user_id": uid})
	log.Debug("chat connected")

	done := make(chan struct{})
	go s.writeLoop(ws, c, done)

	joined := false
	stopBeat := func() {}
	defer func() {
		stopBeat()
		if joined {
			s.leave(c)
		}
		close(c.send)
		<-done
		log.Debug("chat disconnected")
	}()

	for {
		var env Envelope
		if err := websocket.JSON.Receive(ws, &env); err != nil {
			var syntax *json.SyntaxError
			var typ *json.UnmarshalTypeError
			if errors.As(err, &syntax) || errors.As(err, &typ) {
				s.reply(c, EventError, errorData{"Invalid frame"})
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("chat read ended")
			}
			return
		}
		switch env.Event {
		case EventJoin:
			var d joinData
			if !s.decode(c, env.Data, &d) {
				continue
			}
			if d.UserID != 0 && d.UserID != uid {
				s.reply(c, EventError, errorData{"Cannot join another user's room"})
				continue
			}
			if !joined {
				s.Hub.add(c)
				joined = true
				if s.Heartbeat > 0 {
					stopBeat = s.startHeartbeat(ctx, c)
				}
			}
			if err := s.Presence.Join(ctx, uid, c.id); err != nil {
				log.WithError(err).Warn("presence join failed")
			}
			s.reply(c, EventStatus, statusData{"online", uid})
		case EventLeave:
			if joined {
				stopBeat()
				stopBeat = func() {}
				s.leave(c)
				joined = false
			}
			s.reply(c, EventStatus, statusData{"offline", uid})
		case EventMessage, EventSendMessage:
			var d sendData
			if s.decode(c, env.Data, &d) {
				s.send(ctx, c, d)
			}
		case EventMarkRead:
			var d markReadData
			if s.decode(c, env.Data, &d) {
				s.markRead(ctx, c, d)
			}
		default:
			s.reply(c, EventError, errorData{"Unknown event"})
		}
	}
}

func (s *Server) decode(c *client, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		s.reply(c, EventError, errorData{"Invalid event data"})
		return false
	}
	return true
}

func (s *Server) writeLoop(ws *websocket.Conn, c *client, done chan<- struct{}) {
	defer close(done)
	broken := false
	for frame := range c.send {
		if broken {
			continue
		}
		if err := websocket.Message.Send(ws, string(frame)); err != nil {
			broken = true
			_ = ws.Close()
		}
	}
	_ = ws.Close()
}

// startHeartbeat refreshes presence until the returned stop is called. stop
// waits for an in-flight refresh so it cannot land after leave.
func (s *Server) startHeartbeat(ctx context.Context, c *client) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.heartbeat(ctx, c)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Server) heartbeat(ctx context.Context, c *client) {
	t := time.NewTicker(s.Heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !s.Hub.has(c) {
				return
			}
			if err := s.Presence.Join(ctx, c.userID, c.id); err != nil {
				s.Log.WithError(err).Warn("presence refresh failed")
			}
		}
	}
}

func (s *Server) leave(c *client) {
	if !s.Hub.remove(c) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Presence.Leave(ctx, c.userID, c.id); err != nil {
		s.Log.WithError(err).Warn("presence leave failed")
	}
}

// send persists the message, pushes it to the receiver when online and
// confirms it to the sender.
func (s *Server) send(ctx context.Context, c *client, d sendData) {
	if d.SenderID != 0 && d.SenderID != c.userID {
		s.reply(c, EventError, errorData{"sender_id does not match the signed in user"})
		return
	}
	m, err := s.Messages.Send(ctx, c.userID, d.ReceiverID, d.Message)
	if err != nil {
		s.reply(c, EventError, errorData{sendError(err)})
		if _, ok := err.(*service.ValidationError); !ok {
			s.Log.WithError(err).WithField("user_id", c.userID).Warn("chat send failed")
		}
		return
	}
	s.Notify(ctx, m)
	s.reply(c, EventMessageSent, m)
}

// Notify pushes a stored message to its receiver when they are online. The
// REST send endpoint uses it so both paths deliver the same way.
func (s *Server) Notify(ctx context.Context, m *model.Message) {
	online, err := s.Presence.Online(ctx, m.ReceiverID)
	if err != nil {
		s.Log.WithError(err).Warn("presence lookup failed")
		online = true
	}
	if online {
		s.route(ctx, m.ReceiverID, EventReceiveMessage, m)
	}
}

// NotifyRead tells the sender of m that it was read.
func (s *Server) NotifyRead(ctx context.Context, m *model.Message) {
	s.route(ctx, m.SenderID, EventMessageRead, readData{m.ID, m.ReceiverID})
}

func sendError(err error) string {
	var v *service.ValidationError
	switch {
	case errors.As(err, &v):
		return v.Msg
	case errors.Is(err, repository.ErrUserNotFound):
		return "User not found"
	case errors.Is(err, repository.ErrForbidden):
		return "You cannot message this user"
	}
	return "Failed to send message"
}

func (s *Server) markRead(ctx context.Context, c *client, d markReadData) {
	ids := d.MessageIDs
	if d.MessageID != 0 {
		ids = append(ids, d.MessageID)
	}
	if len(ids) == 0 {
		s.reply(c, EventError, errorData{"message_ids is required"})
		return
	}
	for _, id := range ids {
		m, err := s.Messages.MarkRead(ctx, id, c.userID)
		if err != nil {
			s.reply(c, EventError, errorData{sendError(err)})
			continue
		}
		s.NotifyRead(ctx, m)
	}
}

// route delivers to the local room of userID and, with a broker, to every
// other instance.
func (s *Server) route(ctx context.Context, userID uint64, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.Log.WithError(err).Error("encode chat event")
		return
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return
	}
	s.Hub.Deliver(userID, frame)
	if s.Broker == nil || !s.Broker.Enabled() {
		return
	}
	ev := queue.ChatEvent{Origin: s.Origin, UserID: userID, Event: event, Data: raw}
	if err := s.Broker.PublishChat(ctx, ev); err != nil {
		s.Log.WithError(err).WithField("user_id", userID).Warn("chat fanout publish failed")
	}
}

func (s *Server) reply(c *client, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
		s.Log.WithField("conn", c.id).Warn("chat reply dropped")
	}
}
