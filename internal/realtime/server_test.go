package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/car-marketplace/internal/logging"
	"github.com/iliyamo/car-marketplace/internal/model"
	"github.com/iliyamo/car-marketplace/internal/queue"
	"github.com/iliyamo/car-marketplace/internal/repository"
	"github.com/iliyamo/car-marketplace/internal/utils"
)

const testSecret = "chat-secret"

type fakeMessenger struct {
	mu     sync.Mutex
	nextID uint64
	sent   map[uint64]*model.Message
}

func (f *fakeMessenger) Send(_ context.Context, senderID, receiverID uint64, body string) (*model.Message, error) {
	if receiverID == 99 {
		return nil, repository.ErrForbidden
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &model.Message{ID: f.nextID, SenderID: senderID, ReceiverID: receiverID, Body: body, CreatedAt: time.Now()}
	f.sent[m.ID] = m
	return m, nil
}

func (f *fakeMessenger) MarkRead(_ context.Context, id, readerID uint64) (*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.sent[id]
	if !ok || m.ReceiverID != readerID {
		return nil, repository.ErrNoChange
	}
	m.IsRead = true
	return m, nil
}

type fakeBroker struct {
	mu     sync.Mutex
	events []queue.ChatEvent
}

func (b *fakeBroker) Enabled() bool { return true }

func (b *fakeBroker) PublishChat(_ context.Context, ev queue.ChatEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func newTestServer(t *testing.T) (*Server, *fakeBroker, string) {
	t.Helper()
	broker := &fakeBroker{}
	s := &Server{
		Messages:  &fakeMessenger{sent: map[uint64]*model.Message{}},
		Presence:  NewMemoryPresence(),
		Hub:       NewHub(logging.Discard()),
		Broker:    broker,
		Origin:    "test",
		JWTSecret: testSecret,
		Log:       logging.Discard(),
	}
	e := echo.New()
	e.GET("/ws", s.Handle)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return s, broker, srv.URL
}

func dial(t *testing.T, base string, uid uint64) *websocket.Conn {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, uid, model.UserTypeIndividual, 5)
	if err != nil {
		t.Fatal(err)
	}
	ws, err := websocket.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws?token="+tok.Token, "", "http://localhost/")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func emit(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	raw, _ := json.Marshal(data)
	if err := websocket.JSON.Send(ws, Envelope{Event: event, Data: raw}); err != nil {
		t.Fatal(err)
	}
}

func expect(t *testing.T, ws *websocket.Conn, event string, into any) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env Envelope
	if err := websocket.JSON.Receive(ws, &env); err != nil {
		t.Fatalf("waiting for %s: %v", event, err)
	}
	if env.Event != event {
		t.Fatalf("got event %s (%s), want %s", env.Event, env.Data, event)
	}
	if into != nil {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatal(err)
		}
	}
}

func TestHandleRejectsMissingToken(t *testing.T) {
	_, _, base := newTestServer(t)
	resp, err := http.Get(base + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestChatRoundTrip(t *testing.T) {
	_, broker, base := newTestServer(t)
	alice := dial(t, base, 1)
	bob := dial(t, base, 2)

	var st statusData
	emit(t, alice, EventJoin, joinData{UserID: 1})
	expect(t, alice, EventStatus, &st)
	emit(t, bob, EventJoin, nil)
	expect(t, bob, EventStatus, &st)
	if st.Status != "online" || st.UserID != 2 {
		t.Fatalf("unexpected status %+v", st)
	}

	emit(t, alice, EventSendMessage, sendData{ReceiverID: 2, Message: "  is it still available?  "})
	var got model.Message
	expect(t, bob, EventReceiveMessage, &got)
	if got.SenderID != 1 || got.Body != "  is it still available?  " {
		t.Fatalf("bob received %+v", got)
	}
	var sent model.Message
	expect(t, alice, EventMessageSent, &sent)
	if sent.ID != got.ID {
		t.Fatalf("confirmation id %d, delivered id %d", sent.ID, got.ID)
	}

	emit(t, bob, EventMarkRead, markReadData{MessageIDs: []uint64{got.ID}})
	var rd readData
	expect(t, alice, EventMessageRead, &rd)
	if rd.MessageID != got.ID || rd.ReaderID != 2 {
		t.Fatalf("read receipt %+v", rd)
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.events) != 2 || broker.events[0].Event != EventReceiveMessage || broker.events[0].Origin != "test" {
		t.Fatalf("fanout events %+v", broker.events)
	}
}

func TestChatErrors(t *testing.T) {
	_, _, base := newTestServer(t)
	alice := dial(t, base, 1)

	var e errorData
	emit(t, alice, EventJoin, joinData{UserID: 5})
	expect(t, alice, EventError, &e)

	emit(t, alice, EventMessage, sendData{ReceiverID: 99, Message: "hi"})
	expect(t, alice, EventError, &e)
	if e.Message != "You cannot message this user" {
		t.Fatalf("error = %q", e.Message)
	}

	emit(t, alice, EventMessage, sendData{SenderID: 3, ReceiverID: 2, Message: "hi"})
	expect(t, alice, EventError, nil)

	emit(t, alice, "dance", nil)
	expect(t, alice, EventError, &e)
	if e.Message != "Unknown event" {
		t.Fatalf("error = %q", e.Message)
	}
}

func TestOfflineReceiverIsNotPushed(t *testing.T) {
	_, broker, base := newTestServer(t)
	alice := dial(t, base, 1)

	emit(t, alice, EventSendMessage, sendData{ReceiverID: 2, Message: "hello"})
	expect(t, alice, EventMessageSent, nil)

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.events) != 0 {
		t.Fatalf("offline receiver was pushed: %+v", broker.events)
	}
}

func TestDeliverRemote(t *testing.T) {
	s, _, base := newTestServer(t)
	bob := dial(t, base, 2)
	emit(t, bob, EventJoin, nil)
	expect(t, bob, EventStatus, nil)

	s.DeliverRemote(queue.ChatEvent{Origin: "other", UserID: 2, Event: EventReceiveMessage, Data: []byte(`{"message":"from afar"}`)})
	var m model.Message
	expect(t, bob, EventReceiveMessage, &m)
	if m.Body != "from afar" {
		t.Fatalf("body = %q", m.Body)
	}
}

type slowPresence struct {
	*MemoryPresence
	mu    sync.Mutex
	calls []string
}

func (p *slowPresence) Join(ctx context.Context, userID uint64, conn string) error {
	time.Sleep(3 * time.Millisecond)
	p.record("join")
	return p.MemoryPresence.Join(ctx, userID, conn)
}

func (p *slowPresence) Leave(ctx context.Context, userID uint64, conn string) error {
	p.record("leave")
	return p.MemoryPresence.Leave(ctx, userID, conn)
}

func (p *slowPresence) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *slowPresence) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

func TestHeartbeatStopsBeforeLeave(t *testing.T) {
	for _, explicit := range []bool{true, false} {
		s, _, base := newTestServer(t)
		p := &slowPresence{MemoryPresence: NewMemoryPresence()}
		s.Presence = p
		s.Heartbeat = time.Millisecond

		ws := dial(t, base, 4)
		emit(t, ws, EventJoin, joinData{UserID: 4})
		expect(t, ws, EventStatus, nil)
		time.Sleep(20 * time.Millisecond)
		if explicit {
			emit(t, ws, EventLeave, nil)
			expect(t, ws, EventStatus, nil)
		} else {
			ws.Close()
		}

		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if s.Hub.Deliver(4, []byte("{}")) == 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		if got := p.last(); got != "leave" {
			t.Fatalf("explicit=%v: last presence call %q after leave", explicit, got)
		}
		if online, _ := p.Online(context.Background(), 4); online {
			t.Fatalf("explicit=%v: user still online", explicit)
		}
	}
}
