package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	bookinguc "courtsync/internal/modules/bookings/application/usecase"
	bookingdomain "courtsync/internal/modules/bookings/domain"
	"courtsync/internal/modules/realtime/domain"
)

type sinkRecorder struct {
	mu     sync.Mutex
	events []*domain.Envelope
}

func (s *sinkRecorder) Dispatch(_ context.Context, ev *domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sinkRecorder) snapshot() []*domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Envelope, len(s.events))
	copy(out, s.events)
	return out
}

// feedServer is an upstream stand-in. Each accepted connection is handed
// to serve, and connections can be dropped on demand.
type feedServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn
	auths []string
}

func newFeedServer(t *testing.T, serve func(conn *websocket.Conn)) *feedServer {
	t.Helper()
	fs := &feedServer{t: t}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := fs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.mu.Lock()
		fs.conns = append(fs.conns, conn)
		fs.auths = append(fs.auths, r.Header.Get("Authorization"))
		fs.mu.Unlock()
		if serve != nil {
			serve(conn)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *feedServer) url() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

func (fs *feedServer) connCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.conns)
}

func (fs *feedServer) dropAll() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, conn := range fs.conns {
		_ = conn.Close()
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestChannelDeliversDecodedEvents(t *testing.T) {
	fs := newFeedServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"booking_created","clubId":"club-1","data":{"id":"bk-1"}}`))
	})
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{URL: fs.url(), Token: "tok-1", AutoConnect: true, MinBackoff: 10 * time.Millisecond}, sink)
	defer ch.Close()

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 }, "event never reached the sink")

	got := sink.snapshot()[0]
	if got.Kind != domain.EventBookingCreated {
		t.Fatalf("wrong kind: %v", got.Kind)
	}
	if got.ClubID != "club-1" {
		t.Fatalf("wrong club: %q", got.ClubID)
	}

	fs.mu.Lock()
	auth := fs.auths[0]
	fs.mu.Unlock()
	if auth != "Bearer tok-1" {
		t.Fatalf("token not forwarded: %q", auth)
	}
}

func TestChannelMalformedFrameDoesNotStall(t *testing.T) {
	fs := newFeedServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"booking_updated","clubId":"club-1","data":{"id":"bk-2"}}`))
	})
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{URL: fs.url(), AutoConnect: true, MinBackoff: 10 * time.Millisecond}, sink)
	defer ch.Close()

	waitFor(t, func() bool { return len(sink.snapshot()) == 1 }, "frame after garbage never arrived")
	if got := sink.snapshot()[0]; got.Kind != domain.EventBookingUpdated {
		t.Fatalf("wrong kind survived: %v", got.Kind)
	}
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	block := func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
	fs := newFeedServer(t, block)

	var mu sync.Mutex
	var reconnects []int
	var firstID string

	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{
		URL:         fs.url(),
		AutoConnect: true,
		MinBackoff:  10 * time.Millisecond,
		OnReconnect: func(attempt int) {
			mu.Lock()
			reconnects = append(reconnects, attempt)
			mu.Unlock()
		},
	}, sink)
	defer ch.Close()

	waitFor(t, func() bool { return ch.State() == domain.StateConnected }, "never connected")
	firstID = ch.SocketID()
	if firstID == "" {
		t.Fatal("connected without a socket id")
	}
	mu.Lock()
	if len(reconnects) != 0 {
		mu.Unlock()
		t.Fatal("reconnect callback fired on first connect")
	}
	mu.Unlock()

	fs.dropAll()
	waitFor(t, func() bool { return fs.connCount() >= 2 && ch.State() == domain.StateConnected }, "never reconnected")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reconnects) == 1
	}, "reconnect callback did not fire")
	mu.Lock()
	if reconnects[0] != 1 {
		mu.Unlock()
		t.Fatalf("expected attempt 1, got %d", reconnects[0])
	}
	mu.Unlock()

	if ch.SocketID() == firstID {
		t.Fatal("socket id not reissued after reconnect")
	}
	if ch.Reconnects() != 1 {
		t.Fatalf("reconnect counter = %d", ch.Reconnects())
	}
}

func TestReconnectResyncPreservesStoreEntries(t *testing.T) {
	fs := newFeedServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	store := bookinguc.NewBookingStore("club-1")
	store.ReplaceAll([]bookingdomain.Booking{
		{ID: "bk-1", ClubID: "club-1", CourtID: "court-1", Status: bookingdomain.BookingConfirmed},
		{ID: "bk-2", ClubID: "club-1", CourtID: "court-2", Status: bookingdomain.BookingPending},
	})

	var mu sync.Mutex
	var lenAtResync int
	resynced := make(chan struct{})
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{
		URL:         fs.url(),
		AutoConnect: true,
		MinBackoff:  10 * time.Millisecond,
		OnReconnect: func(int) {
			mu.Lock()
			lenAtResync = store.Len()
			mu.Unlock()
			// Fresh authoritative snapshot: bk-1 survives, bk-2 was
			// cancelled upstream while the channel was down, bk-3 is new.
			store.ReplaceAll([]bookingdomain.Booking{
				{ID: "bk-1", ClubID: "club-1", CourtID: "court-1", Status: bookingdomain.BookingConfirmed},
				{ID: "bk-3", ClubID: "club-1", CourtID: "court-1", Status: bookingdomain.BookingPending},
			})
			close(resynced)
		},
	}, sink)
	defer ch.Close()

	waitFor(t, func() bool { return ch.State() == domain.StateConnected }, "never connected")
	fs.dropAll()

	select {
	case <-resynced:
	case <-time.After(3 * time.Second):
		t.Fatal("resync callback never ran")
	}

	mu.Lock()
	if lenAtResync != 2 {
		mu.Unlock()
		t.Fatalf("store held %d entries when resync started, the transition must not wipe it", lenAtResync)
	}
	mu.Unlock()

	if _, ok := store.Booking("bk-1"); !ok {
		t.Fatal("pre-existing booking lost across reconnect")
	}
	if _, ok := store.Booking("bk-3"); !ok {
		t.Fatal("resync snapshot not applied")
	}
	if _, ok := store.Booking("bk-2"); ok {
		t.Fatal("cancelled booking survived the authoritative snapshot")
	}
}

func TestChannelCloseIsTerminal(t *testing.T) {
	fs := newFeedServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{URL: fs.url(), AutoConnect: true, MinBackoff: 10 * time.Millisecond}, sink)

	waitFor(t, func() bool { return ch.State() == domain.StateConnected }, "never connected")
	ch.Close()

	if ch.State() != domain.StateIdle {
		t.Fatalf("state after close = %v", ch.State())
	}
	before := fs.connCount()
	time.Sleep(50 * time.Millisecond)
	if fs.connCount() != before {
		t.Fatal("channel redialed after close")
	}

	// Connect after close stays inert.
	ch.Connect()
	time.Sleep(50 * time.Millisecond)
	if ch.State() != domain.StateIdle {
		t.Fatal("closed channel came back to life")
	}
}

func TestChannelRetriesWhenServerUnavailable(t *testing.T) {
	var states []domain.ConnectionState
	var mu sync.Mutex
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{
		URL:         "ws://127.0.0.1:1/feed",
		AutoConnect: true,
		MinBackoff:  5 * time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		OnStateChange: func(state domain.ConnectionState) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		},
	}, sink)
	defer ch.Close()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		var attempts int
		for _, s := range states {
			if s == domain.StateConnecting {
				attempts++
			}
		}
		return attempts >= 3
	}, "dial loop did not keep retrying")
}

func TestChannelReconnectCallbackPanicContained(t *testing.T) {
	fs := newFeedServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	sink := &sinkRecorder{}
	ch := NewSocketChannel(ChannelOptions{
		URL:         fs.url(),
		AutoConnect: true,
		MinBackoff:  10 * time.Millisecond,
		OnReconnect: func(int) { panic("resync exploded") },
	}, sink)
	defer ch.Close()

	waitFor(t, func() bool { return ch.State() == domain.StateConnected }, "never connected")
	fs.dropAll()
	waitFor(t, func() bool { return fs.connCount() >= 2 && ch.State() == domain.StateConnected }, "loop died with the callback")

	fs.dropAll()
	waitFor(t, func() bool { return fs.connCount() >= 3 }, "second reconnect never happened")
}
