package infrastructure

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"courtsync/internal/modules/realtime/domain"
)

// Subscriber is one downstream websocket attached to the hub. Clients
// subscribe to club topics and receive every event the gateway applies
// for those clubs.
type Subscriber struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	userID     string
	sessionID  string
	subscribed map[string]struct{}
	closeOnce  sync.Once
}

type subscriberCommand struct {
	Action string `json:"action"`
	ClubID string `json:"clubId"`
}

func NewSubscriber(hub *Hub, conn *websocket.Conn, userID, sessionID string, buf int) *Subscriber {
	return &Subscriber{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, buf),
		userID:     userID,
		sessionID:  sessionID,
		subscribed: make(map[string]struct{}),
	}
}

func (s *Subscriber) key() string {
	return s.userID + ":" + s.sessionID
}

// close is called only with the hub write lock held (via detachLocked);
// all sends on s.send happen under the hub read lock, so a send can
// never race the close.
func (s *Subscriber) close() {
	s.closeOnce.Do(func() {
		close(s.send)
		_ = s.conn.Close()
	})
}

// Enqueue queues a frame for the subscriber's write pump. The frame is
// dropped when the subscriber is detached or its buffer is full.
func (s *Subscriber) Enqueue(msg []byte) bool {
	return s.hub.enqueue(s, msg)
}

func (s *Subscriber) WritePump() {
	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Warn("subscriber write error", slog.Any("error", err))
				return
			}
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (s *Subscriber) ReadPump() {
	s.conn.SetReadLimit(1 << 16)
	_ = s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})
	defer s.hub.detach(s)
	for {
		var cmd subscriberCommand
		_ = s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("subscriber read error", slog.Any("error", err))
			}
			return
		}
		s.handleCommand(cmd)
	}
}

func (s *Subscriber) handleCommand(cmd subscriberCommand) {
	switch strings.ToLower(cmd.Action) {
	case "subscribe":
		if cmd.ClubID != "" {
			s.hub.subscribe(s, cmd.ClubID)
		}
	case "unsubscribe":
		if cmd.ClubID != "" {
			s.hub.unsubscribe(s, cmd.ClubID)
		}
	case "ping":
		pong := &domain.Envelope{Kind: domain.EventUnknown, Name: "pong", ReceivedAt: time.Now().UTC()}
		if data, err := domain.EncodeEnvelope(pong); err == nil {
			s.hub.enqueue(s, data)
		}
	}
}

// Hub fans applied events out to downstream subscribers, one topic per
// club.
type Hub struct {
	clubs       map[string]map[*Subscriber]struct{}
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clubs:       make(map[string]map[*Subscriber]struct{}),
		subscribers: make(map[string]*Subscriber),
	}
}

// Attach registers a subscriber and joins it to each club topic. A new
// connection for the same user and session replaces the old one.
func (h *Hub) Attach(s *Subscriber, clubIDs []string) {
	h.mu.Lock()
	if existing, ok := h.subscribers[s.key()]; ok && existing != s {
		h.detachLocked(existing)
	}
	h.subscribers[s.key()] = s
	h.mu.Unlock()
	for _, clubID := range clubIDs {
		if strings.TrimSpace(clubID) == "" {
			continue
		}
		h.subscribe(s, clubID)
	}
}

func (h *Hub) subscribe(s *Subscriber, clubID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clubs[clubID] == nil {
		h.clubs[clubID] = make(map[*Subscriber]struct{})
	}
	h.clubs[clubID][s] = struct{}{}
	s.subscribed[clubID] = struct{}{}
}

func (h *Hub) unsubscribe(s *Subscriber, clubID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.clubs[clubID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.clubs, clubID)
		}
	}
	delete(s.subscribed, clubID)
}

func (h *Hub) detach(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(s)
}

func (h *Hub) detachLocked(s *Subscriber) {
	if s == nil {
		return
	}
	for clubID := range s.subscribed {
		if subs, ok := h.clubs[clubID]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(h.clubs, clubID)
			}
		}
	}
	delete(h.subscribers, s.key())
	s.close()
}

// Broadcast re-emits an upstream envelope to every subscriber of its
// club. A subscriber with a full send buffer is detached, slow clients
// must not back up the dispatch path.
func (h *Hub) Broadcast(_ context.Context, ev *domain.Envelope) {
	data, err := domain.EncodeEnvelope(ev)
	if err != nil {
		slog.Warn("broadcast encode error", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	var slow []*Subscriber
	for s := range h.clubs[ev.ClubID] {
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		go h.detach(s)
	}
}

// enqueue delivers a frame to one subscriber under the hub lock. A
// subscriber no longer registered may already have a closed channel, so
// the frame is dropped instead.
func (h *Hub) enqueue(s *Subscriber, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.subscribers[s.key()] != s {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// SubscriberCount reports how many connections are attached to a club.
func (h *Hub) SubscriberCount(clubID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clubs[clubID])
}
