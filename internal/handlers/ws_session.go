package handlers

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"aiassist/internal/models"
	"aiassist/internal/services"
)

const (
	wsWriteBuffer  = 100
	wsPingInterval = 30 * time.Second
)

// wsSession owns the write side of one WebSocket connection: a buffered
// write channel consumed by a single write loop, plus a protocol ping loop.
// All three stream endpoints share this skeleton; they differ only in the
// snapshot they send and the actions they accept.
type wsSession struct {
	conn      *websocket.Conn
	connID    string
	tag       string // log prefix, e.g. "CARDS-WS"
	writeChan chan models.ServerMessage
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newWSSession(c *websocket.Conn, tag string) *wsSession {
	return &wsSession{
		conn:      c,
		connID:    uuid.New().String(),
		tag:       tag,
		writeChan: make(chan models.ServerMessage, wsWriteBuffer),
		done:      make(chan struct{}),
	}
}

// start launches the write and ping loops
func (s *wsSession) start() {
	log.Printf("[%s] Connection opened: %s", s.tag, s.connID)

	// Write loop, sole consumer of writeChan
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] Write loop recovered for %s: %v", s.tag, s.connID, r)
			}
		}()
		for {
			select {
			case <-s.done:
				return
			case msg := <-s.writeChan:
				s.writeMu.Lock()
				err := s.conn.WriteJSON(msg)
				s.writeMu.Unlock()
				if err != nil {
					log.Printf("[%s] Write error for %s: %v", s.tag, s.connID, err)
					return
				}
			}
		}
	}()

	// Ping loop, shares the write mutex with the write loop
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[%s] Ping loop recovered for %s: %v", s.tag, s.connID, r)
			}
		}()
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.writeMu.Lock()
				err := s.conn.WriteMessage(websocket.PingMessage, nil)
				s.writeMu.Unlock()
				if err != nil {
					return
				}
			case <-s.done:
				return
			}
		}
	}()
}

// send queues a message without ever blocking past connection teardown
func (s *wsSession) send(msg models.ServerMessage) {
	select {
	case <-s.done:
	case s.writeChan <- msg:
	}
}

// close signals every loop attached to this session to exit
func (s *wsSession) close() {
	s.closeOnce.Do(func() { close(s.done) })
	log.Printf("[%s] Connection closed: %s", s.tag, s.connID)
}

// syncAndForward sends an initial snapshot and then forwards live events
// until the session closes, resyncing with a fresh snapshot when the
// subscription lags. The snapshot goes out before any buffered event is
// consumed, so the client always has base state before the first update.
func syncAndForward(s *wsSession, sub *services.Subscription, snapshot func() models.ServerMessage) {
	s.send(snapshot())
	for {
		select {
		case <-s.done:
			return
		case <-sub.Lagged:
			sub.Drain()
			s.send(snapshot())
		case event := <-sub.C:
			s.send(models.ServerMessage{Type: event.Type, Data: event.Data})
		}
	}
}

// readLoop parses client JSON into v and hands it to handle until the
// connection drops. handle returning false ends the loop.
func (s *wsSession) readLoop(handle func(raw []byte) bool) {
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[%s] Read error for %s: %v", s.tag, s.connID, err)
			}
			return
		}
		if !handle(msg) {
			return
		}
	}
}
