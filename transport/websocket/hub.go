package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/pathboard/game/board"
)

// Connection timings. pingEvery must stay below pongTimeout so a healthy
// viewer always answers before its read deadline passes.
const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingEvery    = pongTimeout * 9 / 10

	// Viewers only send control frames.
	readLimit = 512

	sendBuffer      = 256
	broadcastBuffer = 256
)

// Event names sent to clients.
const (
	EventSnapshot    = "snapshot"
	EventStateUpdate = "state_update"
	EventPathFound   = "path_found"
	EventNoPath      = "no_path"
	EventSessionGone = "session_deleted"
)

// Board viewers may be served from any origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Message is the JSON frame sent to board viewers.
type Message struct {
	SessionID  string            `json:"session_id"`
	BoardState *board.BoardState `json:"board_state,omitempty"`
	Event      string            `json:"event,omitempty"`
	Data       any               `json:"data,omitempty"`
}

// Client is one WebSocket connection watching a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID string
}

type countRequest struct {
	sessionID string
	reply     chan int
}

// Hub fans board updates out to the viewers of each session. rooms is
// owned by the Run goroutine.
type Hub struct {
	rooms map[string]map[*Client]bool

	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	count      chan countRequest
	done       chan struct{}

	logger *slog.Logger
}

// NewHub creates a new WebSocket hub. A nil logger uses slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is done, closing
// every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, room := range h.rooms {
				for c := range room {
					h.leave(c)
				}
			}
			return
		case c := <-h.register:
			h.join(c)
		case c := <-h.unregister:
			h.leave(c)
		case msg := <-h.broadcast:
			h.deliver(msg)
		case req := <-h.count:
			req.reply <- len(h.rooms[req.sessionID])
		}
	}
}

// ServeWS upgrades the request and registers the connection for sessionID.
// When initial is not nil it is the first frame the client receives, so a
// viewer never waits for the next edit to see the board.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, initial *board.BoardState) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session", sessionID, "error", err)
		return
	}

	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		sessionID: sessionID,
	}
	if initial != nil {
		data, err := json.Marshal(&Message{SessionID: sessionID, BoardState: initial, Event: EventSnapshot})
		if err != nil {
			h.logger.Error("failed to marshal websocket snapshot", "session", sessionID, "error", err)
		} else {
			client.send <- data
		}
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go client.writeLoop()
	go client.readLoop()
}

// BroadcastToSession pushes a new board state to the session's viewers.
func (h *Hub) BroadcastToSession(sessionID string, state *board.BoardState) {
	h.enqueue(&Message{
		SessionID:  sessionID,
		BoardState: state,
		Event:      EventStateUpdate,
	})
}

// BroadcastEvent pushes a named event with an arbitrary payload.
func (h *Hub) BroadcastEvent(sessionID string, event string, data any) {
	h.enqueue(&Message{
		SessionID: sessionID,
		Event:     event,
		Data:      data,
	})
}

// ClientCount returns the number of clients watching a session. It blocks
// until Run handles the request.
func (h *Hub) ClientCount(ctx context.Context, sessionID string) (int, error) {
	req := countRequest{sessionID: sessionID, reply: make(chan int, 1)}
	select {
	case h.count <- req:
	case <-h.done:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	return <-req.reply, nil
}

// enqueue hands a message to Run without blocking the caller. Messages are
// dropped when the queue is full.
func (h *Hub) enqueue(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message",
			"session", message.SessionID, "event", message.Event)
	}
}

func (h *Hub) join(c *Client) {
	room := h.rooms[c.sessionID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[c.sessionID] = room
	}
	room[c] = true
	h.logger.Debug("board viewer joined", "session", c.sessionID, "viewers", len(room))
}

// leave closes c's send queue. Leaving twice is a no-op.
func (h *Hub) leave(c *Client) {
	room := h.rooms[c.sessionID]
	if !room[c] {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
	}
	h.logger.Debug("board viewer left", "session", c.sessionID, "viewers", len(room))
}

// deliver encodes msg once and queues it for every viewer of its session.
// A viewer whose queue is full is disconnected.
func (h *Hub) deliver(msg *Message) {
	room := h.rooms[msg.SessionID]
	if len(room) == 0 {
		return
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode websocket frame", "session", msg.SessionID, "error", err)
		return
	}
	for c := range room {
		select {
		case c.send <- frame:
		default:
			h.leave(c)
		}
	}
}

// readLoop drains incoming frames so pongs are processed, and unregisters
// the viewer once the connection fails.
func (c *Client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	}
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "session", c.sessionID, "error", err)
			}
			return
		}
	}
}

// writeLoop is the connection's only writer. It sends queued frames and
// pings, and says goodbye when the hub closes the queue.
func (c *Client) writeLoop() {
	pings := time.NewTicker(pingEvery)
	defer pings.Stop()
	defer c.conn.Close()

	write := func(kind int, payload []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return c.conn.WriteMessage(kind, payload)
	}

	for {
		var err error
		select {
		case frame, open := <-c.send:
			if !open {
				write(websocket.CloseMessage, nil)
				return
			}
			err = write(websocket.TextMessage, frame)
		case <-pings.C:
			err = write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}
