// Package hub implements the WebSocket multiplexing layer from spec.md
// §4.5: upgrade validation, the client↔session message protocol, and
// fan-out of PTY output to every connected client of a session or the
// shared dev terminal. Grounded on the teacher's handlers/terminal.go
// (upgrade-then-read-loop shape) and handlers/websocket.go (origin check).
package hub

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"clicast/devterminal"
	"clicast/ptyadapter"
	"clicast/session"
	"clicast/token"
	"clicast/wsproto"
)

// exitGrace is how long session clients are kept open after an exit frame
// before the hub force-closes them (spec.md §4.5).
const exitGrace = 1500 * time.Millisecond

// outboxSize bounds each client's pending-write queue. A client whose
// queue fills (too slow to drain) is evicted rather than letting its
// socket back-pressure the PTY reader goroutine feeding it (spec.md §5
// backpressure policy). writeTimeout bounds a single write once the
// writer goroutine picks a frame off the queue.
const (
	outboxSize   = 64
	writeTimeout = 10 * time.Second
)

// TokenVerifier is the subset of token.Store the hub needs.
type TokenVerifier interface {
	Verify(plain string) bool
}

var _ TokenVerifier = (*token.Store)(nil)

// errSlowClient marks a client whose outbox was full at send time.
var errSlowClient = errors.New("hub: client outbox full")

// Hub wires the registry and dev terminal to live WebSocket connections.
type Hub struct {
	registry *session.Registry
	dev      *devterminal.Terminal
	tokens   TokenVerifier
	upgrader websocket.Upgrader

	mu             sync.Mutex
	sessionClients map[string]map[*wsClient]struct{}
	devClients     map[*wsClient]struct{}
}

// New builds a Hub bound to registry and dev.
func New(registry *session.Registry, dev *devterminal.Terminal, tokens TokenVerifier) *Hub {
	return &Hub{
		registry: registry,
		dev:      dev,
		tokens:   tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessionClients: make(map[string]map[*wsClient]struct{}),
		devClients:     make(map[*wsClient]struct{}),
	}
}

// wsClient owns exactly one writer goroutine draining outbox, so the PTY
// read loop (which calls send via broadcastSession/broadcastDev) never
// touches the socket directly and can never block on a slow reader on the
// other end. A full outbox means the client isn't draining fast enough;
// send reports that back to the caller so the hub can evict it.
type wsClient struct {
	conn        *websocket.Conn
	writeMu     sync.Mutex
	sessionID   string
	initialized bool

	// stateMu guards outbox and stopped together so send() can never race
	// stop()'s channel close — a send on a closed channel panics, so both
	// the full/not-full check and the close happen under the same lock.
	stateMu sync.Mutex
	outbox  chan []byte
	stopped bool
}

func newWSClient(conn *websocket.Conn, sessionID string) *wsClient {
	c := &wsClient{
		conn:      conn,
		outbox:    make(chan []byte, outboxSize),
		sessionID: sessionID,
	}
	go c.writeLoop()
	return c
}

func (c *wsClient) writeLoop() {
	for data := range c.outbox {
		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.conn.WriteMessage(websocket.TextMessage, data)
		c.writeMu.Unlock()
		if err != nil {
			_ = c.conn.Close()
			return
		}
	}
}

// send enqueues data for the writer goroutine without blocking. It returns
// an error if the queue is full (the client is too slow to drain) or the
// client already stopped, so the caller evicts rather than waits — this
// keeps the PTY read loop that ultimately calls send (via broadcastSession)
// from ever blocking on a slow socket.
func (c *wsClient) send(data []byte) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.stopped {
		return errSlowClient
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		return errSlowClient
	}
}

// stop terminates the writer goroutine. Idempotent.
func (c *wsClient) stop() {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.outbox)
}

func (c *wsClient) closeWithCode(code int) {
	c.stop()
	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

// ServeSession handles GET /ws?sessionId=...&token=... (spec.md §4.5).
func (h *Hub) ServeSession(c *gin.Context) {
	plainToken := c.Query("token")
	if !h.tokens.Verify(plainToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}

	sessionID := c.Query("sessionId")
	if sessionID == "" || !h.registry.Exists(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[hub] upgrade failed: %v", err)
		return
	}

	client := newWSClient(conn, sessionID)
	h.addSessionClient(sessionID, client)
	h.readLoopSession(client)
}

// ServeDev handles GET /ws/dev?token=... (spec.md §4.5).
func (h *Hub) ServeDev(c *gin.Context) {
	plainToken := c.Query("token")
	if !h.tokens.Verify(plainToken) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[hub] dev upgrade failed: %v", err)
		return
	}

	client := newWSClient(conn, "")
	h.addDevClient(client)
	h.readLoopDev(client)
}

func (h *Hub) readLoopSession(client *wsClient) {
	defer h.removeSessionClient(client.sessionID, client)
	for {
		msgType, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			_ = client.send(wsproto.Error("binary frames are not supported"))
			continue
		}

		msg, err := wsproto.ParseClientMessage(raw)
		if err != nil {
			_ = client.send(wsproto.Error(err.Error()))
			continue
		}

		switch msg.Type {
		case wsproto.ClientInit:
			h.handleSessionInit(client, msg)
		case wsproto.ClientInput:
			if !client.initialized {
				_ = client.send(wsproto.Error("Terminal not initialized. Send init first."))
				continue
			}
			h.registry.Write(client.sessionID, []byte(msg.Data))
		case wsproto.ClientResize:
			if client.initialized {
				h.registry.Resize(client.sessionID, msg.Cols, msg.Rows)
			}
		case wsproto.ClientPing:
			_ = client.send(wsproto.Pong())
		default:
			_ = client.send(wsproto.Error("unsupported message for this endpoint"))
		}
	}
}

func (h *Hub) readLoopDev(client *wsClient) {
	defer h.removeDevClient(client)
	for {
		msgType, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType == websocket.BinaryMessage {
			_ = client.send(wsproto.Error("binary frames are not supported"))
			continue
		}

		msg, err := wsproto.ParseClientMessage(raw)
		if err != nil {
			_ = client.send(wsproto.Error(err.Error()))
			continue
		}

		switch msg.Type {
		case wsproto.ClientInit:
			h.handleDevInit(client, msg)
		case wsproto.ClientInput:
			if !client.initialized {
				_ = client.send(wsproto.Error("Terminal not initialized. Send init first."))
				continue
			}
			h.dev.Write([]byte(msg.Data))
		case wsproto.ClientResize:
			if client.initialized {
				h.dev.Resize(msg.Cols, msg.Rows)
			}
		case wsproto.ClientPing:
			_ = client.send(wsproto.Pong())
		case wsproto.ClientKill:
			if err := h.dev.Kill(); err == nil {
				_ = client.send(wsproto.Killed())
			}
		default:
			_ = client.send(wsproto.Error("unsupported message for this endpoint"))
		}
	}
}

func (h *Hub) handleSessionInit(client *wsClient, msg wsproto.ClientMessage) {
	if client.initialized {
		return
	}
	sessionID := client.sessionID

	cbs := session.Callbacks{
		OnOutput: func(chunk []byte) {
			h.broadcastSession(sessionID, wsproto.Output(chunk))
		},
		OnStatus: func(status session.Status) {
			h.broadcastSession(sessionID, wsproto.Status(string(status), sessionID))
		},
		OnExit: func(info ptyadapter.ExitInfo) {
			h.handleSessionExit(sessionID, info)
		},
		OnError: func(err error) {
			h.broadcastSession(sessionID, wsproto.Error(err.Error()))
		},
	}

	if !h.registry.Start(sessionID, msg.Cols, msg.Rows, cbs) {
		_ = client.send(wsproto.Error("failed to start session"))
		return
	}

	client.initialized = true
	_ = client.send(wsproto.Ready(sessionID, nil))
	_ = client.send(wsproto.History(h.registry.History(sessionID)))
}

func (h *Hub) handleDevInit(client *wsClient, msg wsproto.ClientMessage) {
	if client.initialized {
		return
	}

	cbs := devterminal.Callbacks{
		OnOutput: func(chunk []byte) {
			h.broadcastDev(wsproto.Output(chunk))
		},
		OnStatus: func(status devterminal.Status) {
			h.broadcastDev(wsproto.Status(string(status), ""))
		},
		OnExit: func(info ptyadapter.ExitInfo) {
			h.handleDevExit(info)
		},
	}

	isNew, err := h.dev.EnsureStarted(msg.Cols, msg.Rows, cbs)
	if err != nil {
		_ = client.send(wsproto.Error("failed to start dev terminal"))
		return
	}

	client.initialized = true
	isNewCopy := isNew
	_ = client.send(wsproto.Ready("", &isNewCopy))
	_ = client.send(wsproto.History(h.dev.History()))
}

func (h *Hub) handleSessionExit(sessionID string, info ptyadapter.ExitInfo) {
	h.broadcastSession(sessionID, wsproto.Exit(info.ExitCode, info.Signal))
	h.scheduleSessionClose(sessionID, websocket.CloseNormalClosure)
}

func (h *Hub) handleDevExit(info ptyadapter.ExitInfo) {
	h.broadcastDev(wsproto.Exit(info.ExitCode, info.Signal))
	h.scheduleDevClose(websocket.CloseNormalClosure)
}

func (h *Hub) scheduleSessionClose(sessionID string, code int) {
	time.AfterFunc(exitGrace, func() {
		h.closeSessionClients(sessionID, code)
	})
}

func (h *Hub) scheduleDevClose(code int) {
	time.AfterFunc(exitGrace, func() {
		h.closeDevClients(code)
	})
}

func (h *Hub) addSessionClient(id string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessionClients[id]
	if !ok {
		set = make(map[*wsClient]struct{})
		h.sessionClients[id] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) removeSessionClient(id string, client *wsClient) {
	h.mu.Lock()
	emptied := false
	if set, ok := h.sessionClients[id]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.sessionClients, id)
			emptied = true
		}
	}
	h.mu.Unlock()

	client.stop()
	_ = client.conn.Close()

	// Unregister the PTY's callbacks once nobody is left watching this
	// session (spec.md §4.5) — the registry keeps the session itself (and
	// its output ring) alive, only the broadcast hooks are torn down.
	if emptied {
		h.registry.Unwatch(id)
	}
}

func (h *Hub) addDevClient(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devClients[client] = struct{}{}
}

func (h *Hub) removeDevClient(client *wsClient) {
	h.mu.Lock()
	delete(h.devClients, client)
	h.mu.Unlock()
	client.stop()
	_ = client.conn.Close()
}

// broadcastSession sends data to every client currently attached to id. A
// send failure evicts that client (spec.md §5 backpressure policy) without
// affecting the session itself.
func (h *Hub) broadcastSession(id string, data []byte) {
	h.mu.Lock()
	set := h.sessionClients[id]
	clients := make([]*wsClient, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.removeSessionClient(id, c)
		}
	}
}

func (h *Hub) broadcastDev(data []byte) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.devClients))
	for c := range h.devClients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(data); err != nil {
			h.removeDevClient(c)
		}
	}
}

func (h *Hub) closeSessionClients(id string, code int) {
	h.mu.Lock()
	set := h.sessionClients[id]
	delete(h.sessionClients, id)
	h.mu.Unlock()

	for c := range set {
		c.closeWithCode(code)
	}
}

func (h *Hub) closeDevClients(code int) {
	h.mu.Lock()
	clients := h.devClients
	h.devClients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.closeWithCode(code)
	}
}

// Shutdown closes every live connection with close code 1001 (going away),
// part of the graceful-shutdown sequence in spec.md §4.7.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessionSets := h.sessionClients
	h.sessionClients = make(map[string]map[*wsClient]struct{})
	devSet := h.devClients
	h.devClients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, set := range sessionSets {
		for c := range set {
			c.closeWithCode(websocket.CloseGoingAway)
		}
	}
	for c := range devSet {
		c.closeWithCode(websocket.CloseGoingAway)
	}
}
