// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"viz/internal/log"
)

// controlMessage is the inbound JSON frame viewer clients send on the socket.
type controlMessage struct {
	Type  string  `json:"type"`            // "togglePlay", "toggleListen" or "set"
	Name  string  `json:"name,omitempty"`  // Parameter name for "set"
	Value float64 `json:"value,omitempty"` // Parameter value for "set"
}

// WebSocketServer broadcasts scene frames and metrics to connected viewer
// clients and routes their control messages to the Controller. Outbound
// data goes through a buffered channel; frames are dropped when the channel
// is full rather than stalling the animation loop.
type WebSocketServer struct {
	addr       string
	upgrader   websocket.Upgrader
	clients    map[*websocket.Conn]bool
	clientsMu  sync.Mutex
	broadcast  chan []byte
	server     *http.Server
	controller Controller
}

// NewWebSocketServer creates the server, mounts the viewer handler at the
// root path and the socket at /ws, and starts listening.
func NewWebSocketServer(addr string, viewer http.Handler, controller Controller) *WebSocketServer {
	s := &WebSocketServer{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tool, any origin may connect.
			},
		},
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 256),
		controller: controller,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	if viewer != nil {
		mux.Handle("/", viewer)
	}
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Infof("Transport: WebSocket server listening on %s", addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Transport: Server error: %v", err)
		}
	}()
	go s.handleBroadcasts()

	return s
}

// handleWebSocket upgrades the connection, registers the client and reads
// control messages until the client goes away.
func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Transport: Upgrade error: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Infof("Transport: Client connected, total: %d", total)

	go s.readControl(conn)
}

// readControl consumes inbound messages for one client and unregisters it
// on the first read error.
func (s *WebSocketServer) readControl(conn *websocket.Conn) {
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		total := len(s.clients)
		s.clientsMu.Unlock()
		conn.Close()
		log.Infof("Transport: Client disconnected, total: %d", total)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warnf("Transport: Malformed control message: %v", err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *WebSocketServer) dispatch(msg controlMessage) {
	if s.controller == nil {
		return
	}
	switch msg.Type {
	case "togglePlay":
		playing := s.controller.TogglePlayback()
		log.Debugf("Transport: Playback toggled, playing=%v", playing)
	case "toggleListen":
		listening, err := s.controller.ToggleListening()
		if err != nil {
			// Capture failures are reported and listening stays off; the
			// animation keeps running unmodulated.
			log.Errorf("Transport: Audio capture unavailable: %v", err)
		}
		log.Debugf("Transport: Listening toggled, listening=%v", listening)
	case "set":
		if err := s.controller.SetParam(msg.Name, msg.Value); err != nil {
			log.Warnf("Transport: Rejected parameter update %q: %v", msg.Name, err)
		}
	default:
		log.Warnf("Transport: Unknown control message type %q", msg.Type)
	}
}

// handleBroadcasts fans queued messages out to every connected client.
func (s *WebSocketServer) handleBroadcasts() {
	for payload := range s.broadcast {
		s.clientsMu.Lock()
		for client := range s.clients {
			if err := client.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warnf("Transport: Dropping client: %v", err)
				client.Close()
				delete(s.clients, client)
			}
		}
		s.clientsMu.Unlock()
	}
}

// Send queues data for broadcast to all connected clients. Marshaling
// happens here, on the caller's goroutine, because the animation loop
// reuses its frame buffers between ticks. When the queue is full the
// frame is dropped; the next tick will carry fresher state anyway.
func (s *WebSocketServer) Send(data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	select {
	case s.broadcast <- payload:
	default:
	}
	return nil
}

// Close shuts down the server and all client connections.
func (s *WebSocketServer) Close() error {
	log.Infof("Transport: Closing WebSocket server")

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]bool)
	s.clientsMu.Unlock()

	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

var _ Transport = (*WebSocketServer)(nil)
