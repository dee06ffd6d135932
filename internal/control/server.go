// ABOUTME: WebSocket control server for a capture session
// ABOUTME: Dispatches JSON commands and pushes state change notifications
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

// Server exposes a capture session over a WebSocket control API. Each
// connected client can drive the session lifecycle, manage outputs and poll
// statistics; session state changes are pushed to every client.
type Server struct {
	addr    string
	session *capture.Session

	upgrader   websocket.Upgrader
	httpServer *http.Server

	mu         sync.Mutex
	conns      map[uuid.UUID]*websocket.Conn
	sinkKinds  map[uuid.UUID]string
	observerID uuid.UUID
	isShutdown bool
}

// NewServer creates a control server for the session, listening on addr.
func NewServer(addr string, session *capture.Session) *Server {
	return &Server{
		addr:    addr,
		session: session,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Trusted local networks only.
				return true
			},
		},
		conns:     make(map[uuid.UUID]*websocket.Conn),
		sinkKinds: make(map[uuid.UUID]string),
	}
}

// Start begins serving the control API. Blocks until Shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	s.observerID = s.session.ObserveState(s.broadcastState)
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}
	log.Printf("Control server listening on %s", s.addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("control server failed: %w", err)
	}
	return nil
}

// Shutdown stops the control server and disconnects all clients.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.isShutdown = true
	s.session.RemoveObserver(s.observerID)
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Control server shutdown error: %v", err)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	id := uuid.New()
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
	log.Printf("Control client %s connected from %s", id, r.RemoteAddr)

	go s.handleConnection(id, conn)
}

func (s *Server) handleConnection(id uuid.UUID, conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		conn.Close()
		log.Printf("Control client %s disconnected", id)
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		resp := s.dispatch(cmd)
		s.mu.Lock()
		err := conn.WriteJSON(resp)
		s.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// dispatch executes one command against the session.
func (s *Server) dispatch(cmd Command) Response {
	switch cmd.Type {
	case CmdStart:
		return s.result(cmd.Type, s.session.Start())
	case CmdStop:
		return s.result(cmd.Type, s.session.Stop())
	case CmdPause:
		return s.result(cmd.Type, s.session.Pause())
	case CmdResume:
		return s.result(cmd.Type, s.session.Resume())
	case CmdStats:
		return s.stats(cmd.Type)
	case CmdAddOutput:
		return s.addOutput(cmd)
	case CmdRemoveOutput:
		return s.removeOutput(cmd)
	case CmdListOutputs:
		return s.listOutputs(cmd.Type)
	default:
		return Response{Type: cmd.Type, Error: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}

func (s *Server) result(msgType string, err error) Response {
	if err != nil {
		return Response{Type: msgType, Error: err.Error()}
	}
	return Response{Type: msgType, OK: true}
}

func (s *Server) stats(msgType string) Response {
	stats := s.session.Stats()
	return Response{Type: msgType, OK: true, Payload: StatsPayload{
		State:           stats.State.String(),
		Format:          stats.Format.String(),
		SinkCount:       stats.SinkCount,
		BuffersCaptured: stats.BuffersCaptured,
		FramesCaptured:  stats.FramesCaptured,
		QueueLen:        stats.Queue.Len,
		QueuePeak:       stats.Queue.PeakLen,
		QueueDropped:    stats.Queue.Dropped,
		QueueDropRate:   stats.Queue.DropRate(),
	}}
}

func (s *Server) addOutput(cmd Command) Response {
	var payload AddOutputPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Response{Type: cmd.Type, Error: fmt.Sprintf("bad payload: %v", err)}
	}

	var sink capture.Sink
	switch payload.Kind {
	case "file":
		if payload.Path == "" {
			return Response{Type: cmd.Type, Error: "file output requires a path"}
		}
		sink = capture.NewFileSink(payload.Path)
	case "network":
		addr := payload.Addr
		if addr == "" {
			addr = ":0"
		}
		sink = capture.NewNetworkSink(addr)
	case "playback":
		sink = capture.NewPlaybackSink(nil)
	default:
		return Response{Type: cmd.Type, Error: fmt.Sprintf("unknown output kind: %s", payload.Kind)}
	}

	if err := s.session.AddOutput(sink); err != nil {
		return Response{Type: cmd.Type, Error: err.Error()}
	}
	s.mu.Lock()
	s.sinkKinds[sink.ID()] = payload.Kind
	s.mu.Unlock()
	return Response{Type: cmd.Type, OK: true, Payload: OutputInfo{ID: sink.ID().String(), Kind: payload.Kind}}
}

func (s *Server) removeOutput(cmd Command) Response {
	var payload RemoveOutputPayload
	if err := json.Unmarshal(cmd.Payload, &payload); err != nil {
		return Response{Type: cmd.Type, Error: fmt.Sprintf("bad payload: %v", err)}
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return Response{Type: cmd.Type, Error: fmt.Sprintf("bad sink id: %v", err)}
	}
	if err := s.session.RemoveOutput(id); err != nil {
		return Response{Type: cmd.Type, Error: err.Error()}
	}
	s.mu.Lock()
	delete(s.sinkKinds, id)
	s.mu.Unlock()
	return Response{Type: cmd.Type, OK: true}
}

func (s *Server) listOutputs(msgType string) Response {
	s.mu.Lock()
	kinds := make(map[uuid.UUID]string, len(s.sinkKinds))
	for id, kind := range s.sinkKinds {
		kinds[id] = kind
	}
	s.mu.Unlock()

	outputs := []OutputInfo{}
	for _, sink := range s.session.Outputs() {
		kind := kinds[sink.ID()]
		if kind == "" {
			kind = "unknown"
		}
		outputs = append(outputs, OutputInfo{ID: sink.ID().String(), Kind: kind})
	}
	return Response{Type: msgType, OK: true, Payload: outputs}
}

// broadcastState pushes a state change to every connected client.
func (s *Server) broadcastState(old, new capture.State) {
	msg := Response{Type: "session/state", OK: true, Payload: StatePayload{
		Old: old.String(),
		New: new.String(),
	}}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.conns {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Control client %s state push failed: %v", id, err)
		}
	}
}
