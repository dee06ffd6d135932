// ABOUTME: TCP streaming sink broadcasting the capture stream
// ABOUTME: Per-client writer goroutines with slow-client shedding
package capture

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaptureKit/capturekit-go/pkg/audio"
	"github.com/CaptureKit/capturekit-go/pkg/protocol"
)

// NetworkStats counts streaming activity since Configure.
type NetworkStats struct {
	ClientsConnected int
	TotalClients     uint64
	PacketsSent      uint64
	PacketsDropped   uint64
	BytesSent        uint64
}

// NetworkSink streams captured audio to TCP clients. Every client first
// receives the stream header, then audio packets as they arrive. Each client
// has its own send queue and writer goroutine; a client that cannot keep up
// has packets dropped rather than stalling the stream, and a broken client
// is disconnected.
type NetworkSink struct {
	core sinkCore
	addr string

	mu       sync.Mutex
	listener net.Listener
	clients  map[uuid.UUID]*networkClient
	epoch    time.Time
	closed   bool
	stats    NetworkStats
}

type networkClient struct {
	id   uuid.UUID
	conn net.Conn
	send chan []byte
	done chan struct{}
}

const clientQueueDepth = 64

// NewNetworkSink creates a network sink listening on addr, e.g. ":9000".
// Port 0 picks a free port; Addr reports the bound address after Configure.
func NewNetworkSink(addr string) *NetworkSink {
	return &NetworkSink{core: newSinkCore(), addr: addr}
}

// ID returns the sink identity.
func (s *NetworkSink) ID() uuid.UUID { return s.core.ID() }

// Configure binds the listener and starts accepting clients.
func (s *NetworkSink) Configure(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigureFailed, err)
	}
	if !s.core.markConfigured(format) {
		return fmt.Errorf("%w: sink already configured", ErrConfigureFailed)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", ErrConnectionFailed, s.addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.clients = make(map[uuid.UUID]*networkClient)
	s.epoch = time.Now()
	s.mu.Unlock()

	log.Printf("network sink %s: listening on %s", s.core.ID(), listener.Addr())
	go s.acceptLoop(listener, format)
	return nil
}

// Addr returns the bound listener address, or nil before Configure.
func (s *NetworkSink) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Process encodes the buffer once and queues it to every connected client.
func (s *NetworkSink) Process(buf *audio.Buffer) error {
	if err := s.core.checkConfigured(); err != nil {
		return err
	}

	s.mu.Lock()
	epoch := s.epoch
	clients := make([]*networkClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	if len(clients) == 0 {
		return nil
	}
	packet := protocol.EncodePacket(buf, epoch)
	for _, c := range clients {
		select {
		case c.send <- packet:
			s.mu.Lock()
			s.stats.PacketsSent++
			s.mu.Unlock()
		default:
			s.mu.Lock()
			s.stats.PacketsDropped++
			s.mu.Unlock()
		}
	}
	return nil
}

// HandleError logs delivery failures.
func (s *NetworkSink) HandleError(err error) {
	log.Printf("network sink %s: %v", s.core.ID(), err)
}

// Finish sends the end-of-stream packet to every client, disconnects them
// and closes the listener.
func (s *NetworkSink) Finish() error {
	if !s.core.markFinished() {
		return nil
	}

	s.mu.Lock()
	s.closed = true
	listener := s.listener
	epoch := s.epoch
	clients := make([]*networkClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = map[uuid.UUID]*networkClient{}
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	end := protocol.EncodeEndPacket(epoch)
	for _, c := range clients {
		select {
		case c.send <- end:
		default:
		}
		close(c.send)
	}
	for _, c := range clients {
		<-c.done
	}
	return nil
}

// Stats returns a snapshot of streaming counters.
func (s *NetworkSink) Stats() NetworkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.ClientsConnected = len(s.clients)
	return stats
}

func (s *NetworkSink) acceptLoop(listener net.Listener, format audio.Format) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		s.addClient(conn, format)
	}
}

func (s *NetworkSink) addClient(conn net.Conn, format audio.Format) {
	client := &networkClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, clientQueueDepth),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[client.id] = client
	s.stats.TotalClients++
	s.mu.Unlock()

	log.Printf("network sink %s: client %s connected from %s", s.core.ID(), client.id, conn.RemoteAddr())
	go s.runClient(client, format)
}

// runClient writes the header then pumps queued packets until the client
// breaks or the sink finishes.
func (s *NetworkSink) runClient(c *networkClient, format audio.Format) {
	defer close(c.done)
	defer c.conn.Close()

	if _, err := c.conn.Write(protocol.EncodeHeader(format)); err != nil {
		log.Printf("network sink %s: client %s header write: %v", s.core.ID(), c.id, err)
		s.dropClient(c.id)
		return
	}

	for packet := range c.send {
		n, err := c.conn.Write(packet)
		if err != nil {
			log.Printf("network sink %s: client %s disconnected: %v", s.core.ID(), c.id, err)
			s.dropClient(c.id)
			return
		}
		s.mu.Lock()
		s.stats.BytesSent += uint64(n)
		s.mu.Unlock()
	}
}

func (s *NetworkSink) dropClient(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
}
