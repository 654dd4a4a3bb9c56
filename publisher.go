package pitch_compliance

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

const (
	publisherQueue      = 64
	publisherWriteWait  = 5 * time.Second
	publisherPingPeriod = 30 * time.Second
)

// Publisher streams records as JSON to websocket clients. Slow clients lose records
// rather than stalling the control loop.
type Publisher struct {
	logger   logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
	dropped int
}

type wsClient struct {
	conn   *websocket.Conn
	sendCh chan recordJSON
	done   chan struct{}
	once   sync.Once
}

// NewPublisher returns a publisher with no clients.
func NewPublisher(logger logging.Logger) *Publisher {
	return &Publisher{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the connection as a client.
func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	c := &wsClient{
		conn:   conn,
		sendCh: make(chan recordJSON, publisherQueue),
		done:   make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		conn.Close()
		return
	}
	p.clients[c] = struct{}{}
	n := len(p.clients)
	p.mu.Unlock()
	p.logger.Debugf("websocket client connected (%d total)", n)

	go p.writePump(c)
	go p.readPump(c)
}

// Serve listens on addr and serves the record stream at /records until the returned
// server is shut down.
func (p *Publisher) Serve(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/records", p)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Errorf("record stream server stopped: %v", err)
		}
	}()
	p.logger.Infof("streaming records on ws://%s/records", ln.Addr())
	return srv, nil
}

// Clients returns the number of connected clients.
func (p *Publisher) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// Dropped returns how many per-client sends were skipped because a queue was full.
func (p *Publisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Append queues r for every client. It never blocks.
func (p *Publisher) Append(r LogRecord) error {
	msg := r.toJSON()
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.clients {
		select {
		case c.sendCh <- msg:
		default:
			p.dropped++
		}
	}
	return nil
}

// Close disconnects every client. Later connections are refused.
func (p *Publisher) Close() error {
	p.mu.Lock()
	clients := p.clients
	p.clients = make(map[*wsClient]struct{})
	p.closed = true
	p.mu.Unlock()

	for c := range clients {
		c.close()
	}
	return nil
}

func (p *Publisher) remove(c *wsClient) {
	p.mu.Lock()
	delete(p.clients, c)
	p.mu.Unlock()
	c.close()
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client messages; it exists to notice disconnects and answer pings.
func (p *Publisher) readPump(c *wsClient) {
	defer p.remove(c)
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.logger.Debugf("websocket read error: %v", err)
			}
			return
		}
	}
}

func (p *Publisher) writePump(c *wsClient) {
	ticker := time.NewTicker(publisherPingPeriod)
	defer func() {
		ticker.Stop()
		p.remove(c)
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(publisherWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				p.logger.Debugf("websocket write error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(publisherWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
