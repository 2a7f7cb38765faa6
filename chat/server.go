package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"

	"github.com/iwanhae/chanline/linewire"
)

// ChatServer owns the channel registry and every live connection. It runs
// one handler goroutine per connection and can force all of them to stop.
type ChatServer struct {
	Registry *Registry
	Store    MessageStore

	cfg     Config
	limiter *connLimiter

	stopping atomic.Bool

	mu        sync.Mutex
	clients   map[*Client]struct{}
	listeners map[io.Closer]struct{}
	handlers  sync.WaitGroup
}

func NewChatServer(cfg Config, store MessageStore) *ChatServer {
	cfg = cfg.Sanitize()
	if store == nil {
		store = NewNullMessageStore()
	}
	return &ChatServer{
		Registry:  NewRegistry(),
		Store:     store,
		cfg:       cfg,
		limiter:   newConnLimiter(cfg.MaxPerIP),
		clients:   make(map[*Client]struct{}),
		listeners: make(map[io.Closer]struct{}),
	}
}

// Stopping reports whether Shutdown has been called.
func (cs *ChatServer) Stopping() bool {
	return cs.stopping.Load()
}

// ConnectionCount returns the number of live connections.
func (cs *ChatServer) ConnectionCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.clients)
}

// Serve accepts TCP connections on l until Shutdown closes it. It returns
// nil after a shutdown and the accept error otherwise.
func (cs *ChatServer) Serve(l net.Listener) error {
	if !cs.trackListener(l) {
		_ = l.Close()
		return nil
	}
	log.Printf("listening for line clients on %s", l.Addr())

	var backoff time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if cs.Stopping() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				log.Printf("accept error: %v; retrying in %v", err, backoff)
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		client, ok := cs.admit(conn, conn.RemoteAddr())
		if !ok {
			continue
		}
		go cs.run(client)
	}
}

// ServeSSH accepts SSH sessions on l and speaks the line protocol on each
// session's stream.
func (cs *ChatServer) ServeSSH(l net.Listener) error {
	srv := &ssh.Server{
		Handler:     cs.handleSession,
		IdleTimeout: cs.cfg.IOTimeout,
	}
	if cs.cfg.HostKeyPath != "" {
		if err := srv.SetOption(ssh.HostKeyFile(cs.cfg.HostKeyPath)); err != nil {
			_ = l.Close()
			return fmt.Errorf("load host key: %w", err)
		}
	}
	// The raw listener is tracked as well: closing only srv would leave
	// Accept blocked if Shutdown runs before Serve registers l.
	if !cs.trackListener(srv) || !cs.trackListener(l) {
		_ = l.Close()
		return nil
	}
	log.Printf("listening for ssh clients on %s", l.Addr())

	if err := srv.Serve(l); err != nil && !errors.Is(err, ssh.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		if cs.Stopping() {
			return nil
		}
		return fmt.Errorf("ssh serve: %w", err)
	}
	return nil
}

func (cs *ChatServer) handleSession(s ssh.Session) {
	client, ok := cs.admit(s, s.RemoteAddr())
	if !ok {
		return
	}
	// gliderlabs/ssh already runs each session on its own goroutine.
	cs.run(client)
}

// admit applies the per-IP cap and registers a new connection. The stop flag
// is checked under the same lock Shutdown takes, so no connection can slip
// in after Shutdown has collected the live set.
func (cs *ChatServer) admit(rw io.ReadWriteCloser, addr net.Addr) (*Client, bool) {
	conn := linewire.NewConn(rw)
	ip := hostOf(addr)
	remote := ip
	if addr != nil {
		remote = addr.String()
	}

	if !cs.limiter.acquire(ip) {
		log.Printf("rejecting %s: connection limit of %d reached", remote, cs.cfg.MaxPerIP)
		_ = conn.WriteLine(errorLine(reasonTooManyConns), time.Second)
		_ = conn.Close()
		return nil, false
	}

	client := newClient(cs, conn, uuid.NewString()[:8], ip, remote)

	cs.mu.Lock()
	if cs.Stopping() {
		cs.mu.Unlock()
		cs.limiter.release(ip)
		_ = conn.Close()
		return nil, false
	}
	cs.clients[client] = struct{}{}
	cs.handlers.Add(1)
	count := len(cs.clients)
	cs.mu.Unlock()

	log.Printf("[%s] %s connected. Total connections: %d", client.id, remote, count)
	return client, true
}

func (cs *ChatServer) run(c *Client) {
	defer cs.handlers.Done()
	defer cs.release(c)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] panic in connection handler: %v", c.id, r)
		}
	}()

	err := c.Serve()
	c.logExit(err)
}

func (cs *ChatServer) release(c *Client) {
	_ = c.Close()
	cs.limiter.release(c.ip)
	cs.mu.Lock()
	delete(cs.clients, c)
	cs.mu.Unlock()
}

func (cs *ChatServer) trackListener(l io.Closer) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.Stopping() {
		return false
	}
	cs.listeners[l] = struct{}{}
	return true
}

// Shutdown sets the stop flag, closes every listener and live connection so
// blocked reads and writes fail, and waits for all handlers to return. If
// ctx has no deadline, the configured ShutdownTimeout applies.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cs.cfg.ShutdownTimeout)
		defer cancel()
	}

	cs.stopping.Store(true)

	cs.mu.Lock()
	listeners := make([]io.Closer, 0, len(cs.listeners))
	for l := range cs.listeners {
		listeners = append(listeners, l)
	}
	clients := make([]*Client, 0, len(cs.clients))
	for c := range cs.clients {
		clients = append(clients, c)
	}
	cs.mu.Unlock()

	for _, l := range listeners {
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("error closing listener: %v", err)
		}
	}
	for _, c := range clients {
		_ = c.Close()
	}
	log.Printf("closed %d listener(s) and %d connection(s)", len(listeners), len(clients))

	done := make(chan struct{})
	go func() {
		cs.handlers.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Printf("all connection handlers finished; %d channel(s) in registry", cs.Registry.Len())
		return nil
	case <-ctx.Done():
		log.Println("shutdown timeout reached, some handlers may still be running")
		return ctx.Err()
	}
}

// archive hands a posted message to the store. Failures are logged only; the
// client's reply does not depend on the archive.
func (cs *ChatServer) archive(channel string, msg Message, ip string) {
	cs.logMessage(channel, msg, ip)
	if err := cs.Store.AppendMessage(channel, msg); err != nil {
		log.Printf("failed to archive message in %s: %v", channel, err)
	}
}

func (cs *ChatServer) logMessage(channel string, msg Message, ip string) {
	sanitized := strings.ReplaceAll(msg.Text, "\n", "\\n")
	if len(sanitized) > 20 {
		sanitized = sanitized[:20]
	}
	if ip != "" {
		log.Printf("%s #%s [%s@%s] %s", msg.Time.Format(time.RFC3339), channel, msg.Nick, ip, sanitized)
		return
	}
	log.Printf("%s #%s [%s] %s", msg.Time.Format(time.RFC3339), channel, msg.Nick, sanitized)
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
