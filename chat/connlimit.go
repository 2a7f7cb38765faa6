package chat

import (
	"net"
	"sync"
)

// connLimiter tracks live connections per remote IP.
type connLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

func newConnLimiter(max int) *connLimiter {
	return &connLimiter{
		max:    max,
		counts: make(map[string]int),
	}
}

// acquire records a connection from ip and reports whether it is allowed.
func (l *connLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.max > 0 && l.counts[ip] >= l.max {
		return false
	}
	l.counts[ip]++
	return true
}

func (l *connLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[ip]--
	if l.counts[ip] <= 0 {
		delete(l.counts, ip)
	}
}

// hostOf strips the port from a remote address.
func hostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	remote := addr.String()
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
