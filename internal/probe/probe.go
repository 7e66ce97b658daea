// Package probe answers whether the central database is reachable. The
// answer is advisory: the server may disappear right after a positive result,
// so every remote call still handles connection failures itself.
package probe

import (
	"context"
	"log/slog"
	"net"
	"time"
)

// DefaultTimeout bounds a single reachability check.
const DefaultTimeout = 2 * time.Second

// Checker is what the identifier generator and sync engine depend on.
type Checker interface {
	IsOnline(ctx context.Context) bool
}

// Probe dials a TCP address to test reachability.
type Probe struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
	logger  *slog.Logger
}

func New(addr string, timeout time.Duration, logger *slog.Logger) *Probe {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{addr: addr, timeout: timeout, logger: logger}
}

// IsOnline returns true when a TCP connection to the remote could be opened
// within the timeout. The connection is closed immediately.
func (p *Probe) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		p.logger.Debug("remote unreachable", slog.String("addr", p.addr), slog.Any("err", err))
		return false
	}
	conn.Close()

	return true
}

// Fixed is a Checker with a constant answer.
type Fixed bool

func (f Fixed) IsOnline(context.Context) bool { return bool(f) }
