package discovery

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ccufind/internal/logging"
	"github.com/muurk/ccufind/internal/protocol"
)

// Session is one bounded probe/retry/receive cycle on a single interface.
// A Session is single-use: Run may be called once.
type Session struct {
	params SessionParams
	cfg    Config
	opener Opener
	probes *protocol.ProbeBuilder
	base   *zap.Logger // service logger, for the logging helpers
	logger *zap.Logger // base tagged with the interface name
}

// NewSession creates a session scoped to params using the service's
// configuration, opener and probe builder.
func (s *Service) NewSession(params SessionParams) *Session {
	return &Session{
		params: params,
		cfg:    s.cfg,
		opener: s.opener,
		probes: s.probes,
		base:   s.logger,
		logger: s.logger.With(zap.String("interface", params.Interface)),
	}
}

// Run opens the socket, sends exactly RetryCount Identify probes with one
// receive attempt after each, and closes the socket on every exit path.
//
// Receive timeouts and receive errors are logged and skipped. A setup or
// send failure ends the session with a *SessionError and no devices.
// If ctx is cancelled the pending receive is interrupted and ctx.Err() is
// returned together with the devices captured so far.
//
// The result may hold the same host more than once.
func (s *Session) Run(ctx context.Context) ([]Device, error) {
	conn, err := s.opener.Open(ctx, s.params)
	if err != nil {
		return nil, s.fault(OpSetup, err)
	}
	defer conn.Close()

	// Unblock a pending receive as soon as the caller gives up
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	s.logger.Debug("Session started",
		zap.String("local_ip", s.params.LocalIP),
		zap.Int("if_index", s.params.InterfaceIndex),
		zap.Int("retries", s.cfg.RetryCount),
		zap.Duration("timeout", s.cfg.Timeout),
	)

	buf := make([]byte, ReceiveBufferSize)
	devices := make([]Device, 0)

	for attempt := 1; attempt <= s.cfg.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return devices, err
		}

		probe, err := s.probes.BuildIdentify()
		if err != nil {
			return nil, s.fault(OpProbe, err)
		}

		if err := s.send(conn, probe, attempt); err != nil {
			if ctx.Err() != nil {
				return devices, ctx.Err()
			}
			return nil, s.fault(OpSend, err)
		}

		if device, ok := s.receive(ctx, conn, buf); ok {
			devices = append(devices, device)
		}

		// Every round, the last included, ends with the resend delay
		if err := sleepContext(ctx, s.cfg.ResendDelay); err != nil {
			return devices, err
		}
	}

	s.logger.Debug("Session finished", zap.Int("replies", len(devices)))
	return devices, nil
}

// send writes one probe to the group
func (s *Session) send(conn PacketConn, probe []byte, attempt int) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		return err
	}
	if _, err := conn.WriteTo(probe, s.cfg.Group); err != nil {
		return err
	}
	logging.LogProbe(s.base, s.params.Interface, s.cfg.Group.String(), attempt, probe)
	return nil
}

// receive waits up to Timeout for one datagram. Errors never escape.
func (s *Session) receive(ctx context.Context, conn PacketConn, buf []byte) (Device, bool) {
	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.Timeout)); err != nil {
		s.logger.Warn("Failed to set receive deadline", zap.Error(err))
		return Device{}, false
	}
	// The cancel hook may have fired before the deadline was reset
	if ctx.Err() != nil {
		return Device{}, false
	}

	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		if IsTimeout(err) {
			s.logger.Debug("No reply before timeout")
		} else {
			s.logger.Warn("Receive failed", zap.Error(err))
		}
		return Device{}, false
	}
	if n == 0 {
		return Device{}, false
	}

	host := hostOf(addr)
	logging.LogDatagram(s.base, s.params.Interface, host, buf[:n])

	return Device{
		Host:         host,
		Payload:      protocol.DecodeText(buf[:n]),
		Interface:    s.params.Interface,
		DiscoveredAt: time.Now(),
	}, true
}

// fault wraps err as a SessionError for this session
func (s *Session) fault(op string, err error) error {
	return &SessionError{
		Op:        op,
		Interface: s.params.Interface,
		LocalIP:   s.params.LocalIP,
		Err:       err,
	}
}

// hostOf extracts the IP part of a sender address
func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		if a == nil {
			return ""
		}
		return a.IP.String()
	case nil:
		return ""
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
