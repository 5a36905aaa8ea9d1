package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/ccufind/internal/logging"
	"github.com/muurk/ccufind/internal/netif"
	"github.com/muurk/ccufind/internal/protocol"
)

// SessionReport summarizes one finished session
type SessionReport struct {
	Interface netif.Interface
	Devices   int   // Replies captured, before dedup
	Err       error // Fault that ended the session, nil on success
}

// Service discovers CCUs across all eligible local interfaces
type Service struct {
	cfg        Config
	interfaces netif.Provider
	opener     Opener
	probes     *protocol.ProbeBuilder
	logger     *zap.Logger
	progress   func(SessionReport)
}

// Option customizes a Service
type Option func(*Service)

// WithInterfaceProvider replaces the host interface enumeration
func WithInterfaceProvider(p netif.Provider) Option {
	return func(s *Service) { s.interfaces = p }
}

// WithOpener replaces the multicast socket setup
func WithOpener(o Opener) Option {
	return func(s *Service) { s.opener = o }
}

// WithRandomSource sets the entropy for probe sender ids
func WithRandomSource(src protocol.RandomSource) Option {
	return func(s *Service) { s.probes = protocol.NewProbeBuilder(src) }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithProgress registers a callback invoked as each session finishes.
// Sessions run concurrently, so fn may be called from several goroutines.
func WithProgress(fn func(SessionReport)) Option {
	return func(s *Service) { s.progress = fn }
}

// NewService creates a discovery service. Start from DefaultConfig();
// zero Timeout, TTL and Group fall back to their defaults.
func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg.withDefaults(),
		interfaces: netif.NewSystemProvider(),
		probes:     protocol.NewProbeBuilder(nil),
		logger:     logging.Named("discovery"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.opener == nil {
		s.opener = NewMulticastOpener(s.cfg)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	return s.cfg
}

// EligibleInterfaces returns the interfaces a search would run on, in
// enumeration order.
func (s *Service) EligibleInterfaces() ([]netif.Interface, error) {
	ifaces, err := s.interfaces.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMulticastInterface, err)
	}

	eligible := netif.FilterNames(netif.FilterEligible(ifaces), s.cfg.Interfaces)
	if len(eligible) == 0 {
		return nil, ErrNoMulticastInterface
	}
	return eligible, nil
}

// SearchAllInterfaces runs one session per eligible interface and merges
// the replies, keeping the first device seen for each host in interface
// enumeration order.
//
// localIP is the address group memberships are bound to; empty uses each
// interface's own IPv4 address.
//
// The search fails with ErrNoMulticastInterface when there is nothing to
// search on. Session faults only shorten the result. The returned slice is
// never nil on success.
func (s *Service) SearchAllInterfaces(ctx context.Context, localIP string) ([]Device, error) {
	eligible, err := s.EligibleInterfaces()
	if err != nil {
		s.logger.Error("No usable network interface", zap.Error(err))
		return nil, err
	}
	return s.SearchInterfaces(ctx, localIP, eligible)
}

// SearchInterfaces is SearchAllInterfaces over an interface list the caller
// already enumerated, so callers that show the list up front search exactly
// what they showed. Ineligible entries are dropped; an empty result after
// that fails with ErrNoMulticastInterface.
func (s *Service) SearchInterfaces(ctx context.Context, localIP string, ifaces []netif.Interface) ([]Device, error) {
	eligible := netif.FilterEligible(ifaces)
	if len(eligible) == 0 {
		return nil, ErrNoMulticastInterface
	}

	s.logger.Info("Searching for CCUs",
		zap.Int("interfaces", len(eligible)),
		zap.String("group", s.cfg.GroupString()),
	)

	// One slot per interface; each goroutine writes only its own
	results := make([][]Device, len(eligible))

	var g errgroup.Group
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}

	for i, iface := range eligible {
		g.Go(func() error {
			devices, err := s.NewSession(s.paramsFor(iface, localIP)).Run(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logging.LogSessionFault(s.logger, iface.Name, err)
				}
				devices = nil
			}
			results[i] = devices

			if s.progress != nil {
				s.progress(SessionReport{Interface: iface, Devices: len(devices), Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := mergeDevices(results)
	s.logger.Info("Search finished", zap.Int("devices", len(merged)))
	return merged, nil
}

// Search runs a single session. ifIndex pins egress to that interface
// (0 leaves it to the OS); an empty localIP uses that interface's address.
func (s *Service) Search(ctx context.Context, localIP string, ifIndex int) ([]Device, error) {
	params := SessionParams{
		Interface:      fmt.Sprintf("index %d", ifIndex),
		LocalIP:        localIP,
		InterfaceIndex: ifIndex,
	}

	if ifIndex > 0 {
		if ifaces, err := s.interfaces.Interfaces(); err == nil {
			for _, iface := range ifaces {
				if iface.Index == ifIndex {
					params = s.paramsFor(iface, localIP)
					break
				}
			}
		}
	}

	return s.NewSession(params).Run(ctx)
}

// paramsFor builds the session parameters for iface
func (s *Service) paramsFor(iface netif.Interface, localIP string) SessionParams {
	if localIP == "" && iface.HasIPv4() {
		localIP = iface.IPv4.String()
	}
	return SessionParams{
		Interface:      iface.Name,
		LocalIP:        localIP,
		InterfaceIndex: iface.Index,
	}
}

// mergeDevices flattens per-interface results in order, dropping every
// device whose host was already seen.
func mergeDevices(perInterface [][]Device) []Device {
	seen := make(map[string]struct{})
	merged := make([]Device, 0)

	for _, devices := range perInterface {
		for _, d := range devices {
			if _, dup := seen[d.Host]; dup {
				continue
			}
			seen[d.Host] = struct{}{}
			merged = append(merged, d)
		}
	}

	return merged
}
