package discovery

import (
	"context"
	"errors"
	"net"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/ccufind/internal/netif"
)

func newSearchService(cfg Config, ifaces netif.Provider, op Opener, opts ...Option) *Service {
	base := []Option{
		WithInterfaceProvider(ifaces),
		WithOpener(op),
		WithRandomSource(fixedSource(0)),
		WithLogger(zap.NewNop()),
	}
	return NewService(cfg, append(base, opts...)...)
}

func TestSearchAllInterfaces_NoEligibleInterface(t *testing.T) {
	tests := []struct {
		name   string
		ifaces netif.Static
	}{
		{
			name:   "no interfaces",
			ifaces: netif.Static{},
		},
		{
			name: "all down",
			ifaces: netif.Static{
				{Name: "eth0", Index: 1, Multicast: true, IPv4: net.ParseIP("10.0.0.2")},
			},
		},
		{
			name: "no multicast",
			ifaces: netif.Static{
				{Name: "eth0", Index: 1, Up: true, IPv4: net.ParseIP("10.0.0.2")},
			},
		},
		{
			name: "no IPv4",
			ifaces: netif.Static{
				{Name: "eth0", Index: 1, Up: true, Multicast: true, IPv4: net.ParseIP("fe80::1")},
				{Name: "eth1", Index: 2, Up: true, Multicast: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := newFakeOpener()
			svc := newSearchService(testConfig(), tt.ifaces, op)

			devices, err := svc.SearchAllInterfaces(context.Background(), "")
			if !errors.Is(err, ErrNoMulticastInterface) {
				t.Errorf("SearchAllInterfaces() error = %v, want ErrNoMulticastInterface", err)
			}
			if devices != nil {
				t.Errorf("SearchAllInterfaces() devices = %v, want nil", devices)
			}
			if op.openCount() != 0 {
				t.Errorf("opened %d sockets, want 0", op.openCount())
			}
		})
	}
}

func TestSearchAllInterfaces_EnumerationFailure(t *testing.T) {
	provider := netif.ProviderFunc(func() ([]netif.Interface, error) {
		return nil, errors.New("route ip+net: netlinkrib: permission denied")
	})
	svc := newSearchService(testConfig(), provider, newFakeOpener())

	_, err := svc.SearchAllInterfaces(context.Background(), "")
	if !errors.Is(err, ErrNoMulticastInterface) {
		t.Errorf("SearchAllInterfaces() error = %v, want ErrNoMulticastInterface", err)
	}
}

func TestSearchAllInterfaces_NoReplies(t *testing.T) {
	op := newFakeOpener()
	ifaces := netif.Static{iface("eth0", 1, "10.0.0.2")}
	svc := newSearchService(testConfig(), ifaces, op)

	devices, err := svc.SearchAllInterfaces(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("SearchAllInterfaces() = %#v, want empty non-nil list", devices)
	}
	if got := op.conn(1).sendCount(); got != DefaultRetryCount {
		t.Errorf("sends = %d, want %d", got, DefaultRetryCount)
	}
}

func TestSearchAllInterfaces_DedupAcrossInterfaces(t *testing.T) {
	op := newFakeOpener()
	op.conn(1).replies = []fakeReply{{from: "10.0.0.5", data: "hello"}}
	op.conn(2).replies = []fakeReply{{from: "10.0.0.5", data: "dup"}}

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	svc := newSearchService(testConfig(), ifaces, op)

	devices, err := svc.SearchAllInterfaces(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("SearchAllInterfaces() returned %d devices, want 1", len(devices))
	}
	if devices[0].Host != "10.0.0.5" || devices[0].Payload != "hello" {
		t.Errorf("device = %s/%q, want 10.0.0.5/%q", devices[0].Host, devices[0].Payload, "hello")
	}
	if devices[0].Interface != "eth0" {
		t.Errorf("device interface = %q, want eth0", devices[0].Interface)
	}
}

func TestSearchAllInterfaces_MergeOrder(t *testing.T) {
	op := newFakeOpener()
	op.conn(1).replies = []fakeReply{
		{from: "10.0.0.20", data: "b"},
		{from: "10.0.0.10", data: "a"},
	}
	op.conn(2).replies = []fakeReply{
		{from: "10.0.0.10", data: "a2"},
		{from: "10.0.0.30", data: "c"},
	}

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	svc := newSearchService(testConfig(), ifaces, op)

	devices, err := svc.SearchAllInterfaces(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}

	var hosts []string
	for _, d := range devices {
		hosts = append(hosts, d.Host)
	}
	want := []string{"10.0.0.20", "10.0.0.10", "10.0.0.30"}
	if !reflect.DeepEqual(hosts, want) {
		t.Errorf("hosts = %v, want %v", hosts, want)
	}
}

func TestSearchAllInterfaces_SessionFaultsAreIsolated(t *testing.T) {
	tests := []struct {
		name  string
		setup func(op *fakeOpener)
	}{
		{
			name:  "bind failure",
			setup: func(op *fakeOpener) { op.errs[1] = errBind },
		},
		{
			name:  "send failure",
			setup: func(op *fakeOpener) { op.conn(1).sendErr = errors.New("no route to host") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := newFakeOpener()
			op.conn(1).replies = []fakeReply{{from: "10.0.0.99", data: "lost"}}
			op.conn(2).replies = []fakeReply{{from: "10.0.0.6", data: "ccu"}}
			tt.setup(op)

			ifaces := netif.Static{
				iface("eth0", 1, "10.0.0.2"),
				iface("eth1", 2, "10.0.0.3"),
			}
			svc := newSearchService(testConfig(), ifaces, op)

			devices, err := svc.SearchAllInterfaces(context.Background(), "")
			if err != nil {
				t.Fatalf("SearchAllInterfaces() error = %v, want nil", err)
			}
			if len(devices) != 1 || devices[0].Host != "10.0.0.6" {
				t.Errorf("SearchAllInterfaces() = %+v, want only 10.0.0.6", devices)
			}
		})
	}
}

func TestSearchAllInterfaces_AllSessionsFail(t *testing.T) {
	op := newFakeOpener()
	op.errs[1] = errBind
	op.errs[2] = errBind

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	svc := newSearchService(testConfig(), ifaces, op)

	devices, err := svc.SearchAllInterfaces(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v, want nil", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("SearchAllInterfaces() = %#v, want empty non-nil list", devices)
	}
}

func TestSearchAllInterfaces_SkipsIneligible(t *testing.T) {
	op := newFakeOpener()
	ifaces := netif.Static{
		{Name: "lo", Index: 1, Up: true, Loopback: true, IPv4: net.ParseIP("127.0.0.1")},
		iface("eth0", 2, "10.0.0.2"),
		{Name: "wlan0", Index: 3, Multicast: true, IPv4: net.ParseIP("10.0.1.2")},
	}
	svc := newSearchService(testConfig(), ifaces, op)

	if _, err := svc.SearchAllInterfaces(context.Background(), ""); err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if op.openCount() != 1 {
		t.Errorf("opened %d sockets, want 1", op.openCount())
	}
	if _, ok := op.paramsFor(2); !ok {
		t.Error("no session on eth0")
	}
}

func TestSearchAllInterfaces_NameAllowlist(t *testing.T) {
	op := newFakeOpener()
	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	cfg := testConfig()
	cfg.Interfaces = []string{"eth1"}
	svc := newSearchService(cfg, ifaces, op)

	if _, err := svc.SearchAllInterfaces(context.Background(), ""); err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if _, ok := op.paramsFor(1); ok {
		t.Error("session opened on eth0, which is not allowed")
	}
	if _, ok := op.paramsFor(2); !ok {
		t.Error("no session on eth1")
	}

	cfg.Interfaces = []string{"wlan9"}
	svc = newSearchService(cfg, ifaces, newFakeOpener())
	if _, err := svc.SearchAllInterfaces(context.Background(), ""); !errors.Is(err, ErrNoMulticastInterface) {
		t.Errorf("SearchAllInterfaces() error = %v, want ErrNoMulticastInterface", err)
	}
}

func TestSearchAllInterfaces_LocalIP(t *testing.T) {
	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "192.168.7.4"),
	}

	t.Run("empty uses each interface address", func(t *testing.T) {
		op := newFakeOpener()
		svc := newSearchService(testConfig(), ifaces, op)
		if _, err := svc.SearchAllInterfaces(context.Background(), ""); err != nil {
			t.Fatalf("SearchAllInterfaces() error = %v", err)
		}

		want := map[int]SessionParams{
			1: {Interface: "eth0", LocalIP: "10.0.0.2", InterfaceIndex: 1},
			2: {Interface: "eth1", LocalIP: "192.168.7.4", InterfaceIndex: 2},
		}
		for idx, w := range want {
			got, ok := op.paramsFor(idx)
			if !ok {
				t.Errorf("no session on index %d", idx)
				continue
			}
			if got != w {
				t.Errorf("params for index %d = %+v, want %+v", idx, got, w)
			}
		}
	})

	t.Run("explicit address is passed to every session", func(t *testing.T) {
		op := newFakeOpener()
		svc := newSearchService(testConfig(), ifaces, op)
		if _, err := svc.SearchAllInterfaces(context.Background(), "10.0.0.2"); err != nil {
			t.Fatalf("SearchAllInterfaces() error = %v", err)
		}
		for _, idx := range []int{1, 2} {
			got, _ := op.paramsFor(idx)
			if got.LocalIP != "10.0.0.2" {
				t.Errorf("LocalIP for index %d = %q, want %q", idx, got.LocalIP, "10.0.0.2")
			}
		}
	})
}

func TestSearchAllInterfaces_MaxParallel(t *testing.T) {
	var active, peak int32
	inner := newFakeOpener()
	op := OpenerFunc(func(ctx context.Context, p SessionParams) (PacketConn, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return inner.Open(ctx, p)
	})

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
		iface("eth2", 3, "10.0.0.4"),
	}
	cfg := testConfig()
	cfg.MaxParallel = 1
	svc := newSearchService(cfg, ifaces, op)

	if _, err := svc.SearchAllInterfaces(context.Background(), ""); err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if got := atomic.LoadInt32(&peak); got != 1 {
		t.Errorf("peak concurrent opens = %d, want 1", got)
	}
	if inner.openCount() != 3 {
		t.Errorf("opened %d sockets, want 3", inner.openCount())
	}
}

func TestSearchAllInterfaces_Progress(t *testing.T) {
	op := newFakeOpener()
	op.errs[2] = errBind
	op.conn(1).replies = []fakeReply{{from: "10.0.0.5", data: "hello"}}

	var mu sync.Mutex
	reports := make(map[string]SessionReport)
	progress := func(r SessionReport) {
		mu.Lock()
		defer mu.Unlock()
		reports[r.Interface.Name] = r
	}

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	svc := newSearchService(testConfig(), ifaces, op, WithProgress(progress))

	if _, err := svc.SearchAllInterfaces(context.Background(), ""); err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}

	if len(reports) != 2 {
		t.Fatalf("got %d progress reports, want 2", len(reports))
	}
	if r := reports["eth0"]; r.Devices != 1 || r.Err != nil {
		t.Errorf("eth0 report = %+v, want 1 device and no error", r)
	}
	if r := reports["eth1"]; r.Devices != 0 || !errors.Is(r.Err, errBind) {
		t.Errorf("eth1 report = %+v, want 0 devices and bind error", r)
	}
}

func TestSearchAllInterfaces_Cancelled(t *testing.T) {
	op := newFakeOpener()
	op.conn(1).block = true
	op.conn(2).block = true

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	cfg := testConfig()
	cfg.Timeout = 5 * time.Second
	svc := newSearchService(cfg, ifaces, op)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	devices, err := svc.SearchAllInterfaces(ctx, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("SearchAllInterfaces() error = %v, want context.DeadlineExceeded", err)
	}
	if devices != nil {
		t.Errorf("SearchAllInterfaces() devices = %v, want nil", devices)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("SearchAllInterfaces() took %v, want prompt return", elapsed)
	}
	for _, idx := range []int{1, 2} {
		if !op.conn(idx).isClosed() {
			t.Errorf("socket %d not closed", idx)
		}
	}
}

func TestSearch_SingleInterface(t *testing.T) {
	op := newFakeOpener()
	op.conn(2).replies = []fakeReply{{from: "10.0.0.5", data: "hello"}}

	ifaces := netif.Static{
		iface("eth0", 1, "10.0.0.2"),
		iface("eth1", 2, "10.0.0.3"),
	}
	svc := newSearchService(testConfig(), ifaces, op)

	devices, err := svc.Search(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(devices) != 1 || devices[0].Interface != "eth1" {
		t.Errorf("Search() = %+v, want one device via eth1", devices)
	}
	p, ok := op.paramsFor(2)
	if !ok || p.LocalIP != "10.0.0.3" {
		t.Errorf("params = %+v, want LocalIP 10.0.0.3", p)
	}
	if op.openCount() != 1 {
		t.Errorf("opened %d sockets, want 1", op.openCount())
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(Config{RetryCount: -3, ResendDelay: -time.Second, MaxParallel: -1})
	cfg := svc.Config()

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.TTL != DefaultTTL {
		t.Errorf("TTL = %d, want %d", cfg.TTL, DefaultTTL)
	}
	if cfg.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", cfg.RetryCount)
	}
	if cfg.ResendDelay != 0 {
		t.Errorf("ResendDelay = %v, want 0", cfg.ResendDelay)
	}
	if cfg.MaxParallel != 0 {
		t.Errorf("MaxParallel = %d, want 0", cfg.MaxParallel)
	}
	if got := cfg.GroupString(); got != "224.0.0.1:43439" {
		t.Errorf("GroupString() = %q, want %q", got, "224.0.0.1:43439")
	}
}

func TestMergeDevices(t *testing.T) {
	d := func(host, payload string) Device { return Device{Host: host, Payload: payload} }

	tests := []struct {
		name  string
		input [][]Device
		want  []Device
	}{
		{
			name:  "nothing",
			input: nil,
			want:  []Device{},
		},
		{
			name:  "nil slots",
			input: [][]Device{nil, nil},
			want:  []Device{},
		},
		{
			name:  "duplicates within one interface",
			input: [][]Device{{d("a", "1"), d("a", "2"), d("b", "3")}},
			want:  []Device{d("a", "1"), d("b", "3")},
		},
		{
			name:  "first interface wins",
			input: [][]Device{{d("a", "eth0")}, {d("a", "eth1"), d("c", "eth1")}},
			want:  []Device{d("a", "eth0"), d("c", "eth1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeDevices(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("mergeDevices() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearchAllInterfaces_ThreeRetriesNoReplies(t *testing.T) {
	op := newFakeOpener()
	ifaces := netif.Static{iface("eth0", 1, "10.0.0.2")}

	cfg := DefaultConfig()
	cfg.RetryCount = 3
	cfg.Timeout = 20 * time.Millisecond
	svc := newSearchService(cfg, ifaces, op)

	devices, err := svc.SearchAllInterfaces(context.Background(), "")
	if err != nil {
		t.Fatalf("SearchAllInterfaces() error = %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("SearchAllInterfaces() returned %d devices, want 0", len(devices))
	}

	conn := op.conn(1)
	if conn.sendCount() != 3 {
		t.Fatalf("sends = %d, want 3", conn.sendCount())
	}
	for i := 1; i < len(conn.sendTimes); i++ {
		if gap := conn.sendTimes[i].Sub(conn.sendTimes[i-1]); gap < DefaultResendDelay {
			t.Errorf("gap before send %d = %v, want >= %v", i+1, gap, DefaultResendDelay)
		}
	}
}

func TestSearchInterfaces_UsesGivenList(t *testing.T) {
	calls := 0
	provider := netif.ProviderFunc(func() ([]netif.Interface, error) {
		calls++
		return []netif.Interface{
			iface("eth0", 1, "10.0.0.2"),
			iface("eth1", 2, "10.0.0.3"),
			iface("eth2", 3, "10.0.0.4"),
		}, nil
	})
	op := newFakeOpener()
	op.conn(1).replies = []fakeReply{{from: "10.0.0.5", data: "hello"}}

	var reports int32
	svc := newSearchService(testConfig(), provider, op, WithProgress(func(SessionReport) {
		atomic.AddInt32(&reports, 1)
	}))

	given := []netif.Interface{iface("eth0", 1, "10.0.0.2")}
	devices, err := svc.SearchInterfaces(context.Background(), "", given)
	if err != nil {
		t.Fatalf("SearchInterfaces() error = %v", err)
	}
	if calls != 0 {
		t.Errorf("provider called %d times, want 0", calls)
	}
	if got := op.openCount(); got != 1 {
		t.Errorf("sessions opened = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&reports); got != 1 {
		t.Errorf("progress reports = %d, want 1", got)
	}
	if len(devices) != 1 || devices[0].Host != "10.0.0.5" {
		t.Errorf("SearchInterfaces() = %v, want one device from 10.0.0.5", devices)
	}
}

func TestSearchInterfaces_NoEligible(t *testing.T) {
	op := newFakeOpener()
	svc := newSearchService(testConfig(), netif.Static{}, op)

	down := iface("eth0", 1, "10.0.0.2")
	down.Up = false

	tests := []struct {
		name   string
		ifaces []netif.Interface
	}{
		{"nil list", nil},
		{"only ineligible", []netif.Interface{down}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := svc.SearchInterfaces(context.Background(), "", tt.ifaces)
			if !errors.Is(err, ErrNoMulticastInterface) {
				t.Errorf("SearchInterfaces() error = %v, want ErrNoMulticastInterface", err)
			}
			if devices != nil {
				t.Errorf("SearchInterfaces() devices = %v, want nil", devices)
			}
			if op.openCount() != 0 {
				t.Errorf("sessions opened = %d, want 0", op.openCount())
			}
		})
	}
}
