package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/muurk/ccufind/internal/netif"
)

// timeoutError mimics the error a socket returns when its deadline passes
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeReply is one scripted outcome of ReadFrom
type fakeReply struct {
	from string // sender IP
	data string
	err  error
}

// fakeConn is a scripted PacketConn. ReadFrom consumes replies in order
// and reports a timeout once they run out.
type fakeConn struct {
	mu sync.Mutex

	replies []fakeReply
	sendErr error
	block   bool // ReadFrom blocks until the read deadline passes

	sends          [][]byte
	sendTimes      []time.Time
	dsts           []net.Addr
	readDeadline   time.Time
	writeDeadlines int
	readDeadlines  int
	closed         bool
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	c.sends = append(c.sends, append([]byte(nil), b...))
	c.sendTimes = append(c.sendTimes, time.Now())
	c.dsts = append(c.dsts, addr)
	return len(b), nil
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if c.block {
		for {
			c.mu.Lock()
			dl := c.readDeadline
			c.mu.Unlock()
			if !dl.IsZero() && !time.Now().Before(dl) {
				return 0, nil, timeoutError{}
			}
			time.Sleep(time.Millisecond)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return 0, nil, timeoutError{}
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	if r.err != nil {
		return 0, nil, r.err
	}
	n := copy(b, r.data)
	return n, &net.UDPAddr{IP: net.ParseIP(r.from), Port: 43439}, nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	c.readDeadlines++
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadlines++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sends)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeOpener hands out scripted connections keyed by interface index
type fakeOpener struct {
	mu     sync.Mutex
	conns  map[int]*fakeConn
	errs   map[int]error
	opened []SessionParams
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		conns: make(map[int]*fakeConn),
		errs:  make(map[int]error),
	}
}

func (o *fakeOpener) Open(ctx context.Context, params SessionParams) (PacketConn, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, params)
	if err := o.errs[params.InterfaceIndex]; err != nil {
		return nil, err
	}
	c, ok := o.conns[params.InterfaceIndex]
	if !ok {
		c = &fakeConn{}
		o.conns[params.InterfaceIndex] = c
	}
	return c, nil
}

func (o *fakeOpener) conn(index int) *fakeConn {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.conns[index]
	if !ok {
		c = &fakeConn{}
		o.conns[index] = c
	}
	return c
}

func (o *fakeOpener) openCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.opened)
}

func (o *fakeOpener) paramsFor(index int) (SessionParams, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, p := range o.opened {
		if p.InterfaceIndex == index {
			return p, true
		}
	}
	return SessionParams{}, false
}

// fixedSource always returns the same random value
type fixedSource uint32

func (f fixedSource) Uint32() uint32 { return uint32(f) }

// iface builds an eligible test interface
func iface(name string, index int, ip string) netif.Interface {
	return netif.Interface{
		Name:      name,
		Index:     index,
		Up:        true,
		Multicast: true,
		IPv4:      net.ParseIP(ip),
	}
}

// testConfig is a fast configuration for unit tests
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.ResendDelay = time.Millisecond
	return cfg
}

var errBind = errors.New("bind: address already in use")
