// Package collector implements the generic UDP listen loop shared by every
// wire-protocol capability. A Collector is parameterized by a Decode function
// so the loop, lifecycle management and stats are written once and reused
// across sFlow, NetFlow, IPFIX, jFlow and the JSON channel.
package collector

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/netweaver/flowtelemetry/pkg/capability"
	"github.com/netweaver/flowtelemetry/pkg/flow"
	"github.com/netweaver/flowtelemetry/pkg/store"
)

// DecodeFunc decodes one UDP datagram payload into zero or more flow.Records.
// exporter is the sending peer's address, already resolved by the collector.
type DecodeFunc func(data []byte, exporter string) []flow.Record

const readBufferSize = 65535

// readDeadline bounds how long a single ReadFromUDP call blocks, so the
// serve loop can observe context cancellation promptly even with no traffic.
const readDeadline = 500 * time.Millisecond

// Collector runs a UDP listen loop, decodes each datagram with Decode and
// appends the resulting records to Store. Start/Stop are idempotent and
// concurrency-safe.
type Collector struct {
	name   string
	decode DecodeFunc
	store  *store.Store

	mu      sync.Mutex
	conn    *net.UDPConn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	host    string
	port    int

	ingested atomic.Uint64
	dropped  atomic.Uint64
}

// New creates a Collector identified by name, decoding with decode and
// appending records into st.
func New(name string, decode DecodeFunc, st *store.Store) *Collector {
	return &Collector{name: name, decode: decode, store: st}
}

// Name returns the collector's identifying name.
func (c *Collector) Name() string {
	return c.name
}

// Start binds a UDP socket at host:port and begins serving. Port 0 binds an
// ephemeral port; the bound port is recorded and reported via Status.
// Calling Start while already running is a no-op that returns nil.
//
// The ctx passed to Start is only used as the parent for the loop's
// lifetime; Start itself returns once the socket is bound.
func (c *Collector) Start(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	addr := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	if addr.IP == nil && host != "" {
		resolved, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return fmt.Errorf("collector %s: resolve %s:%d: %w", c.name, host, port, err)
		}
		addr = resolved
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("collector %s: listen %s:%d: %w", c.name, host, port, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.conn = conn
	c.cancel = cancel
	c.running = true
	c.host = host
	c.port = conn.LocalAddr().(*net.UDPAddr).Port

	c.wg.Add(1)
	go c.serve(runCtx, conn)

	return nil
}

// Stop cancels the serve loop, closes the socket and waits for the loop to
// exit. Calling Stop when not running is a no-op.
func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	conn := c.conn
	c.running = false
	c.mu.Unlock()

	cancel()
	conn.Close()
	c.wg.Wait()
	return nil
}

func (c *Collector) serve(ctx context.Context, conn *net.UDPConn) {
	defer c.wg.Done()

	buf := make([]byte, readBufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		exporter := ""
		if peer != nil {
			exporter = peer.IP.String()
		}

		records := c.decode(payload, exporter)
		if len(records) == 0 {
			c.dropped.Add(1)
			continue
		}

		for i := range records {
			if records[i].Exporter == "" {
				records[i].Exporter = exporter
			}
		}

		c.ingested.Add(uint64(len(records)))
		c.store.AddMany(records)
	}
}

// Status returns a snapshot of the collector's current state.
func (c *Collector) Status() capability.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return capability.Status{
		Name:     c.name,
		Running:  c.running,
		Host:     c.host,
		Port:     c.port,
		Ingested: c.ingested.Load(),
		Dropped:  c.dropped.Load(),
	}
}
