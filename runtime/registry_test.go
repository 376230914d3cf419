package runtime

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/contract"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    []any
	notReady  bool
	closed    bool
	closeCode int
	sendErr   error
}

func (c *fakeConn) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.notReady && !c.closed
}

func (c *fakeConn) Close(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	return nil
}

func TestRegistry_Register_And_Presence(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(slog.Default())
	conn := &fakeConn{}

	// Given nobody is connected
	req.False(registry.IsPresent("alice"))

	// When alice registers
	registry.Register("alice", conn)

	// Then presence reflects the live connection
	req.True(registry.IsPresent("alice"))
	req.Equal(1, registry.Count())

	got, ok := registry.Get("alice")
	req.True(ok)
	req.Same(conn, got.(*fakeConn))
}

func TestRegistry_Second_Connection_Replaces_First(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(slog.Default())
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register("alice", first)
	registry.Register("alice", second)

	// The previous connection is closed with the session-replaced code
	req.True(first.closed)
	req.Equal(contract.CloseSessionReplaced, first.closeCode)
	req.False(second.closed)
	req.Equal(1, registry.Count())

	got, _ := registry.Get("alice")
	req.Same(second, got.(*fakeConn))
}

func TestRegistry_Unregister_Of_Stale_Connection_Keeps_Successor(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(slog.Default())
	first := &fakeConn{}
	second := &fakeConn{}

	registry.Register("alice", first)
	registry.Register("alice", second)

	// The replaced connection's deferred unregister fires late
	registry.Unregister("alice", first)

	// The successor must survive
	req.True(registry.IsPresent("alice"))

	registry.Unregister("alice", second)
	req.False(registry.IsPresent("alice"))
}

func TestRegistry_Conns_Snapshot(t *testing.T) {
	req := require.New(t)
	registry := NewConnectionRegistry(slog.Default())

	registry.Register("alice", &fakeConn{})
	registry.Register("bob", &fakeConn{})

	req.Len(registry.Conns(), 2)
}
