package session

import (
	"sync"

	mcp "github.com/nugget/mcpsdk"
)

// pendingTable tracks in-flight requests awaiting a response, keyed by
// request id. A single mutex guards the map; every operation is an O(1)
// map lookup/insert/delete, grounded on
// internal/homeassistant/websocket.go's c.pending map and
// other_examples/.../server-session.go's connAdapter.pending.
type pendingTable struct {
	mu      sync.Mutex
	entries map[mcp.ID]chan *mcp.Response
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[mcp.ID]chan *mcp.Response)}
}

// register allocates a completion channel for id. The channel has a
// buffer of one so a complete() racing a timed-out caller never blocks.
func (t *pendingTable) register(id mcp.ID) chan *mcp.Response {
	ch := make(chan *mcp.Response, 1)
	t.mu.Lock()
	t.entries[id] = ch
	t.mu.Unlock()
	return ch
}

// complete delivers resp to the registered caller for resp's id, if any
// is still waiting. Reports whether a waiter was found.
func (t *pendingTable) complete(id mcp.ID, resp *mcp.Response) bool {
	t.mu.Lock()
	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// remove discards a pending entry without completing it, used when the
// caller gives up (context canceled or deadline exceeded).
func (t *pendingTable) remove(id mcp.ID) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// abortAll completes every outstanding request with a synthetic error
// response, used when the transport disconnects out from under them.
func (t *pendingTable) abortAll(rpcErr *mcp.RPCError) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[mcp.ID]chan *mcp.Response)
	t.mu.Unlock()

	for id, ch := range entries {
		ch <- mcp.NewErrorResponse(id, rpcErr)
	}
}

// len reports the number of requests currently in flight.
func (t *pendingTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
