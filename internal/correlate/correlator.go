package correlate

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Outcome is the terminal result of one correlated request: either a
// response payload from the hub or a failure. Each slot resolves with
// exactly one Outcome.
type Outcome struct {
	Result json.RawMessage
	Err    error
}

// Correlator matches responses to outstanding requests by integer id.
//
// Ids are monotonically increasing within one connection epoch and reset
// to 1 on Reset(). An id is unique among currently outstanding requests;
// ids are never reused while pending.
//
// The Correlator never retries anything itself: a timeout or connection
// loss resolves the slot with a failure and the caller decides.
//
// Thread Safety: all methods are safe for concurrent use. The socket
// read loop resolves; any number of command goroutines register and await.
type Correlator struct {
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan Outcome
	timeout time.Duration
}

// New creates a Correlator with the given per-request timeout.
// A zero timeout falls back to 30 seconds.
func New(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Correlator{
		nextID:  1,
		pending: make(map[int64]chan Outcome),
		timeout: timeout,
	}
}

// Register allocates the next request id and its completion slot.
// The caller sends the request carrying the id, then hands the slot to
// Await.
func (c *Correlator) Register() (int64, <-chan Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	// Buffered so the read loop never blocks on resolution.
	slot := make(chan Outcome, 1)
	c.pending[id] = slot
	return id, slot
}

// Resolve completes the slot for id with a success payload.
// Returns false if no slot is outstanding for the id; such responses are
// stale or duplicated and the caller drops them silently.
func (c *Correlator) Resolve(id int64, result json.RawMessage) bool {
	return c.complete(id, Outcome{Result: result})
}

// Fail completes the slot for id with a failure.
// Returns false if no slot is outstanding for the id.
func (c *Correlator) Fail(id int64, err error) bool {
	return c.complete(id, Outcome{Err: err})
}

func (c *Correlator) complete(id int64, out Outcome) bool {
	c.mu.Lock()
	slot, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	slot <- out
	return true
}

// Await blocks until the slot resolves, the per-request timeout fires,
// or the context is cancelled. On timeout or cancellation the slot is
// withdrawn so a late response is dropped as stale.
//
// A timeout affects only this request; other outstanding slots are
// untouched.
func (c *Correlator) Await(ctx context.Context, id int64, slot <-chan Outcome) (json.RawMessage, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-slot:
		return out.Result, out.Err
	case <-timer.C:
		c.withdraw(id)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.withdraw(id)
		return nil, ctx.Err()
	}
}

// withdraw removes a pending slot without resolving it.
func (c *Correlator) withdraw(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// FailAll resolves every outstanding slot with err and clears the
// mapping. Called when the connection is lost.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[int64]chan Outcome)
	c.mu.Unlock()

	for _, slot := range pending {
		slot <- Outcome{Err: err}
	}
}

// Reset starts a new connection epoch: ids restart at 1.
// Any still-outstanding slots are failed with err first.
func (c *Correlator) Reset(err error) {
	c.FailAll(err)

	c.mu.Lock()
	c.nextID = 1
	c.mu.Unlock()
}

// PendingCount returns the number of outstanding requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
