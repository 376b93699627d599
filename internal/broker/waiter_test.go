package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock advances by the requested duration on every After call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 10, 27, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

// scriptedBackend replays a fixed sequence of poll results.
type scriptedBackend struct {
	updates []OrderUpdate
	errs    []error
	polls   int
}

func (b *scriptedBackend) Submit(context.Context, Order) (string, error) {
	return "order-1", nil
}

func (b *scriptedBackend) PollStatus(context.Context, string) (OrderUpdate, error) {
	i := b.polls
	if i >= len(b.updates) {
		i = len(b.updates) - 1
	}
	b.polls++
	if b.errs != nil && b.errs[i] != nil {
		return OrderUpdate{}, b.errs[i]
	}
	return b.updates[i], nil
}

func pending(id string) OrderUpdate {
	return OrderUpdate{ID: id, Status: "accepted"}
}

func filled(id string, qty int64, price float64) OrderUpdate {
	return OrderUpdate{ID: id, Status: "filled", FilledQty: qty, FilledAvgPrice: price}
}

func TestFillWaiterFillsAfterPendingPolls(t *testing.T) {
	backend := &scriptedBackend{
		updates: []OrderUpdate{
			pending("order-1"),
			pending("order-1"),
			filled("order-1", 10, 151.20),
		},
	}
	waiter := NewFillWaiter(backend, newFakeClock(), time.Second, 60*time.Second, nil)

	fill, err := waiter.Wait(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if fill.Quantity != 10 || fill.Price != 151.20 {
		t.Errorf("unexpected fill: %+v", fill)
	}
	if backend.polls != 3 {
		t.Errorf("expected 3 polls, got %d", backend.polls)
	}
}

func TestFillWaiterTerminalFailures(t *testing.T) {
	cases := []struct {
		status string
		want   error
	}{
		{"canceled", ErrOrderCanceled},
		{"expired", ErrOrderExpired},
		{"rejected", ErrOrderRejected},
	}
	for _, tc := range cases {
		backend := &scriptedBackend{
			updates: []OrderUpdate{{ID: "order-1", Status: tc.status}},
		}
		waiter := NewFillWaiter(backend, newFakeClock(), time.Second, 60*time.Second, nil)

		_, err := waiter.Wait(context.Background(), "order-1")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %s: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestFillWaiterRetriesPollErrors(t *testing.T) {
	backend := &scriptedBackend{
		updates: []OrderUpdate{
			{},
			{},
			filled("order-1", 5, 99.5),
		},
		errs: []error{
			fmt.Errorf("transient network error"),
			fmt.Errorf("transient network error"),
			nil,
		},
	}
	waiter := NewFillWaiter(backend, newFakeClock(), time.Second, 60*time.Second, nil)

	fill, err := waiter.Wait(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("Wait returned error after transient failures: %v", err)
	}
	if fill.Quantity != 5 {
		t.Errorf("unexpected fill: %+v", fill)
	}
	if backend.polls != 3 {
		t.Errorf("expected 3 polls, got %d", backend.polls)
	}
}

func TestFillWaiterDeadline(t *testing.T) {
	backend := &scriptedBackend{
		updates: []OrderUpdate{pending("order-1")},
	}
	waiter := NewFillWaiter(backend, newFakeClock(), time.Second, 3*time.Second, nil)

	_, err := waiter.Wait(context.Background(), "order-1")
	if !errors.Is(err, ErrOrderTimedOut) {
		t.Fatalf("expected ErrOrderTimedOut, got %v", err)
	}
	// One poll per interval plus the final one at the deadline.
	if backend.polls != 4 {
		t.Errorf("expected 4 polls before timing out, got %d", backend.polls)
	}
}

func TestFillWaiterContextCanceled(t *testing.T) {
	backend := &scriptedBackend{
		updates: []OrderUpdate{pending("order-1")},
	}
	waiter := NewFillWaiter(backend, RealClock(), 50*time.Millisecond, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := waiter.Wait(ctx, "order-1")
	if err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestFillWaiterFilledWithoutPriceRejected(t *testing.T) {
	backend := &scriptedBackend{
		updates: []OrderUpdate{{ID: "order-1", Status: "filled", FilledQty: 10}},
	}
	waiter := NewFillWaiter(backend, newFakeClock(), time.Second, 60*time.Second, nil)

	_, err := waiter.Wait(context.Background(), "order-1")
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected for fill without price, got %v", err)
	}
}

func TestSimBackendImmediateFill(t *testing.T) {
	backend := NewSimBackend()
	id, err := backend.Submit(context.Background(), Order{
		Symbol:         "AAPL",
		Quantity:       10,
		Side:           SideBuy,
		ReferencePrice: 150,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	update, err := backend.PollStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("PollStatus returned error: %v", err)
	}
	if update.Status != "filled" || update.FilledQty != 10 || update.FilledAvgPrice != 150 {
		t.Errorf("unexpected update: %+v", update)
	}

	if _, err := backend.Submit(context.Background(), Order{Symbol: "AAPL", Quantity: 10, Side: SideBuy}); err == nil {
		t.Errorf("expected error for missing reference price")
	}
	if _, err := backend.PollStatus(context.Background(), "missing"); err == nil {
		t.Errorf("expected error for unknown order")
	}
}
