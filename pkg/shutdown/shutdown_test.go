package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

type closer struct {
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestShutdown_RunsHooksInReverseOrder(t *testing.T) {
	m := New(time.Second, nil)

	var order []string
	for _, name := range []string{"store", "tracer", "http"} {
		name := name
		m.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	expected := []string{"http", "tracer", "store"}
	for i := range expected {
		if order[i] != expected[i] {
			t.Fatalf("Expected order %v, got %v", expected, order)
		}
	}
}

func TestShutdown_CollectsErrors(t *testing.T) {
	m := New(time.Second, nil)
	failing := &closer{err: errors.New("disk gone")}
	ok := &closer{}
	m.Register("ok", CloseResource(ok))
	m.Register("failing", CloseResource(failing))

	err := m.Shutdown()
	if err == nil {
		t.Fatal("Expected error from failing hook")
	}
	if !errors.Is(err, failing.err) {
		t.Errorf("Expected wrapped hook error, got %v", err)
	}
	if !ok.closed || !failing.closed {
		t.Error("Expected every hook to run")
	}
}

func TestWait_Trigger(t *testing.T) {
	m := New(time.Second, nil)
	c := &closer{}
	m.Register("resource", CloseResource(c))

	go m.Trigger()

	if err := m.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if !c.closed {
		t.Error("Expected resource closed after Wait")
	}
	select {
	case <-m.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	m := New(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	select {
	case <-m.Done():
	default:
		t.Error("Expected Done to be closed")
	}
}
