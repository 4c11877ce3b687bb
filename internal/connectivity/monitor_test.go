package connectivity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_StateTransitions(t *testing.T) {
	m := NewMonitor(true, zerolog.Nop())
	assert.True(t, m.Online())

	m.SetOnline(false)
	assert.False(t, m.Online())

	select {
	case online := <-m.Events():
		assert.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("no event posted for state change")
	}
}

func TestMonitor_NoEventWithoutChange(t *testing.T) {
	m := NewMonitor(true, zerolog.Nop())

	m.SetOnline(true)
	m.SetOnline(true)

	select {
	case <-m.Events():
		t.Fatal("event posted although state did not change")
	default:
	}
}

func TestMonitor_SetOnlineNeverBlocks(t *testing.T) {
	m := NewMonitor(false, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		// Nobody consumes events; flips must still return.
		for i := 0; i < 50; i++ {
			m.SetOnline(i%2 == 0)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SetOnline blocked without a consumer")
	}
}

type fakeChecker struct {
	mu   sync.Mutex
	fail bool
}

func (f *fakeChecker) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("dependency down")
	}
	return nil
}

func (f *fakeChecker) Name() string { return "fake" }

func (f *fakeChecker) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func TestProber_FlipsMonitorState(t *testing.T) {
	m := NewMonitor(true, zerolog.Nop())
	checker := &fakeChecker{fail: true}
	p := NewProber(m, checker, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return !m.Online() }, time.Second, 5*time.Millisecond,
		"failing probes should mark the client offline")

	checker.setFail(false)
	require.Eventually(t, func() bool { return m.Online() }, time.Second, 5*time.Millisecond,
		"successful probe should mark the client online again")
}
