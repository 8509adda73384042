package liveness

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeSocket struct {
	mu           sync.Mutex
	pings        int
	terminated   bool
	lastActivity time.Time
}

func (f *fakeSocket) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeSocket) Terminate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = true
	return nil
}

func (f *fakeSocket) LastActivity() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastActivity
}

func (f *fakeSocket) touch() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastActivity = time.Now()
}

func TestSweeperPingsAliveSockets(t *testing.T) {
	sock := &fakeSocket{lastActivity: time.Now()}
	sweeper := NewSweeper(time.Hour, time.Hour, nil)
	sweeper.Register("c1", sock)

	sweeper.tick()

	sock.mu.Lock()
	defer sock.mu.Unlock()
	assert.Equal(t, 1, sock.pings)
	assert.False(t, sock.terminated)
}

func TestSweeperTerminatesOnMissedPong(t *testing.T) {
	sock := &fakeSocket{lastActivity: time.Now()}
	var evicted string
	sweeper := NewSweeper(time.Hour, time.Hour, func(id string) { evicted = id })
	sweeper.Register("c1", sock)

	sweeper.tick() // sends ping, marks pongPending
	sweeper.tick() // no Pong arrived, socket is dead

	assert.Equal(t, "c1", evicted)
	sock.mu.Lock()
	defer sock.mu.Unlock()
	assert.True(t, sock.terminated)
}

func TestSweeperPongClearsPending(t *testing.T) {
	sock := &fakeSocket{lastActivity: time.Now()}
	sweeper := NewSweeper(time.Hour, time.Hour, nil)
	sweeper.Register("c1", sock)

	sweeper.tick()
	sweeper.Pong("c1")
	sweeper.tick()

	sock.mu.Lock()
	defer sock.mu.Unlock()
	assert.False(t, sock.terminated)
}

func TestSweeperTerminatesOnSilence(t *testing.T) {
	sock := &fakeSocket{lastActivity: time.Now().Add(-time.Hour)}
	var evicted string
	sweeper := NewSweeper(time.Minute, time.Minute, func(id string) { evicted = id })
	sweeper.Register("c1", sock)

	sweeper.tick()

	assert.Equal(t, "c1", evicted)
}

func TestSweeperUnregister(t *testing.T) {
	sock := &fakeSocket{lastActivity: time.Now()}
	sweeper := NewSweeper(time.Hour, time.Hour, nil)
	sweeper.Register("c1", sock)
	sweeper.Unregister("c1")

	sweeper.tick()

	sock.mu.Lock()
	defer sock.mu.Unlock()
	assert.Equal(t, 0, sock.pings)
}

func TestSweeperRunAndStop(t *testing.T) {
	sweeper := NewSweeper(5*time.Millisecond, time.Hour, nil)
	done := make(chan struct{})
	go func() {
		sweeper.Run()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	sweeper.Stop()
	sweeper.Stop() // second call must not panic

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
