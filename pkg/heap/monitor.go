package heap

import (
	"fmt"
	"sync"
	"time"
)

// Monitor is a Java intrinsic lock: a recursive mutex plus a wait set,
// exactly the semantics monitorenter/monitorexit and Object.wait/notify/
// notifyAll need (JLS 17.1). Grounded on original_source/monitor.cpp's
// owner/recursion-count/condvar design (no teacher equivalent —
// daimatz-gojvm is single-threaded and implements no synchronized
// support at all), rebuilt with sync.Mutex/sync.Cond per Go idiom instead
// of a raw pthread mutex+condvar pair.
type Monitor struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner interface{}
	count int
}

func newMonitor() *Monitor {
	m := &Monitor{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Enter acquires the monitor, blocking if another thread holds it;
// re-entrant for the same threadID.
func (m *Monitor) Enter(threadID interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.owner != nil && m.owner != threadID {
		m.cond.Wait()
	}
	m.owner = threadID
	m.count++
}

// Exit releases one level of recursive ownership; once count reaches
// zero the monitor is free and waiters are woken to race for it.
func (m *Monitor) Exit(threadID interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != threadID {
		return fmt.Errorf("heap: monitor exit by non-owner (IllegalMonitorStateException)")
	}
	m.count--
	if m.count == 0 {
		m.owner = nil
		m.cond.Broadcast()
	}
	return nil
}

// Wait releases the monitor and blocks until notified, re-acquiring
// full recursion depth before returning (JLS 17.8.1). timeoutMillis == 0
// means wait indefinitely. Because sync.Cond has no timed wait, a timeout
// is implemented with a timer that re-broadcasts — acceptable since
// spurious wakeups are already part of Cond's contract and the caller
// must always re-check its condition in a loop.
func (m *Monitor) Wait(threadID interface{}, timeoutMillis int64) error {
	m.mu.Lock()
	if m.owner != threadID {
		m.mu.Unlock()
		return fmt.Errorf("heap: wait by non-owner (IllegalMonitorStateException)")
	}
	savedCount := m.count
	m.count = 0
	m.owner = nil
	m.cond.Broadcast() // let another waiter/enterer in while this thread waits

	if timeoutMillis > 0 {
		timer := time.AfterFunc(time.Duration(timeoutMillis)*time.Millisecond, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}

	m.cond.Wait()

	for m.owner != nil && m.owner != threadID {
		m.cond.Wait()
	}
	m.owner = threadID
	m.count = savedCount
	m.mu.Unlock()
	return nil
}

func (m *Monitor) Notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cond.Signal()
}

func (m *Monitor) NotifyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cond.Broadcast()
}

// HeldBy reports whether threadID currently owns this monitor.
func (m *Monitor) HeldBy(threadID interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == threadID
}
