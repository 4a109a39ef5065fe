// Package vmthread is the thread manager and safepoint coordinator (spec
// §4.7/§5): it owns every live VMThread, ties interp.Context to a
// concrete thread identity, and runs the stop-the-world rendezvous a GC
// cycle needs before pkg/heap.Collect may run.
//
// The teacher (daimatz-gojvm) is single-threaded and has no equivalent
// package at all — VMThread, Manager and the safepoint protocol are
// built fresh here, grounded directly on original_source's thread.cpp/
// safepoint.cpp rendezvous design (a global "stop the world" flag plus a
// per-thread parked counter) and on jacobin's javaLangThread.go gfunction
// module for the Thread.start0/currentThread/isAlive native contract
// pkg/natives dispatches into via the threadStarter interface.
package vmthread

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/daimatz/rexvm/internal/vmlog"
	"github.com/daimatz/rexvm/pkg/classpath"
	"github.com/daimatz/rexvm/pkg/heap"
	"github.com/daimatz/rexvm/pkg/interp"
	"github.com/daimatz/rexvm/pkg/methodhandle"
	"github.com/daimatz/rexvm/pkg/natives"
	"github.com/daimatz/rexvm/pkg/rclass"
	"github.com/daimatz/rexvm/pkg/slot"
)

// Manager is the process-wide thread registry plus GC safepoint
// coordinator. One Manager backs one running VM.
type Manager struct {
	Heap      *heap.Heap
	Loader    *classpath.Loader
	Natives   *natives.Registry
	Bootstrap *methodhandle.Linker

	mu      sync.Mutex
	cond    *sync.Cond
	threads map[*VMThread]struct{}
	stw     bool
	parked  int
	tidSeq  int64

	haltMu   sync.Mutex
	halted   bool
	haltCode int
}

// NewManager wires the fixed VM-wide collaborators (heap, loader, native
// registry, invokedynamic linker) into a Manager ready to spawn threads.
func NewManager(h *heap.Heap, l *classpath.Loader, n *natives.Registry, bsm *methodhandle.Linker) *Manager {
	m := &Manager{
		Heap:      h,
		Loader:    l,
		Natives:   n,
		Bootstrap: bsm,
		threads:   make(map[*VMThread]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// VMThread is one JVM thread: its own allocator (so `new` never contends
// on the shared heap under normal load, spec §4.5), its own exception
// factory (so concurrent implicit throws never race the same
// ThreadAllocator buffer), and the leaf frame the interpreter is
// currently running so GCRoots can walk its whole call chain.
type VMThread struct {
	mgr  *Manager
	tid  int64
	name string

	alloc *heap.ThreadAllocator
	exc   *classpath.ExceptionFactory

	frameMu sync.Mutex
	frame   *interp.Frame

	status int32 // atomic Status

	// Oop is this thread's own java/lang/Thread instance. nil until the
	// Manager (or Thread.start0) has built one; the bootstrap main
	// thread gets one lazily the first time Java code asks for it.
	oopMu sync.Mutex
	oop   *heap.Oop

	done   chan struct{}
	result error
}

func (m *Manager) newThread(name string) *VMThread {
	t := &VMThread{
		mgr:   m,
		tid:   atomic.AddInt64(&m.tidSeq, 1),
		name:  name,
		alloc: heap.NewThreadAllocator(m.Heap),
		done:  make(chan struct{}),
		status: int32(StatusNew),
	}
	t.exc = &classpath.ExceptionFactory{Loader: m.Loader, Alloc: t.alloc}
	return t
}

func (m *Manager) register(t *VMThread) {
	m.mu.Lock()
	m.threads[t] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) unregister(t *VMThread) {
	m.mu.Lock()
	delete(m.threads, t)
	// A thread leaving the rendezvous while parked-for-GC would hang a
	// pending Collect forever waiting for a parked count that can never
	// reach len(threads) again; TERMINATED threads are never expected to
	// be parked (Run returns before unregister), so this is defensive
	// bookkeeping rather than a load-bearing path.
	m.cond.Broadcast()
	m.mu.Unlock()
}

// ---- interp.Context ----

func (t *VMThread) ThreadID() interface{}              { return t }
func (t *VMThread) Allocator() *heap.ThreadAllocator    { return t.alloc }
func (t *VMThread) Loader() rclass.ClassLoader          { return t.mgr.Loader }
func (t *VMThread) Natives() interp.NativeInvoker       { return t.mgr.Natives }
func (t *VMThread) Bootstrapper() interp.Bootstrapper   { return t.mgr.Bootstrap }
func (t *VMThread) Exceptions() interp.ExceptionFactory { return t.exc }
func (t *VMThread) Heap() *heap.Heap                    { return t.mgr.Heap }
func (t *VMThread) WellKnown() interp.WellKnownClasses  { return t.mgr.Loader }

func (t *VMThread) PushFrame(f *interp.Frame) {
	t.frameMu.Lock()
	t.frame = f
	t.frameMu.Unlock()
}

// PopFrame restores the caller frame as current. Run's defer calls this
// unconditionally on the way out of every frame, including the
// outermost one (f.Caller == nil), which correctly leaves the thread
// with no current frame once it's back at the top level.
func (t *VMThread) PopFrame() {
	t.frameMu.Lock()
	if t.frame != nil {
		t.frame = t.frame.Caller
	}
	t.frameMu.Unlock()
}

// Safepoint implements interp.Context.Safepoint: parks the calling
// goroutine while a GC cycle (or any other requested stop-the-world
// pause) is in progress, exactly at the points spec §4.4/§5 name
// (backward branches, method entry, explicit safepoint calls in long
// native operations).
func (t *VMThread) Safepoint() {
	t.mgr.mu.Lock()
	if !t.mgr.stw {
		t.mgr.mu.Unlock()
		return
	}
	prev := atomic.SwapInt32(&t.status, int32(StatusBlocked))
	t.mgr.parked++
	t.mgr.cond.Broadcast()
	for t.mgr.stw {
		t.mgr.cond.Wait()
	}
	t.mgr.parked--
	atomic.StoreInt32(&t.status, prev)
	t.mgr.mu.Unlock()
}

// RequestGC implements the interface pkg/natives' Runtime.gc native
// probes for: it brings every registered thread to a safepoint, runs a
// full mark-and-sweep (pkg/heap.Collect), then resumes every mutator.
// Grounded on spec §4.6's six-step cycle, restated here as the rendezvous
// half pkg/heap.Collect itself defers to its caller.
func (m *Manager) RequestGC() {
	m.mu.Lock()
	m.stw = true
	total := len(m.threads)
	for m.parked < total {
		m.mu.Unlock()
		// Give parked threads a chance to notice stw via their own
		// Safepoint calls; a thread blocked inside a long native call
		// (not polling Safepoint) is waited for — the collection starts
		// only once it has returned and parked at its next Safepoint.
		m.mu.Lock()
		if m.parked >= total {
			break
		}
		m.cond.Wait()
	}

	roots := make([]heap.RootProvider, 0, len(m.threads))
	allocators := make([]*heap.ThreadAllocator, 0, len(m.threads))
	for th := range m.threads {
		roots = append(roots, th)
		allocators = append(allocators, th.alloc)
	}
	m.mu.Unlock()

	vmlog.Trace("vmthread: GC cycle starting, %d thread(s) parked", total)
	m.Heap.Collect(roots, allocators, m.Loader)
	vmlog.Trace("vmthread: GC cycle done, %d live oops", m.Heap.LiveCount())

	m.mu.Lock()
	m.stw = false
	m.cond.Broadcast()
	m.mu.Unlock()
}

// GCRoots implements heap.RootProvider: every reference reachable
// through this thread's current call chain, plus the thread's own oop
// (spec §4.6 step 3: "emit the thread oop itself").
func (t *VMThread) GCRoots() []slot.Slot {
	t.frameMu.Lock()
	f := t.frame
	t.frameMu.Unlock()

	var out []slot.Slot
	if f != nil {
		out = f.Roots()
	}
	t.oopMu.Lock()
	if t.oop != nil {
		out = append(out, slot.Reference(t.oop))
	}
	t.oopMu.Unlock()
	return out
}

// Halt implements java.lang.Shutdown.halt0(n)'s native contract (spec §6:
// "the process also exits on java.lang.Shutdown.halt0(n) with status n").
// Recorded rather than calling os.Exit directly so cmd/rex's RunMain can
// unwind cleanly and flush any buffered output before the process exits.
func (m *Manager) Halt(code int) {
	m.haltMu.Lock()
	defer m.haltMu.Unlock()
	if !m.halted {
		m.halted = true
		m.haltCode = code
	}
}

func (m *Manager) Halted() (bool, int) {
	m.haltMu.Lock()
	defer m.haltMu.Unlock()
	return m.halted, m.haltCode
}

// StartThread implements the threadStarter contract pkg/natives'
// Thread.start0 dispatches through: it spins up a new VMThread running
// threadOop's run() method (or its target Runnable's, mirroring
// java.lang.Thread.run's own delegation) on an independent goroutine.
func (t *VMThread) StartThread(threadOop *heap.Oop) error {
	child := t.mgr.newThread("")
	child.name = fmt.Sprintf("Thread-%d", child.tid)
	child.oopMu.Lock()
	child.oop = threadOop
	child.oopMu.Unlock()

	if threadOop.Class.Well != nil {
		threadOop.SetField(threadOop.Class.Well.ThreadStatus, slot.Int(int32(StatusRunnable)))
	}

	t.mgr.register(child)
	atomic.StoreInt32(&child.status, int32(StatusRunnable))

	go func() {
		defer close(child.done)
		defer t.mgr.unregister(child)
		defer func() {
			atomic.StoreInt32(&child.status, int32(StatusTerminated))
			if threadOop.Class.Well != nil {
				threadOop.SetField(threadOop.Class.Well.ThreadStatus, slot.Int(int32(StatusTerminated)))
			}
		}()

		runMethod, err := threadOop.Class.ResolveMethod("run", "()V")
		if err != nil {
			child.result = err
			return
		}
		f := interp.NewFrame(runMethod, nil)
		f.Locals[0] = slot.Reference(threadOop)
		_, thrown, err := interp.Run(child, f)
		if err != nil {
			child.result = err
			return
		}
		if thrown != nil {
			vmlog.Error("vmthread: %s: uncaught %s", child.name, thrown.Class.Name)
		}
	}()
	return nil
}

// CurrentThreadOop implements the threadStarter contract for
// Thread.currentThread(): the calling VMThread's own Thread instance,
// lazily synthesized on first request for threads that were never
// started via Thread.start0 (the bootstrap main thread in particular).
func (t *VMThread) CurrentThreadOop() *heap.Oop {
	t.oopMu.Lock()
	defer t.oopMu.Unlock()
	if t.oop != nil {
		return t.oop
	}
	threadClass, err := t.mgr.Loader.LoadClass("java/lang/Thread")
	if err != nil {
		return nil
	}
	o := t.alloc.NewInstance(threadClass)
	if threadClass.Well != nil {
		o.SetField(threadClass.Well.ThreadStatus, slot.Int(int32(StatusRunnable)))
	}
	t.oop = o
	return o
}

// RequestGC and Halt let pkg/natives reach the owning Manager through an
// interp.Context value (ctx.(interface{ RequestGC() }) / ctx.(interface{
// Halt(int) }) in java/lang/Runtime.gc and java/lang/Shutdown.halt0's
// native bodies) without pkg/natives importing pkg/vmthread directly.
func (t *VMThread) RequestGC() {
	// The requesting thread is itself stopped for the whole cycle, so it
	// counts toward the parked total the rendezvous waits for.
	t.mgr.mu.Lock()
	t.mgr.parked++
	t.mgr.mu.Unlock()
	t.mgr.RequestGC()
	t.mgr.mu.Lock()
	t.mgr.parked--
	t.mgr.mu.Unlock()
}
func (t *VMThread) Halt(code int) { t.mgr.Halt(code) }

// Name returns the thread's diagnostic name (not the Java-level
// Thread.name field, which lives on the oop once one exists).
func (t *VMThread) Name() string { return t.name }

// Status reports the thread's current lifecycle state.
func (t *VMThread) Status() Status { return Status(atomic.LoadInt32(&t.status)) }
