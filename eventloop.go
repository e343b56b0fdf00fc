package netreactor

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Task is a unit of work posted to an EventLoop.
type Task func()

type loopState int32

const (
	loopCreated loopState = iota
	loopRunning
	loopQuitting
	loopTerminated
)

// EventLoop is a single-threaded cooperative executor: one loop thread
// owns exactly one Poller and a set of Channels, dispatches readiness
// events, and drains a cross-goroutine task queue on every iteration.
// The task queue is double-buffered: enqueues land under a short lock,
// the drain swaps the slices and executes lock-free, so tasks posted
// during execution land in the next iteration.
type EventLoop struct {
	poller *epollPoller

	state atomic.Int32 // loopState

	// goroutineID identifies the goroutine currently executing Loop, or 0
	// when not running. Set at the top of Loop and cleared on return, so
	// foreign-goroutine calls can detect loop-thread affinity without a
	// dedicated OS thread lock.
	goroutineID atomic.Uint64

	mu           sync.Mutex
	pending      []Task
	pendingSpare []Task

	handlingEvent bool

	wakeFd int
	wakeCh *Channel

	activeChannels []*Channel

	quitCh chan struct{}
}

// NewEventLoop creates an EventLoop with its own epoll instance and
// wakeup eventfd. The returned loop is not yet running and has no loop
// thread; the goroutine that calls Loop becomes its loop thread.
func NewEventLoop() (*EventLoop, error) {
	poller, err := newPoller()
	if err != nil {
		return nil, err
	}
	wakeFd, err := createWakeFd()
	if err != nil {
		_ = poller.Close()
		return nil, err
	}

	loop := &EventLoop{
		poller:  poller,
		wakeFd:  wakeFd,
		quitCh:  make(chan struct{}),
		pending: make([]Task, 0, 64),
	}
	loop.state.Store(int32(loopCreated))

	loop.wakeCh = newChannel(loop, wakeFd)
	loop.wakeCh.SetReadCallback(func(Timestamp) {
		drainWakeFd(loop.wakeFd)
	})
	loop.wakeCh.EnableRead()

	return loop, nil
}

// Loop runs the dispatch cycle until Quit is observed. It must only be
// called once, and only from the goroutine that will serve as this
// loop's thread for its entire lifetime.
func (l *EventLoop) Loop() error {
	if l.isLoopThread() {
		return ErrReentrantLoop
	}
	if !l.state.CompareAndSwap(int32(loopCreated), int32(loopRunning)) {
		switch loopState(l.state.Load()) {
		case loopQuitting:
			// Quit arrived before Loop ever started.
			l.state.Store(int32(loopTerminated))
			close(l.quitCh)
			return nil
		case loopTerminated:
			return ErrLoopTerminated
		default:
			return ErrLoopAlreadyRunning
		}
	}

	l.goroutineID.Store(currentGoroutineID())
	defer l.goroutineID.Store(0)

	for loopState(l.state.Load()) != loopQuitting {
		receiveTime, ready, err := l.poller.Poll(10000)
		if err != nil {
			continue
		}
		l.activeChannels = ready
		for _, ch := range l.activeChannels {
			if ch.stale() {
				continue
			}
			ch.handleEvent(receiveTime)
		}
		l.activeChannels = nil
		l.doPendingTasks()
	}

	l.state.Store(int32(loopTerminated))
	close(l.quitCh)
	return nil
}

// Quit requests loop termination. It is safe to call from any
// goroutine; if called from a foreign goroutine it also posts a
// wakeup so a blocked poll() returns promptly.
func (l *EventLoop) Quit() {
	if l.state.CompareAndSwap(int32(loopCreated), int32(loopQuitting)) {
		return
	}
	if l.state.CompareAndSwap(int32(loopRunning), int32(loopQuitting)) && !l.isLoopThread() {
		l.wakeup()
	}
}

// Done returns a channel closed once Loop has fully returned.
func (l *EventLoop) Done() <-chan struct{} {
	return l.quitCh
}

// RunInLoop executes task synchronously if called from the loop
// thread, otherwise queues it and posts a wakeup.
func (l *EventLoop) RunInLoop(task Task) {
	if l.isLoopThread() {
		task()
		return
	}
	l.QueueInLoop(task)
}

// QueueInLoop always enqueues task, waking the loop unless the call is
// already happening on the loop thread during event dispatch (in which
// case the loop is guaranteed to drain the queue before it next
// blocks).
func (l *EventLoop) QueueInLoop(task Task) {
	l.mu.Lock()
	l.pending = append(l.pending, task)
	needWake := !l.isLoopThread() || l.handlingEvent
	l.mu.Unlock()

	if needWake {
		l.wakeup()
	}
}

func (l *EventLoop) doPendingTasks() {
	l.mu.Lock()
	l.handlingEvent = true
	l.pending, l.pendingSpare = l.pendingSpare, l.pending
	batch := l.pendingSpare
	l.mu.Unlock()

	for _, task := range batch {
		task()
	}

	l.mu.Lock()
	l.pendingSpare = batch[:0]
	l.handlingEvent = false
	l.mu.Unlock()
}

// updateChannel installs or refreshes ch's kernel registration. Called
// only from Channel.update, which is itself loop-thread-only.
func (l *EventLoop) updateChannel(ch *Channel) {
	l.assertInLoopThread()
	_ = l.poller.Update(ch)
}

// removeChannel drops ch's kernel registration. Called only from
// Channel.Remove.
func (l *EventLoop) removeChannel(ch *Channel) {
	l.assertInLoopThread()
	_ = l.poller.Remove(ch)
}

func (l *EventLoop) wakeup() {
	_ = signalWakeFd(l.wakeFd)
}

// Close releases the loop's own kernel resources (wake fd, epoll fd).
// Loop must have returned before calling Close.
func (l *EventLoop) Close() error {
	l.wakeCh.Remove()
	err1 := closeFD(l.wakeFd)
	err2 := l.poller.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NewChannel creates a Channel bound to this loop for fd. The caller
// owns fd's lifetime.
func (l *EventLoop) NewChannel(fd int) *Channel {
	return newChannel(l, fd)
}

func (l *EventLoop) isLoopThread() bool {
	id := l.goroutineID.Load()
	return id != 0 && id == currentGoroutineID()
}

// assertInLoopThread panics when called from a goroutine other than the
// one currently executing Loop. Before Loop starts (and after it
// returns) there is no loop thread yet, so any goroutine may touch the
// loop's state; this is what lets NewEventLoop register the wakeup
// Channel and Close tear it down.
func (l *EventLoop) assertInLoopThread() {
	if id := l.goroutineID.Load(); id != 0 && id != currentGoroutineID() {
		panic(ErrNotLoopThread)
	}
}

// currentGoroutineID parses the running goroutine's id out of a stack
// trace header. Go has no public goroutine-id API; parsing the header
// is the usual workaround for a loop-thread-affinity check.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
