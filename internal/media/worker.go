package media

import (
	"sync"
	"sync/atomic"
	"time"
)

// WorkerState is the lifecycle of a capture worker:
// Idle -> Running -> StopRequested -> Joined.
type WorkerState int32

const (
	Idle WorkerState = iota
	Running
	StopRequested
	Joined
)

func (s WorkerState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case StopRequested:
		return "StopRequested"
	case Joined:
		return "Joined"
	}
	return "WorkerState(?)"
}

// worker runs one capture loop in its own goroutine. The loop must call
// stopping() once per iteration and return promptly when it reports true.
// Workers are single-use: once joined they cannot be restarted.
type worker struct {
	name  string
	state int32

	// Closed by StopRunning, to request loop exit.
	quit     chan struct{}
	quitOnce sync.Once

	// Closed when the loop actually terminates.
	terminated chan struct{}

	// Called by StopRunning to unblock a loop waiting for input.
	wake func()
}

func newWorker(name string, wake func()) *worker {
	return &worker{
		name:       name,
		quit:       make(chan struct{}),
		terminated: make(chan struct{}),
		wake:       wake,
	}
}

func (w *worker) start(run func()) error {
	if !atomic.CompareAndSwapInt32(&w.state, int32(Idle), int32(Running)) {
		return errWorkerStarted
	}

	go func() {
		log.Debug("Starting %s worker", w.name)
		defer func() {
			// The loop may end on its own (e.g. device lost).
			atomic.CompareAndSwapInt32(&w.state, int32(Running), int32(StopRequested))
			log.Debug("%s worker exited", w.name)
			close(w.terminated)
		}()
		run()
	}()
	return nil
}

// stopping reports whether a stop was requested, moving the worker to
// StopRequested the first time it is observed.
func (w *worker) stopping() bool {
	select {
	case <-w.quit:
		atomic.CompareAndSwapInt32(&w.state, int32(Running), int32(StopRequested))
		return true
	default:
		return false
	}
}

// StopRunning asks the loop to exit at the top of its next iteration. It
// does not wait; use Join for that.
func (w *worker) StopRunning() {
	w.quitOnce.Do(func() {
		close(w.quit)
		if w.wake != nil {
			w.wake()
		}
	})
}

// Join waits for the loop to exit. A timeout <= 0 waits forever. Joining a
// worker that was never started returns immediately. StopRunning must be
// called first, or Join may wait for input that never arrives.
func (w *worker) Join(timeout time.Duration) error {
	if w.State() == Idle {
		return nil
	}

	if timeout <= 0 {
		<-w.terminated
	} else {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-w.terminated:
		case <-timer.C:
			log.Error("%s worker did not stop within %v", w.name, timeout)
			return ErrShutdownTimeout
		}
	}

	atomic.StoreInt32(&w.state, int32(Joined))
	return nil
}

// Done is closed when the loop has exited.
func (w *worker) Done() <-chan struct{} {
	return w.terminated
}

func (w *worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// IsRunning reports whether the loop is running and no stop was requested.
func (w *worker) IsRunning() bool {
	return w.State() == Running
}
