// Package worker provides the cooperative-shutdown mixin embedded by every
// long-running hsauth component (the SRV state machine, the intro/rendezvous
// circuit managers). Embedders launch their event loop as a goroutine and
// select on HaltCh() to notice a shutdown request.
package worker

import "sync"

// Worker is embedded by types that run a background goroutine and need to
// be halted cooperatively from another goroutine.
type Worker struct {
	sync.WaitGroup

	haltedCh chan interface{}
	initOnce sync.Once
	haltOnce sync.Once
}

// Halt requests that the worker's goroutines terminate, and waits for them
// to do so via the embedded sync.WaitGroup. Safe to call more than once.
func (w *Worker) Halt() {
	w.haltOnce.Do(func() {
		close(w.initHaltCh())
	})
	w.Wait()
}

// HaltCh returns the channel that is closed when Halt is called. A worker's
// event loop should select on this channel alongside its other cases.
func (w *Worker) HaltCh() chan interface{} {
	return w.initHaltCh()
}

func (w *Worker) initHaltCh() chan interface{} {
	w.initOnce.Do(func() {
		w.haltedCh = make(chan interface{})
	})
	return w.haltedCh
}
