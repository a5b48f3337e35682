package multisigcheck

import (
	"sync/atomic"

	"github.com/go-errors/errors"
)

var (
	// ErrServerShuttingDown indicates that the server is in the process of
	// gracefully exiting.
	ErrServerShuttingDown = errors.New("server is shutting down")
)

// server is the main server of the daemon. It houses the checker bound to
// the active network and the metrics collectors. Neither holds per-request
// state.
type server struct {
	stopping int32 // To be used atomically.

	checker *Checker

	// metrics is nil if metrics are disabled.
	metrics *Metrics
}

// newServer creates a new instance of the server for the given checker.
func newServer(checker *Checker, metrics *Metrics) *server {
	return &server{
		checker: checker,
		metrics: metrics,
	}
}

// Stop marks the server as shutting down, new requests are refused from now
// on.
func (s *server) Stop() {
	if atomic.CompareAndSwapInt32(&s.stopping, 0, 1) {
		chckLog.Infof("Server shutting down")
	}
}

// Stopped returns true if Stop was called.
func (s *server) Stopped() bool {
	return atomic.LoadInt32(&s.stopping) == 1
}
