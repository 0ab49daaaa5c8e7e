package reconcile

import (
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retrier wraps event processing with exponential backoff for transient
// failures. Waits block the calling goroutine; callers that must not block a
// request handler should run this on a worker.
type Retrier struct {
	Reconciler *Reconciler

	// InitialInterval defaults to one second, doubling per attempt up to
	// MaxInterval (default 32s). Tests shrink these.
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// BatchResult summarizes a batch run. Errors holds one entry per failed event.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// ProcessWithRetry processes one event, retrying transient failures up to
// maxAttempts total attempts. After exhaustion the last error is surfaced;
// dead-lettering is the caller's concern.
func (rt *Retrier) ProcessWithRetry(event Event, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = rt.InitialInterval
	if bo.InitialInterval == 0 {
		bo.InitialInterval = time.Second
	}
	bo.MaxInterval = rt.MaxInterval
	if bo.MaxInterval == 0 {
		bo.MaxInterval = 32 * time.Second
	}
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := rt.Reconciler.Process(event)
		if err != nil {
			log.Printf("⚠️ event processing attempt %d/%d failed: %v", attempt, maxAttempts, err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithMaxRetries(bo, uint64(maxAttempts-1)))
}

// BatchProcess applies ProcessWithRetry to each event independently. One
// event exhausting its retries does not block the others; processing is
// sequential on purpose — failure isolation matters here, parallelism does
// not.
func (rt *Retrier) BatchProcess(events []Event, maxAttempts int) BatchResult {
	result := BatchResult{}
	for _, event := range events {
		if err := rt.ProcessWithRetry(event, maxAttempts); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Succeeded++
	}
	return result
}
