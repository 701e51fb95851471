package runner

import (
	"log/slog"
	"os"
	"strconv"
	"sync"

	"github.com/alitto/pond/v2"
)

const defaultWorkerCount = 10

// sharedPool is the process-wide worker pool all Workers submit to. Sized by
// TIMEBOX_WORKER_COUNT when set.
var sharedPool = sync.OnceValue(func() pond.Pool {
	count := defaultWorkerCount

	if v := os.Getenv("TIMEBOX_WORKER_COUNT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			slog.Warn("Ignoring invalid TIMEBOX_WORKER_COUNT", "value", v)
		} else {
			count = parsed
		}
	}

	slog.Debug("Initializing worker pool", "count", count)

	return pond.NewPool(count)
})

// Submit submits a function to the shared worker pool. It returns an error if
// the pool has been stopped.
func Submit(f func()) error {
	return sharedPool().Go(f)
}
