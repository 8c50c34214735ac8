package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second

	// eventQueueSize bounds events waiting for broadcast.
	eventQueueSize = 1000
)
