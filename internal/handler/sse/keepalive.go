package sse

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultKeepAliveInterval keeps idle streams open through proxies that cut
// connections silent for 30s or more
const DefaultKeepAliveInterval = 15 * time.Second

// KeepAliveWriter abstracts the mechanism for writing keep-alive messages
type KeepAliveWriter interface {
	WriteKeepAlive() error
}

// TickerKeepAlive sends keep-alive pings at fixed intervals until stopped or a write fails
type TickerKeepAlive struct {
	interval time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewTickerKeepAlive creates a ticker-based keep-alive; a non-positive
// interval selects DefaultKeepAliveInterval
func NewTickerKeepAlive(interval time.Duration) *TickerKeepAlive {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	return &TickerKeepAlive{
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start pings writer every interval. The returned channel closes when pinging
// ends, which after a failed write means the client is gone.
func (k *TickerKeepAlive) Start(writer KeepAliveWriter, logger *slog.Logger) <-chan struct{} {
	ticker := time.NewTicker(k.interval)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := writer.WriteKeepAlive(); err != nil {
					logger.Debug("keep-alive write failed, stopping", "error", err)
					return
				}
			case <-k.done:
				return
			}
		}
	}()

	return stopped
}

// Stop terminates the keep-alive. Safe to call multiple times.
func (k *TickerKeepAlive) Stop() {
	k.once.Do(func() { close(k.done) })
}
