// Package versioncheck implements the Version Updater external
// collaborator (spec.md §6): a background poller that fetches the
// current app-version metadata and notifies on change, modeled on the
// teacher's SubscriptionManager refresh-loop (auto-refresh goroutine
// per subscription, stoppable via a close channel).
package versioncheck

import (
	"context"
	"sync"
	"time"

	"vpnguard/internal/logging"
)

// AppVersionInfo mirrors the version metadata the orchestrator caches
// and surfaces to UI clients via GetCurrentVersion / the
// NewAppVersionInfo event (spec.md §3, §4.9).
type AppVersionInfo struct {
	Current      string
	IsSupported  bool
	Suggested    string
	Latest       string
	LatestStable string
}

// Fetcher retrieves the latest AppVersionInfo from the API. Production
// implementations wrap the API Runtime's REST handle; it is left
// opaque here since the REST surface itself is out of scope.
type Fetcher interface {
	Fetch(ctx context.Context) (AppVersionInfo, error)
}

// Checker polls a Fetcher on an interval and invokes a callback when
// the result changes, publishing onto the event bus being the caller's
// responsibility (kept symmetric with relay.ListUpdater's OnChange
// contract).
type Checker struct {
	mu       sync.Mutex
	fetcher  Fetcher
	interval time.Duration
	current  AppVersionInfo
	onChange func(AppVersionInfo)
	stopCh   chan struct{}
	running  bool
}

func New(fetcher Fetcher, interval time.Duration) *Checker {
	return &Checker{fetcher: fetcher, interval: interval}
}

// OnChange registers the callback invoked whenever a poll yields a
// result that differs from the cached one. Must be called before Start.
func (c *Checker) OnChange(fn func(AppVersionInfo)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Current returns the last known AppVersionInfo.
func (c *Checker) Current() AppVersionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start performs an immediate fetch and begins the background poll
// loop. Calling Start twice is a no-op.
func (c *Checker) Start(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	stopCh := make(chan struct{})
	c.stopCh = stopCh
	c.mu.Unlock()

	if err := c.poll(ctx); err != nil {
		logging.Log.Warnf("VersionCheck", "initial fetch failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case <-ticker.C:
				if err := c.poll(ctx); err != nil {
					logging.Log.Warnf("VersionCheck", "poll failed: %v", err)
				}
			}
		}
	}()
}

// Stop halts the background poll loop.
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.stopCh)
	c.running = false
}

func (c *Checker) poll(ctx context.Context) error {
	info, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	changed := c.current != info
	c.current = info
	cb := c.onChange
	c.mu.Unlock()

	if changed && cb != nil {
		cb(info)
	}
	return nil
}
