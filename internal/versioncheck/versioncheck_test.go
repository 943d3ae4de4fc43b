package versioncheck

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	mu   sync.Mutex
	info AppVersionInfo
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context) (AppVersionInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.err
}

func (f *fakeFetcher) set(info AppVersionInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info = info
}

func TestStartFetchesImmediately(t *testing.T) {
	f := &fakeFetcher{info: AppVersionInfo{Current: "2024.1", IsSupported: true}}
	c := New(f, time.Hour)
	c.Start(context.Background())
	defer c.Stop()

	if got := c.Current(); got.Current != "2024.1" {
		t.Fatalf("Current() = %+v, want Current=2024.1", got)
	}
}

func TestOnChangeFiresOnDelta(t *testing.T) {
	f := &fakeFetcher{info: AppVersionInfo{Current: "2024.1"}}
	c := New(f, 5*time.Millisecond)

	var mu sync.Mutex
	var got []AppVersionInfo
	c.OnChange(func(info AppVersionInfo) {
		mu.Lock()
		got = append(got, info)
		mu.Unlock()
	})

	c.Start(context.Background())
	defer c.Stop()

	f.set(AppVersionInfo{Current: "2024.2"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		// The initial fetch already reports 2024.1; wait for the delta.
		mu.Lock()
		n := len(got)
		seen := n > 0 && got[n-1].Current == "2024.2"
		mu.Unlock()
		if seen {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("expected OnChange to fire after version delta")
	}
	if got[len(got)-1].Current != "2024.2" {
		t.Fatalf("last change = %+v, want Current=2024.2", got[len(got)-1])
	}
}

func TestPollErrorDoesNotPanic(t *testing.T) {
	f := &fakeFetcher{err: errors.New("network down")}
	c := New(f, time.Hour)
	c.Start(context.Background())
	defer c.Stop()

	if got := c.Current(); got != (AppVersionInfo{}) {
		t.Fatalf("Current() = %+v, want zero value after fetch error", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, time.Hour)
	c.Start(context.Background())
	c.Stop()
	c.Stop()
}
