package viewstore

import (
	"log"
	"sync"
	"time"
)

// Cleaner periodically deletes views untouched for RetentionDays.
type Cleaner struct {
	store         *Store
	retentionDays int
	period        time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewCleaner creates a cleaner. Non-positive values fall back to 30 days
// and an hourly sweep.
func NewCleaner(store *Store, retentionDays int, period time.Duration) *Cleaner {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if period <= 0 {
		period = time.Hour
	}
	return &Cleaner{
		store:         store,
		retentionDays: retentionDays,
		period:        period,
		stopCh:        make(chan struct{}),
	}
}

// Start runs one sweep immediately, then one per period.
func (c *Cleaner) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Sweep()

		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Stop stops the background sweeps.
func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.wg.Wait()
	})
}

// Sweep deletes expired views once.
func (c *Cleaner) Sweep() int64 {
	cutoff := time.Now().AddDate(0, 0, -c.retentionDays)
	deleted, err := c.store.DeleteOlderThan(cutoff)
	if err != nil {
		log.Printf("[ViewStore] cleanup error: %v", err)
		return 0
	}
	if deleted > 0 {
		log.Printf("[ViewStore] cleaned up %d expired views", deleted)
	}
	return deleted
}
