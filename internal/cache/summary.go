package cache

import (
	"time"

	"fuellog/internal/core"
)

// SummaryCache memoizes aggregated statistics per vehicle and date range.
// Any mutation of a vehicle's records must call InvalidateVehicle.
type SummaryCache struct {
	lru *LRUCache[core.Summary]
}

func NewSummaryCache(maxSize int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{lru: NewLRUCache[core.Summary](maxSize, ttl)}
}

func (c *SummaryCache) Get(vehicleID string, rng core.DateRange) (core.Summary, bool) {
	return c.lru.Get(summaryKey(vehicleID, rng))
}

func (c *SummaryCache) Set(vehicleID string, rng core.DateRange, s core.Summary) {
	c.lru.SetInGroup(vehicleID, summaryKey(vehicleID, rng), s)
}

func (c *SummaryCache) InvalidateVehicle(vehicleID string) int {
	return c.lru.DeleteGroup(vehicleID)
}

func (c *SummaryCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

func (c *SummaryCache) Size() int {
	return c.lru.Size()
}

func summaryKey(vehicleID string, rng core.DateRange) string {
	return vehicleID + "|" + bound(rng.Start) + "|" + bound(rng.End)
}

func bound(t time.Time) string {
	if t.IsZero() {
		return "*"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
