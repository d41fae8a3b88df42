package cache

import (
	"fmt"
	"testing"
	"time"

	"fuellog/internal/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func withClock[T any](c *LRUCache[T]) *fakeClock {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return clk
}

// TestLRUCacheEviction tests size-based eviction
func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache[string](3, time.Hour)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")
	c.Get("key1")           // key2 is now least recently used
	c.Set("key4", "value4") // evicts key2

	if _, found := c.Get("key2"); found {
		t.Error("key2 should have been evicted")
	}
	for _, k := range []string{"key1", "key3", "key4"} {
		if _, found := c.Get(k); !found {
			t.Errorf("%s should still exist", k)
		}
	}
	if c.Size() != 3 {
		t.Errorf("Size() = %d, want 3", c.Size())
	}
}

func TestLRUCacheTTLExpiration(t *testing.T) {
	c := NewLRUCache[string](100, 50*time.Millisecond)
	clk := withClock(c)

	c.Set("key1", "value1")
	if _, found := c.Get("key1"); !found {
		t.Error("key1 should exist immediately")
	}

	clk.advance(60 * time.Millisecond)
	if _, found := c.Get("key1"); found {
		t.Error("key1 should have expired")
	}
	if c.Size() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestLRUCacheCleanExpired(t *testing.T) {
	c := NewLRUCache[string](100, 50*time.Millisecond)
	clk := withClock(c)

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	clk.advance(30 * time.Millisecond)
	c.Set("key3", "value3")
	clk.advance(30 * time.Millisecond)

	if removed := c.CleanExpired(); removed != 2 {
		t.Errorf("Expected 2 items cleaned, got %d", removed)
	}
	if _, found := c.Get("key3"); !found {
		t.Error("key3 should survive cleanup")
	}
}

func TestLRUCacheDeleteGroup(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.SetInGroup("a", "a|1", 1)
	c.SetInGroup("a", "a|2", 2)
	c.SetInGroup("ab", "ab|1", 3)
	c.Set("loose", 4)

	if n := c.DeleteGroup("a"); n != 2 {
		t.Errorf("DeleteGroup removed %d, want 2", n)
	}
	if _, found := c.Get("ab|1"); !found {
		t.Error("ab|1 belongs to another group")
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	if n := c.DeleteGroup("a"); n != 0 {
		t.Errorf("second DeleteGroup removed %d, want 0", n)
	}
}

func TestLRUCacheEvictionLeavesGroupsConsistent(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.SetInGroup("v1", "v1|jan", 1)
	c.SetInGroup("v1", "v1|feb", 2)
	c.SetInGroup("v2", "v2|jan", 3) // evicts v1|jan

	if n := c.DeleteGroup("v1"); n != 1 {
		t.Errorf("DeleteGroup(v1) = %d, want 1 after eviction", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}
}

func TestManagerCleanNow(t *testing.T) {
	a := NewLRUCache[int](10, time.Minute)
	b := NewSummaryCache(10, time.Minute)
	clkA := withClock(a)
	clkB := withClock(b.lru)

	a.Set("x", 1)
	b.Set("v", core.DateRange{}, core.Summary{Count: 1})
	clkA.advance(2 * time.Minute)
	clkB.advance(2 * time.Minute)

	m := NewManager()
	m.Register(a)
	m.Register(b)
	if n := m.CleanNow(); n != 2 {
		t.Errorf("CleanNow() = %d, want 2", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestSummaryCacheInvalidation(t *testing.T) {
	c := NewSummaryCache(16, time.Hour)
	jan := core.MonthRange(2024, time.January, time.UTC)

	c.Set("v1", core.DateRange{}, core.Summary{Count: 3})
	c.Set("v1", jan, core.Summary{Count: 1})
	c.Set("v10", jan, core.Summary{Count: 7})

	if s, ok := c.Get("v1", jan); !ok || s.Count != 1 {
		t.Fatalf("unexpected cached summary: %+v ok=%v", s, ok)
	}
	if _, ok := c.Get("v1", core.MonthRange(2024, time.February, time.UTC)); ok {
		t.Fatal("different range must miss")
	}

	if n := c.InvalidateVehicle("v1"); n != 2 {
		t.Fatalf("InvalidateVehicle removed %d, want 2", n)
	}
	if _, ok := c.Get("v10", jan); !ok {
		t.Fatal("other vehicles must stay cached")
	}
}

func BenchmarkLRUCache(b *testing.B) {
	c := NewLRUCache[core.Summary](1000, time.Hour)
	s := core.Summary{Count: 12}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("v|%d", i%100)
		if i%10 == 0 {
			c.Set(key, s)
		} else {
			c.Get(key)
		}
	}
}

func TestManagerStopWithoutStart(t *testing.T) {
	m := NewManager()
	m.Register(NewSummaryCache(1, time.Minute))

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked although cleanup never started")
	}
}
