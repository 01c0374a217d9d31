package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func TestLRUGetSetAndExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string, int](10, time.Minute).WithClock(clk.now)

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v, %v", v, ok)
	}

	clk.t = clk.t.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be removed on read, len = %d", c.Len())
	}
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be present")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
}

func TestLRUDeleteAndPurge(t *testing.T) {
	c := NewLRU[int, string](0, time.Hour)
	for i := 0; i < 100; i++ {
		c.Set(i, "v")
	}
	if c.Len() != 100 {
		t.Fatalf("unbounded cache len = %d", c.Len())
	}
	c.Delete(5)
	if _, ok := c.Get(5); ok {
		t.Fatal("deleted key still present")
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after purge = %d", c.Len())
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[string, int](10, time.Second).WithClock(clk.now)
	c.Set("a", 1)
	c.Set("b", 2)

	m := NewManager()
	m.Register("rates", c)

	if got := m.CleanNow()["rates"]; got != 0 {
		t.Fatalf("nothing should be expired yet, removed %d", got)
	}
	clk.t = clk.t.Add(time.Minute)
	if got := m.CleanNow()["rates"]; got != 2 {
		t.Fatalf("removed = %d, want 2", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx, 10*time.Millisecond)
	m.Start(ctx, 10*time.Millisecond) // second start is a no-op
	m.Stop()
	m.Stop()
}
