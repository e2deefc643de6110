package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-lag-etl/internal/domain"
	"github.com/couchcryptid/hydro-lag-etl/internal/observability"
)

// --- mock for cache tests ---

type countingSource struct {
	calls int
	table domain.RawTable
	err   error
}

func (m *countingSource) Extract(context.Context) (domain.RawTable, error) {
	m.calls++
	return m.table, m.err
}

func table(name string) domain.RawTable {
	return domain.RawTable{Source: name, Lines: [][]string{{"Data", "Medicao"}, {"01/05/2024 00:00", "1,0 m"}}}
}

func newTestCache(ttl time.Duration) (*Cache, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC))
	return New(10, ttl, clock, observability.NewMetricsForTesting()), clock
}

// --- CachedSource tests ---

func TestCachedSource_Hit(t *testing.T) {
	c, _ := newTestCache(time.Hour)
	inner := &countingSource{table: table("a")}
	src := c.Wrap("inmet:A801:2024", inner, false)

	t1, err := src.Extract(context.Background())
	require.NoError(t, err)
	t2, err := src.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, t1, t2)
	assert.Equal(t, 1, inner.calls, "should only call inner once")
}

func TestCachedSource_Expiry(t *testing.T) {
	c, clock := newTestCache(time.Hour)
	inner := &countingSource{table: table("a")}
	src := c.Wrap("inmet:A801:2025", inner, false)

	_, _ = src.Extract(context.Background())
	clock.Advance(59 * time.Minute)
	_, _ = src.Extract(context.Background())
	assert.Equal(t, 1, inner.calls)

	clock.Advance(time.Minute)
	_, _ = src.Extract(context.Background())
	assert.Equal(t, 2, inner.calls)
}

func TestCachedSource_PermanentIgnoresTTL(t *testing.T) {
	c, clock := newTestCache(time.Hour)
	inner := &countingSource{table: table("a")}
	src := c.Wrap("inmet:A801:2024", inner, true)

	_, _ = src.Extract(context.Background())
	clock.Advance(48 * time.Hour)
	_, _ = src.Extract(context.Background())

	assert.Equal(t, 1, inner.calls)
}

func TestCachedSource_ErrorsAndEmptyNotCached(t *testing.T) {
	c, _ := newTestCache(0)

	failing := &countingSource{err: errors.New("boom")}
	src := c.Wrap("a", failing, true)
	_, err := src.Extract(context.Background())
	require.Error(t, err)
	_, _ = src.Extract(context.Background())
	assert.Equal(t, 2, failing.calls)

	empty := &countingSource{table: domain.RawTable{Lines: [][]string{{"Data"}}}}
	src = c.Wrap("b", empty, true)
	_, _ = src.Extract(context.Background())
	_, _ = src.Extract(context.Background())
	assert.Equal(t, 2, empty.calls)
}

func TestCachedSource_DifferentKeysMiss(t *testing.T) {
	c, _ := newTestCache(0)
	inner := &countingSource{table: table("a")}

	_, _ = c.Wrap("2024", inner, true).Extract(context.Background())
	_, _ = c.Wrap("2025", inner, true).Extract(context.Background())

	assert.Equal(t, 2, inner.calls)
}

// --- LRU cache unit tests ---

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)
	now := time.Now()

	c.put("a", table("A"), time.Time{})
	c.put("b", table("B"), time.Time{})

	result, ok := c.get("a", now)
	assert.True(t, ok)
	assert.Equal(t, "A", result.Source)

	_, ok = c.get("missing", now)
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)
	now := time.Now()

	c.put("a", table("A"), time.Time{})
	c.put("b", table("B"), time.Time{})
	c.put("c", table("C"), time.Time{}) // evicts "a"

	_, ok := c.get("a", now)
	assert.False(t, ok, "a should have been evicted")

	result, ok := c.get("c", now)
	assert.True(t, ok)
	assert.Equal(t, "C", result.Source)
	assert.Equal(t, 2, c.size())
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)
	now := time.Now()

	c.put("a", table("A"), time.Time{})
	c.put("b", table("B"), time.Time{})
	c.get("a", now)
	c.put("c", table("C"), time.Time{})

	_, ok := c.get("a", now)
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b", now)
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_ExpiredEntryRemoved(t *testing.T) {
	c := newLRUCache(2)
	now := time.Now()

	c.put("a", table("A"), now.Add(time.Second))

	_, ok := c.get("a", now.Add(time.Second))
	assert.False(t, ok)
	assert.Zero(t, c.size())
}
