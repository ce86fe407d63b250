package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpStoreSave, 10*time.Millisecond, nil)
	c.RecordTiming(OpStoreSave, 30*time.Millisecond, errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.StoreSave)
	assert.Equal(t, int64(2), snap.StoreSave.Count)
	assert.Equal(t, int64(1), snap.StoreSave.Errors)
	assert.Equal(t, int64(10), snap.StoreSave.MinTimeMs)
	assert.Equal(t, int64(30), snap.StoreSave.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.StoreSave.AvgTimeMs, 0.001)
	assert.Nil(t, snap.StoreSave.TotalInputTokens)
	assert.Nil(t, snap.StoreLoad, "untouched ops are omitted")
}

func TestCollector_RecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 100, 20, nil)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 50, 10, nil)

	snap := c.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalInputTokens)
	assert.Equal(t, int64(150), *snap.TotalInputTokens)
	assert.Equal(t, int64(30), *snap.TotalOutputTokens)
}

func TestCollector_Time(t *testing.T) {
	c := NewCollector()
	now := time.Unix(0, 0)
	c.now = func() time.Time {
		now = now.Add(5 * time.Millisecond)
		return now
	}

	want := errors.New("load failed")
	err := c.Time(OpStoreLoad, func() error { return want })
	assert.ErrorIs(t, err, want)

	snap := c.Snapshot().StoreLoad
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(5), snap.TotalTimeMs)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpStoreSave, time.Second, nil)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 1, 1, nil)
	called := false
	require.NoError(t, c.Time(OpStoreLoad, func() error { called = true; return nil }))
	assert.True(t, called)
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			c.RecordTiming(OpStoreSave, time.Millisecond, nil)
			_ = c.Snapshot()
		})
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().StoreSave.Count)
}
