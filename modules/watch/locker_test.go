package watch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutexSerializesKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, "s1:c1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInside)
	assert.Zero(t, m.size())
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := m.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := m.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
	unlockB()

	assert.Equal(t, 1, m.size())
}

func TestKeyedMutexHonoursContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.Zero(t, m.size())
}

func newRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLocker(client)
	l.wait = 100 * time.Millisecond
	l.poll = 5 * time.Millisecond
	return l, mr
}

func TestRedisLocker(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "s1:c1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:watch:s1:c1"))

	_, err = l.Lock(ctx, "s1:c1")
	assert.ErrorIs(t, err, ErrLockTimeout)

	other, err := l.Lock(ctx, "s1:c2")
	require.NoError(t, err)
	other()

	unlock()
	assert.False(t, mr.Exists("lock:watch:s1:c1"))

	again, err := l.Lock(ctx, "s1:c1")
	require.NoError(t, err)
	again()
}

func TestRedisLockerReleaseKeepsForeignLock(t *testing.T) {
	l, mr := newRedisLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	// our lease expired and someone else took the key
	mr.FastForward(10 * time.Second)
	require.NoError(t, mr.Set("lock:watch:k", "someone-else"))

	unlock()
	got, err := mr.Get("lock:watch:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	l, _ := newRedisLocker(t)
	l.wait = time.Second
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "k")
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	start := time.Now()
	second, err := l.Lock(ctx, "k")
	require.NoError(t, err)
	second()
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestTrackerWithRedisLocker(t *testing.T) {
	f := newFixture(t)
	l, _ := newRedisLocker(t)
	l.wait = 5 * time.Second
	ctx := context.Background()
	s := f.student(t, "alice")
	c := f.course(t, f.playlist(t, "go"), "intro", 600)

	tr := NewTracker(f.engine, f.students, f.courses, l)
	_, err := tr.StartWatch(ctx, s.ID, c.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.UpdateProgress(ctx, s.ID, c.ID, 300, 600)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, _, err := tr.GetCourseProgress(ctx, s.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, p.LastPosition)
	assert.GreaterOrEqual(t, p.WatchDuration, 300.0)
	assert.InDelta(t, p.WatchDuration/3600, f.hours(t, s.ID), 1e-9)
}
