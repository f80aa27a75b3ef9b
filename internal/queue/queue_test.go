package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewCoercesCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{name: "zero", capacity: 0, want: 1},
		{name: "negative", capacity: -4, want: 1},
		{name: "positive", capacity: 8, want: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New[int](tt.capacity).Cap())
		})
	}
}

func TestFIFOOrder(t *testing.T) {
	ctx := context.Background()
	q := New[int](3)

	// Wrap around the ring several times.
	var got []int
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
		if i%2 == 1 {
			for j := 0; j < 2; j++ {
				v, err := q.Dequeue(ctx)
				require.NoError(t, err)
				got = append(got, v)
			}
		}
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.True(t, q.IsEmpty())
}

func TestFIFOConcurrent(t *testing.T) {
	ctx := context.Background()
	q := New[int](4)
	const n = 1000

	go func() {
		defer q.Close()
		for i := 0; i < n; i++ {
			if err := q.Enqueue(ctx, i); err != nil {
				return
			}
		}
	}()

	var got []int
	for {
		v, err := q.Dequeue(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}

	require.Len(t, got, n)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestEnqueueBlocksWhenFull(t *testing.T) {
	ctx := context.Background()
	q := New[string](1)
	require.NoError(t, q.Enqueue(ctx, "a"))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(ctx, "b")
	}()

	select {
	case <-done:
		t.Fatal("enqueue on a full queue returned early")
	case <-time.After(50 * time.Millisecond):
	}

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	require.NoError(t, <-done)
	assert.Equal(t, 1, q.Len())
}

func TestDequeueDrainsBeforeClosed(t *testing.T) {
	ctx := context.Background()
	q := New[int](4)
	require.NoError(t, q.Enqueue(ctx, 1))
	require.NoError(t, q.Enqueue(ctx, 2))
	q.Close()

	assert.ErrorIs(t, q.Enqueue(ctx, 3), ErrClosed)

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, q.Closed())
}

func TestCloseWakesBlockedReader(t *testing.T) {
	q := New[int](2)

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("reader was not woken by Close")
	}
}

func TestCloseWithError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("source failed")
	q := New[int](2)
	require.NoError(t, q.Enqueue(ctx, 7))

	q.CloseWithError(boom)
	q.Close() // second close keeps the first error

	v, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestContextCancelUnblocks(t *testing.T) {
	t.Run("dequeue", func(t *testing.T) {
		q := New[int](1)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			_, err := q.Dequeue(ctx)
			done <- err
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("dequeue ignored cancellation")
		}
	})

	t.Run("enqueue", func(t *testing.T) {
		q := New[int](1)
		require.NoError(t, q.Enqueue(context.Background(), 1))
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		err := q.Enqueue(ctx, 2)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, q.Len())
	})
}

func TestTryDequeue(t *testing.T) {
	q := New[int](2)

	_, ok := q.TryDequeue()
	assert.False(t, ok)

	require.NoError(t, q.Enqueue(context.Background(), 5))
	v, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, 5, v)
}

func TestManyWritersOneReader(t *testing.T) {
	ctx := context.Background()
	q := New[int](3)
	const writers, perWriter = 8, 200

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = q.Enqueue(ctx, w*perWriter+i)
			}
		}(w)
	}
	go func() {
		wg.Wait()
		q.Close()
	}()

	seen := make(map[int]bool)
	lastPerWriter := make(map[int]int)
	for {
		v, err := q.Dequeue(ctx)
		if errors.Is(err, ErrClosed) {
			break
		}
		require.NoError(t, err)
		assert.False(t, seen[v], "duplicate item %d", v)
		seen[v] = true

		w := v / perWriter
		if last, ok := lastPerWriter[w]; ok {
			assert.Greater(t, v, last, "writer %d items reordered", w)
		}
		lastPerWriter[w] = v
	}
	assert.Len(t, seen, writers*perWriter)
}
