package conc

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	pool := NewPool[int](2, WithName("squares"), WithExpiryDuration(time.Second))
	defer pool.Release()
	assert.Equal(t, 2, pool.Cap())

	futures := make([]*Future[int], 0, 10)
	for i := 0; i < 10; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			return i * i, nil
		}))
	}
	require.NoError(t, AwaitAll(futures...))
	for i, f := range futures {
		v, err := f.Await()
		assert.NoError(t, err)
		assert.Equal(t, i*i, v)
	}
}

func TestPoolSubmitError(t *testing.T) {
	pool := NewPool[struct{}](1)
	defer pool.Release()

	boom := errors.New("boom")
	f := pool.Submit(func() (struct{}, error) { return struct{}{}, boom })
	assert.ErrorIs(t, f.Err(), boom)
	assert.ErrorIs(t, AwaitAll(f), boom)
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	pool := NewPool[int](1)
	pool.Release()

	f := pool.Submit(func() (int, error) { return 1, nil })
	assert.Error(t, f.Err())
}

func TestPoolConcealPanic(t *testing.T) {
	pool := NewPool[int](1, WithName("teardown"), WithConcealPanic(true))
	defer pool.Release()

	f := pool.Submit(func() (int, error) { panic("device gone") })
	assert.Error(t, f.Err())

	// 池在 panic 之后仍可用。
	v, err := pool.Submit(func() (int, error) { return 7, nil }).Await()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
