// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"fmt"

	ants "github.com/panjf2000/ants/v2"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

// Pool is a wrapper of ants.Pool whose tasks report a typed result through Future.
type Pool[T any] struct {
	inner *ants.Pool
	opt   *poolOption
}

// NewPool returns a goroutine pool.
// cap: the number of workers.
// This panic if provide any invalid option.
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	opt := defaultPoolOption()
	for _, o := range opts {
		o(opt)
	}

	pool, err := ants.NewPool(cap, opt.antsOptions()...)
	if err != nil {
		panic(err)
	}

	return &Pool[T]{
		inner: pool,
		opt:   opt,
	}
}

// Submit a task into the pool,
// executes it asynchronously.
// This will block if the pool has finite workers and no idle worker.
// NOTE: As now golang doesn't support the member method being generic, we use Future[any]
func (pool *Pool[T]) Submit(method func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := pool.inner.Submit(func() {
		defer close(future.ch)
		defer func() {
			if x := recover(); x != nil {
				future.err = merr.WrapErrServiceInternal(fmt.Sprintf("panicked with error: %v", x))
				panic(x) // throw panic out
			}
		}()
		res, err := method()
		if err != nil {
			future.err = err
		} else {
			future.value = res
		}
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}

	return future
}

// Cap returns the capacity of the pool.
func (pool *Pool[T]) Cap() int {
	return pool.inner.Cap()
}

// Running returns the number of running workers.
func (pool *Pool[T]) Running() int {
	return pool.inner.Running()
}

// Free returns the number of free workers.
func (pool *Pool[T]) Free() int {
	return pool.inner.Free()
}

// Release closes the pool; submitted tasks keep running to completion.
func (pool *Pool[T]) Release() {
	pool.inner.Release()
}

// Future is a result type of async-await style.
// It contains the result (or error) of an async task.
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		ch: make(chan struct{}),
	}
}

// Await returns the result and error of the async task,
// blocks until the task finishes.
func (future *Future[T]) Await() (T, error) {
	<-future.ch
	return future.value, future.err
}

// Err returns the error of the async task, blocks until the task finishes.
func (future *Future[T]) Err() error {
	<-future.ch
	return future.err
}

// Inner returns a channel which is closed once the task finishes.
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

// AwaitAll awaits all futures, returns the first error encountered.
func AwaitAll[T any](futures ...*Future[T]) error {
	for i := range futures {
		if _, err := futures[i].Await(); err != nil {
			return err
		}
	}
	return nil
}
