// Copyright (C) 2019-2020 Zilliz. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License
// is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express
// or implied. See the License for the specific language governing permissions and limitations under the License.

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

func TestDoSuccessAfterFailures(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Do(ctx, func() error {
		n++
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	}, Sleep(time.Millisecond))
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestDoAttempts(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Do(ctx, func() error {
		n++
		return errors.New("always")
	}, Attempts(4), Sleep(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 4, n)
}

func TestDoUnrecoverable(t *testing.T) {
	ctx := context.Background()
	n := 0
	cause := errors.New("fatal")
	err := Do(ctx, func() error {
		n++
		return Unrecoverable(cause)
	}, Sleep(time.Millisecond))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsRecoverable(err))
	assert.Equal(t, 1, n)
}

func TestDoRetryErr(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Do(ctx, func() error {
		n++
		return errors.New("no retry")
	}, Sleep(time.Millisecond), RetryErr(func(error) bool { return false }))
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestDoRetryOnlyRetryableErr(t *testing.T) {
	ctx := context.Background()
	n := 0
	err := Do(ctx, func() error {
		n++
		if n < 3 {
			return merr.WrapErrIoFailed("/dev/uinput", errors.New("EBUSY"))
		}
		return errors.New("permission denied")
	}, Sleep(time.Millisecond), MaxSleepTime(2*time.Millisecond), RetryErr(merr.IsRetryableErr))
	assert.EqualError(t, err, "permission denied")
	assert.Equal(t, 3, n)
}

func TestMaxSleepTimeNeverBelowSleep(t *testing.T) {
	c := newDefaultConfig()
	Sleep(10 * time.Millisecond)(c)
	MaxSleepTime(time.Millisecond)(c)
	assert.Equal(t, 20*time.Millisecond, c.maxSleepTime)

	MaxSleepTime(time.Second)(c)
	assert.Equal(t, time.Second, c.maxSleepTime)
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	last := errors.New("last")
	err = Do(ctx, func() error { return last }, Attempts(0), Sleep(5*time.Millisecond))
	assert.ErrorIs(t, err, last)
}

func TestOptions(t *testing.T) {
	c := newDefaultConfig()
	Sleep(5 * time.Second)(c)
	assert.Equal(t, 10*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Second)(c)
	assert.Equal(t, 10*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Minute)(c)
	assert.Equal(t, time.Minute, c.maxSleepTime)
}
