package network

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	err := Classify(context.Canceled, ErrClosed)

	// 两套 errors.Is 都必须能识别类别。
	assert.True(t, stderrors.Is(err, ErrClosed))
	assert.True(t, errors.Is(err, ErrClosed))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NotErrorIs(t, err, ErrRecvFailed)
	assert.Contains(t, err.Error(), context.Canceled.Error())

	for _, kind := range []error{ErrHandshakeFailed, ErrRecvFailed, ErrSendFailed} {
		assert.ErrorIs(t, Classify(errors.New("io"), kind), kind)
	}

	assert.Equal(t, ErrSendFailed, Classify(nil, ErrSendFailed))
}
