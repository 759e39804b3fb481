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

package log

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type bufferSyncer struct {
	bytes.Buffer
}

func (b *bufferSyncer) Sync() error { return nil }

func newBufferLogger(t *testing.T, format string) (*zap.Logger, *bufferSyncer) {
	buf := &bufferSyncer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "debug", Format: format, DisableCaller: true}, buf)
	require.NoError(t, err)
	return lg, buf
}

func TestInitLoggerWithWriteSyncer_Text(t *testing.T) {
	lg, buf := newBufferLogger(t, "text")
	lg.Info("hello", zap.String("k", "v"))

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, `"k": "v"`)
}

func TestInitLoggerWithWriteSyncer_JSON(t *testing.T) {
	lg, buf := newBufferLogger(t, "json")
	lg.With(zap.Int("n", 1)).Warn("json line")

	out := buf.String()
	assert.Contains(t, out, `"msg":"json line"`)
	assert.Contains(t, out, `"n":1`)
}

func TestInitLoggerWithWriteSyncer_BadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, &bufferSyncer{})
	assert.Error(t, err)
}

func TestInitLogger_File(t *testing.T) {
	dir := t.TempDir()
	lg, props, err := InitLogger(&Config{
		Level: "warn",
		File:  FileLogConfig{RootPath: dir, Filename: "gamepad.log"},
	})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, props.Level.Level())

	lg.Info("dropped")
	lg.Warn("kept")
	require.NoError(t, lg.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "gamepad.log"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(data), "dropped"))
	assert.True(t, strings.Contains(string(data), "kept"))
}

func TestInitLogger_DirectoryAsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	_, _, err := InitLogger(&Config{File: FileLogConfig{RootPath: dir, Filename: "sub"}})
	assert.Error(t, err)
}

func TestCtxLogger(t *testing.T) {
	lg, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	oldL, oldP := L(), _globalP.Load().(*ZapProperties)
	ReplaceGlobals(lg, props)
	defer ReplaceGlobals(oldL, oldP)

	ctx := WithModule(context.Background(), "session")
	assert.NotSame(t, Ctx(context.Background()), Ctx(ctx))
	assert.Same(t, Ctx(ctx), Ctx(ctx))
	Ctx(ctx).Info("with module")

	intentCtx, span := NewIntentContext(ctx, "acceptor", "connect")
	defer span.End()
	assert.NotNil(t, Ctx(intentCtx))
}

type countingLimiter struct {
	allow int
}

func (c *countingLimiter) CheckCredit(float64) bool {
	if c.allow <= 0 {
		return false
	}
	c.allow--
	return true
}

func TestRatedWarn(t *testing.T) {
	old := _globalR.Load()
	defer _globalR.Store(old)

	_globalR.Store(&countingLimiter{allow: 1})
	assert.True(t, RatedWarn(1, "first"))
	assert.False(t, RatedWarn(1, "second"))
}

func TestMLoggerRateGroup(t *testing.T) {
	l := With(zap.String("k", "v")).WithRateGroup("test.group", 0.0001, 1)
	assert.True(t, l.RatedInfo(1, "first"))
	assert.False(t, l.RatedWarn(1, "second"))

	// 子 Logger 继承限流分组。
	child := l.With(zap.Int("n", 1))
	assert.False(t, child.RatedWarn(1, "third"))
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	l := With(FieldComponent("reaper"))
	b.SetLogger(l)
	assert.Same(t, l, b.Logger())
}

func TestBinderBindCtx(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	ctx := WithModule(context.Background(), "acceptor")
	b.BindCtx(ctx)
	assert.Same(t, Ctx(ctx), b.Logger())

	l := With()
	b.SetLogger(l)
	assert.Same(t, l, b.Logger())
}
