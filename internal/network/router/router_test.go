package router

import (
	"context"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []any
	err  error
}

func (s *recordingSender) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, v)
	return nil
}

type RouterSuite struct {
	suite.Suite

	factory *device.MemoryFactory
	manager *session.BaseSessionManager
	sess    *session.Session
	sender  *recordingSender
	router  Router
}

func (s *RouterSuite) SetupTest() {
	s.factory = device.NewMemoryFactory()
	m, err := session.NewBaseSessionManager(s.factory, 2)
	s.Require().NoError(err)
	s.manager = m
	s.sess, _, err = m.GetOrCreate(context.Background(), uuid.New())
	s.Require().NoError(err)
	s.sender = &recordingSender{}
	s.router = NewGamepadRouter()
}

func (s *RouterSuite) handle(msg codec.Message) error {
	return s.router.Handle(context.Background(), s.sender, s.sess, &msg)
}

func (s *RouterSuite) TestRegisterValidation() {
	r := New()
	noop := func(context.Context, Sender, *session.Session, *codec.Message) error { return nil }

	s.ErrorIs(r.Register("", noop), merr.ErrParameterMissing)
	s.ErrorIs(r.Register(codec.KindPing, nil), merr.ErrParameterInvalid)
	s.NoError(r.Register(codec.KindPing, noop))
	s.ErrorIs(r.Register(codec.KindPing, noop), merr.ErrParameterInvalid)
}

func (s *RouterSuite) TestUnknownKind() {
	err := s.handle(codec.Message{Kind: codec.KindPong})
	s.ErrorIs(err, merr.ErrProtocolUnknownKind)

	err = s.router.Handle(context.Background(), s.sender, nil, &codec.Message{Kind: codec.KindPing})
	s.ErrorIs(err, merr.ErrParameterMissing)
}

func (s *RouterSuite) TestPingRepliesAndTouches() {
	before := s.sess.LastHeartbeat()
	s.NoError(s.handle(codec.Message{Kind: codec.KindPing}))
	s.Equal([]any{codec.Pong()}, s.sender.sent)
	s.False(s.sess.LastHeartbeat().Before(before))
}

func (s *RouterSuite) TestPingSendFailure() {
	s.sender.err = errors.New("broken pipe")
	s.Error(s.handle(codec.Message{Kind: codec.KindPing}))
}

func (s *RouterSuite) TestEmitOrder() {
	msgs := []codec.Message{
		{Kind: codec.KindButton, Code: device.BtnSouth, Value: 1},
		{Kind: codec.KindAxis, Code: device.AbsX, Value: 100},
		{Kind: codec.KindAxis, Code: device.AbsY, Value: -100},
		{Kind: codec.KindButton, Code: device.BtnSouth, Value: 0},
	}
	for _, msg := range msgs {
		s.Require().NoError(s.handle(msg))
	}

	s.Equal([]device.Event{
		{Type: device.EvKey, Code: device.BtnSouth, Value: 1},
		{Type: device.EvAbs, Code: device.AbsX, Value: 100},
		{Type: device.EvAbs, Code: device.AbsY, Value: -100},
		{Type: device.EvKey, Code: device.BtnSouth, Value: 0},
	}, s.factory.Devices()[0].Events())
	s.Empty(s.sender.sent)
}

func (s *RouterSuite) TestEmitFailureIsSwallowed() {
	s.factory.Devices()[0].FailEmit(errors.New("EIO"))
	s.NoError(s.handle(codec.Message{Kind: codec.KindButton, Code: device.BtnStart, Value: 1}))
	s.NoError(s.handle(codec.Message{Kind: codec.KindAxis, Code: device.AbsX, Value: 1}))
	s.Equal(1, s.manager.Count())
}

func (s *RouterSuite) TestExpiredSessionPropagates() {
	s.manager.RemoveIf(func(*session.Session) bool { return true })

	s.ErrorIs(s.handle(codec.Message{Kind: codec.KindButton, Code: device.BtnStart, Value: 1}), merr.ErrSessionExpired)
	s.ErrorIs(s.handle(codec.Message{Kind: codec.KindPing}), merr.ErrSessionExpired)
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}
