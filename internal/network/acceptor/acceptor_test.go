package acceptor

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/internal/json"
	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/router"
	"github.com/ItzDerock/virtual-gamepads/internal/network/serializer"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/merr"
)

type AcceptorSuite struct {
	suite.Suite

	factory  *device.MemoryFactory
	manager  *session.BaseSessionManager
	acceptor *BaseAcceptor
	server   *httptest.Server
}

func (s *AcceptorSuite) SetupTest() {
	s.setup(2)
}

func (s *AcceptorSuite) setup(maxSessions int) {
	if s.server != nil {
		s.server.Close()
	}
	s.factory = device.NewMemoryFactory()
	m, err := session.NewBaseSessionManager(s.factory, maxSessions)
	s.Require().NoError(err)
	s.manager = m

	c, err := codec.New(codec.Options{Serializer: serializer.JSONSerializer{}})
	s.Require().NoError(err)

	a, err := NewBaseAcceptor(Config{
		Codec:    c,
		Router:   router.NewGamepadRouter(),
		Sessions: m,
	})
	s.Require().NoError(err)
	s.acceptor = a

	mux := http.NewServeMux()
	mux.Handle(a.Path(), a)
	s.server = httptest.NewServer(mux)
}

func (s *AcceptorSuite) TearDownTest() {
	_ = s.acceptor.Close()
	s.server.Close()
	s.server = nil
}

func (s *AcceptorSuite) dial(clientID string) *websocket.Conn {
	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	if clientID != "" {
		u += "?client_id=" + url.QueryEscape(clientID)
	}
	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	s.Require().NoError(err)
	return ws
}

func (s *AcceptorSuite) read(ws *websocket.Conn) map[string]string {
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	s.Require().NoError(err)
	out := map[string]string{}
	s.Require().NoError(json.Unmarshal(data, &out))
	return out
}

func (s *AcceptorSuite) write(ws *websocket.Conn, raw string) {
	s.Require().NoError(ws.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (s *AcceptorSuite) ping(ws *websocket.Conn) {
	s.write(ws, `{"kind":"ping"}`)
	s.Equal(map[string]string{"kind": "pong"}, s.read(ws))
}

func (s *AcceptorSuite) expectClosed(ws *websocket.Conn) {
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	s.Error(err)
}

func (s *AcceptorSuite) TestNewValidatesConfig() {
	_, err := NewBaseAcceptor(Config{})
	s.ErrorIs(err, merr.ErrParameterMissing)
	s.Equal("/ws", s.acceptor.Path())
}

func (s *AcceptorSuite) TestPingPongTouchesSession() {
	id := uuid.New()
	ws := s.dial(id.String())
	defer ws.Close()

	s.ping(ws)
	sess, ok := s.manager.Get(id)
	s.Require().True(ok)
	first := sess.LastHeartbeat()

	time.Sleep(5 * time.Millisecond)
	s.ping(ws)
	s.True(sess.LastHeartbeat().After(first))
}

func (s *AcceptorSuite) TestInvalidIdentity() {
	for _, raw := range []string{"not-a-uuid", ""} {
		ws := s.dial(raw)
		s.Equal(map[string]string{"error": codec.ErrMsgInvalidClientID}, s.read(ws))
		s.expectClosed(ws)
		ws.Close()
	}
	s.Equal(0, s.manager.Count())
	s.Equal(0, s.factory.Created())
}

func (s *AcceptorSuite) TestCapacityAndReconnect() {
	a, b := uuid.New(), uuid.New()
	wsA := s.dial(a.String())
	s.ping(wsA)
	wsB := s.dial(b.String())
	s.ping(wsB)

	wsC := s.dial(uuid.NewString())
	s.Equal(map[string]string{"error": codec.ErrMsgLimitReached}, s.read(wsC))
	s.expectClosed(wsC)
	wsC.Close()

	// 已有标识在满容量时仍可重连。
	wsA.Close()
	wsA2 := s.dial(a.String())
	defer wsA2.Close()
	s.ping(wsA2)
	s.ping(wsB)
	wsB.Close()

	s.Equal(2, s.manager.Count())
	s.Equal(2, s.factory.Created())
}

func (s *AcceptorSuite) TestReconnectKeepsDevice() {
	id := uuid.New()
	ws := s.dial(id.String())
	s.ping(ws)
	sess, _ := s.manager.Get(id)
	serial := sess.DeviceSerial()
	ws.Close()

	ws = s.dial(id.String())
	defer ws.Close()
	s.ping(ws)
	again, _ := s.manager.Get(id)
	s.Equal(serial, again.DeviceSerial())
	s.Equal(1, s.factory.Created())
}

func (s *AcceptorSuite) TestEmissionOrderAndGarbage() {
	ws := s.dial(uuid.NewString())
	defer ws.Close()

	s.write(ws, `{"kind":"btn","code":304,"value":1}`)
	s.write(ws, `garbage`)
	s.write(ws, `{"kind":"rumble"}`)
	s.write(ws, `{"kind":"axis","code":0,"value":-1200}`)
	s.Require().NoError(ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2}))
	s.write(ws, `{"kind":"btn","code":304,"value":0}`)
	s.ping(ws)

	s.Equal([]device.Event{
		{Type: device.EvKey, Code: 304, Value: 1},
		{Type: device.EvAbs, Code: 0, Value: -1200},
		{Type: device.EvKey, Code: 304, Value: 0},
	}, s.factory.Devices()[0].Events())
}

func (s *AcceptorSuite) TestEmitFailureKeepsConnection() {
	ws := s.dial(uuid.NewString())
	defer ws.Close()
	s.ping(ws)

	s.factory.Devices()[0].FailEmit(errors.New("EIO"))
	s.write(ws, `{"kind":"btn","code":304,"value":1}`)
	s.ping(ws)
	s.Equal(1, s.manager.Count())
}

func (s *AcceptorSuite) TestSessionExpiredWhileConnected() {
	ws := s.dial(uuid.NewString())
	defer ws.Close()
	s.ping(ws)

	s.manager.RemoveIf(func(*session.Session) bool { return true })
	s.write(ws, `{"kind":"axis","code":1,"value":5}`)
	s.Equal(map[string]string{"error": codec.ErrMsgSessionExpired}, s.read(ws))
	s.expectClosed(ws)
}

func (s *AcceptorSuite) TestDeviceCreateFailure() {
	s.factory.FailCreate(errors.New("permission denied"))
	ws := s.dial(uuid.NewString())
	defer ws.Close()

	s.Equal(map[string]string{"error": codec.ErrMsgDeviceCreate}, s.read(ws))
	s.expectClosed(ws)
	s.Equal(0, s.manager.Count())
}

func (s *AcceptorSuite) TestOversizeFrameEndsConnection() {
	id := uuid.New()
	ws := s.dial(id.String())
	defer ws.Close()
	s.ping(ws)

	s.write(ws, `{"kind":"ping","pad":"`+strings.Repeat("x", 2*int(defaultConfig().ReadLimit))+`"}`)
	s.expectClosed(ws)

	// 超长帧只结束连接，会话与设备保留。
	s.Equal(1, s.manager.Count())
	again := s.dial(id.String())
	defer again.Close()
	s.ping(again)
	s.Equal(1, s.factory.Created())
}

func (s *AcceptorSuite) TestCloseDisconnectsClients() {
	id := uuid.New()
	ws := s.dial(id.String())
	defer ws.Close()
	s.ping(ws)
	s.Eventually(func() bool { return s.acceptor.Connections() == 1 }, time.Second, 5*time.Millisecond)

	s.NoError(s.acceptor.Close())
	s.expectClosed(ws)
	s.Eventually(func() bool { return s.acceptor.Connections() == 0 }, time.Second, 5*time.Millisecond)

	// 会话保留，等待 Reaper 回收。
	_, ok := s.manager.Get(id)
	s.True(ok)

	u := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?client_id=" + id.String()
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	s.ErrorIs(err, websocket.ErrBadHandshake)
	if resp != nil {
		s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	}

	rec := httptest.NewRecorder()
	s.acceptor.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?client_id="+id.String(), nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(rec.Body.String(), merr.ErrServiceUnavailable.Error())
}

func TestAcceptor(t *testing.T) {
	suite.Run(t, new(AcceptorSuite))
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, canTransit(StateConnecting, StateActive))
	assert.True(t, canTransit(StateConnecting, StateClosed))
	assert.True(t, canTransit(StateActive, StateClosed))
	assert.False(t, canTransit(StateActive, StateConnecting))
	assert.False(t, canTransit(StateClosed, StateActive))
	assert.False(t, canTransit(StateClosed, StateClosed))
	assert.Equal(t, "active", StateActive.String())
}
