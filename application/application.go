package application

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ItzDerock/virtual-gamepads/internal/device"
	"github.com/ItzDerock/virtual-gamepads/internal/network/acceptor"
	"github.com/ItzDerock/virtual-gamepads/internal/network/codec"
	"github.com/ItzDerock/virtual-gamepads/internal/network/router"
	"github.com/ItzDerock/virtual-gamepads/internal/network/serializer"
	"github.com/ItzDerock/virtual-gamepads/internal/network/session"
	zlog "github.com/ItzDerock/virtual-gamepads/pkg/log"
	"github.com/ItzDerock/virtual-gamepads/pkg/metrics"
	"github.com/ItzDerock/virtual-gamepads/pkg/util/logutil"
	zviper "github.com/ItzDerock/virtual-gamepads/pkg/util/viper"
)

// Application is the runtime container of the gamepad server.
// It owns configuration, logging and the lifecycle of the registry,
// reaper and HTTP server.
type Application struct {
	args    []string
	factory device.Factory

	cfg     *Config
	viper   *zviper.Config
	loggers map[string]*zlog.MLogger

	sessions session.SessionManager
	reaper   *session.Reaper
	acceptor acceptor.Acceptor
	server   *http.Server

	addrMu sync.Mutex
	addr   net.Addr
	ready  chan struct{}
}

// Option configures an Application.
type Option func(a *Application)

// WithArgs overrides the command-line arguments (default os.Args[1:]).
func WithArgs(args []string) Option {
	return func(a *Application) {
		a.args = args
	}
}

// WithDeviceFactory overrides the device backend selected by configuration.
func WithDeviceFactory(f device.Factory) Option {
	return func(a *Application) {
		a.factory = f
	}
}

// New creates a new Application instance.
func New(opts ...Option) *Application {
	a := &Application{
		args:  os.Args[1:],
		ready: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run loads configuration, starts the server and the reaper and blocks
// until ctx is canceled or one of them fails. On return all connections are
// closed and every virtual device is destroyed.
func (a *Application) Run(ctx context.Context) error {
	cfg, v, err := loadConfig(a.args)
	if err != nil {
		return err
	}
	a.cfg, a.viper = cfg, v

	if err := a.initLogging(); err != nil {
		return err
	}
	defer func() {
		_ = zlog.Sync()
	}()

	if err := a.build(); err != nil {
		zlog.Error("failed to build application", zap.Error(err))
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.Server.Addr)
	}
	a.setAddr(ln.Addr())
	zlog.Info("gamepad server listening",
		zap.Stringer("addr", ln.Addr()),
		zap.String("path", cfg.Server.Path),
		zap.String("device", a.factory.Backend()),
		zap.Int("maxSessions", cfg.Session.MaxSessions),
		zap.Duration("heartbeatTimeout", cfg.Session.HeartbeatTimeout),
		zap.Duration("checkInterval", cfg.Session.CheckInterval))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.reaper.Run(a.moduleContext(gctx, "reaper"))
	})
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})

	runErr := g.Wait()

	a.sessions.Range(func(sess *session.Session) bool {
		zlog.Info("destroying session on shutdown",
			zlog.FieldClientID(sess.Identity()),
			zlog.FieldDevice(sess.DeviceSerial()),
			zap.Time("lastHeartbeat", sess.LastHeartbeat()))
		return true
	})
	if err := a.reaper.CloseAll(); err != nil {
		zlog.Warn("failed to destroy some virtual devices", zap.Error(err))
	}
	a.reaper.Stop()
	zlog.Info("gamepad server stopped")
	return runErr
}

func (a *Application) build() error {
	if a.factory == nil {
		f, err := device.NewFactory(a.cfg.Device)
		if err != nil {
			return err
		}
		a.factory = f
	}

	sessions, err := session.NewBaseSessionManager(a.factory, a.cfg.Session.MaxSessions)
	if err != nil {
		return err
	}
	a.sessions = sessions

	a.reaper, err = session.NewReaper(sessions, a.cfg.Session, nil)
	if err != nil {
		return err
	}

	ser, err := serializer.New(a.cfg.Server.Serializer)
	if err != nil {
		return err
	}
	c, err := codec.New(codec.Options{Serializer: ser})
	if err != nil {
		return err
	}
	a.acceptor, err = acceptor.NewBaseAcceptor(acceptor.Config{
		Path:         a.cfg.Server.Path,
		ReadLimit:    a.cfg.Server.ReadLimit,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		Codec:        c,
		Router:       router.NewGamepadRouter(),
		Sessions:     sessions,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(a.acceptor.Path(), a.acceptor)
	if a.cfg.Metrics.Enabled {
		metrics.Register(prometheus.DefaultRegisterer)
		mux.Handle(a.cfg.Metrics.Path, metrics.Handler(metrics.GetRegisterer()))
	}
	if dir := a.cfg.Server.StaticDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}

	a.server = &http.Server{
		Handler:           logutil.TraceLoggerMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return a.moduleContext(context.Background(), "acceptor")
		},
	}
	return nil
}

// shutdown stops accepting connections and closes the active ones.
// Sessions are left to Run, which destroys their devices afterwards.
func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	zlog.Info("shutting down gamepad server")
	_ = a.acceptor.Close()
	if err := a.server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}

func (a *Application) setAddr(addr net.Addr) {
	a.addrMu.Lock()
	defer a.addrMu.Unlock()
	a.addr = addr
	close(a.ready)
}

// Ready is closed once the listener is bound.
func (a *Application) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listener address, nil before Ready.
func (a *Application) Addr() net.Addr {
	a.addrMu.Lock()
	defer a.addrMu.Unlock()
	return a.addr
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *Config {
	return a.cfg
}

// Sessions returns the session registry, nil before Run builds it.
func (a *Application) Sessions() session.SessionManager {
	return a.sessions
}
