package application

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	zlog "github.com/ItzDerock/virtual-gamepads/pkg/log"
)

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on GAMEPAD_LOG_* env vars.
//
//   - GAMEPAD_LOG_ENABLE: "0"/"false" discards all output (default true).
//   - GAMEPAD_LOG_LEVEL: log level (default "info").
//   - GAMEPAD_LOG_STDOUT: whether to log to stdout (default true).
//   - GAMEPAD_LOG_FILE_DIR: log directory.
//   - GAMEPAD_LOG_FILE: log file name (empty means no file).
//   - GAMEPAD_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := zlog.GetenvBool("GAMEPAD_LOG_ENABLE", true)

	cfg := &zlog.Config{
		Level:               zlog.GetenvDefault("GAMEPAD_LOG_LEVEL", "info"),
		Format:              zlog.GetenvDefault("GAMEPAD_LOG_FORMAT", "text"),
		Stdout:              zlog.GetenvBool("GAMEPAD_LOG_STDOUT", true),
		DisableErrorVerbose: true,
		File: zlog.FileLogConfig{
			RootPath: zlog.GetenvDefault("GAMEPAD_LOG_FILE_DIR", ""),
			Filename: zlog.GetenvDefault("GAMEPAD_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	zlog.ReplaceGlobals(logger, props)
	zlog.Debug("global logger initialized",
		zap.Stringer("level", zlog.GetLevel()),
		zap.String("format", cfg.Format),
		zap.Bool("stdout", cfg.Stdout))
	return nil
}

// initModuleLoggersFromConfig creates named loggers from the "logging" config section.
//
// Known modules are "acceptor" and "reaper". Example:
//
//	logging:
//	  reaper:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: reaper.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.viper == nil {
		return nil
	}

	raw := make(map[string]zlog.Config)
	if err := a.viper.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		cfgCopy := lc
		logger, _, err := zlog.InitLogger(&cfgCopy)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger.With(zlog.FieldModule(name))}
	}
	return nil
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return zlog.With(zlog.FieldModule(name))
}

// moduleContext binds the named logger to ctx so that zlog.Ctx picks it up.
// Modules without a dedicated logger inherit ctx's logger tagged with the module name.
func (a *Application) moduleContext(ctx context.Context, name string) context.Context {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return context.WithValue(ctx, zlog.CtxLogKey, lg)
	}
	return zlog.WithModule(ctx, name)
}
