// Package logger provides a small leveled logger that is safe for concurrent use.
//
// Each entry carries a timestamp, a level, an optional scope and a message.
// The scope names where the line came from, for example "pool", "worker-3"
// or a connection id.
//
// # Basic Usage
//
//	logger.Info("", "server listening on %s", addr)
//	logger.Warn("worker-2", "job panicked: %v", r)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("pool", "queue length %d", n)
//
// # Log Levels
//
// Messages below the configured level are dropped:
//   - LevelDebug: all messages
//   - LevelInfo: Info, Warn, Error
//   - LevelWarn: Warn, Error
//   - LevelError: Error only
//
// ParseLevel converts the names used in config files and flags.
package logger
