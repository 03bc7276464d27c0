// Package logger provides slog handlers and helpers for readable,
// context-rich log output.
//
// Three handlers format records for humans:
//
//   - ColoredHandler: "time - name - LEVEL - message", with the level
//     coloured when writing to a terminal.
//   - StructuredHandler: aligned, pipe separated columns with the source
//     file, function and line.
//   - PerformanceHandler: millisecond timestamps, goroutine ids and the
//     time elapsed since the handler was created.
//
// GetLogger returns named loggers that stay silent until SetHandler installs
// a handler for their name or one of its dotted parents:
//
//	logger.SetHandler("app", logger.NewStructuredHandler(os.Stderr, nil))
//	log := logger.GetLogger("app.db")
//	log.Info("connected", "host", host)
//
// ContextualLogger attaches a LogContext (user, session, operation and free
// form metadata) to every record, scoped through context.Context.
package logger
