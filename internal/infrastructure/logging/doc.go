// Package logging builds the slog logger shared by the item service.
//
// Every entry carries the service name and build version. The format is
// JSON unless logging.format is "text"; logging.output selects stdout,
// stderr or discard:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"
//	  output: "stdout"
//
// Subsystems take a child logger tagged with their name:
//
//	logger := logging.New(cfg.Logging, version)
//	sched := scheduler.New(scheduler.WithLogger(logger.Component("scheduler")))
//
// The item, scheduler, scene and plugin packages declare their own
// four-method Logger interface; *Logger satisfies all of them, so those
// packages never import this one.
//
// Item values may be logged. Credentials from the config never are.
package logging
