// Package logging provides structured logging for Boss Hunter.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for unattended runs (machine-parsable)
//   - Text output when watching a run live
//   - Optional rotating JSON log file (lumberjack)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stdout"   # stdout, stderr, file
//	  file:
//	    path: "./logs/bosshunter.log"
//	    max_size: 10     # MB before rotation
//	    max_backups: 5
//	    max_age: 28      # days
//	    compress: false
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	defer logger.Close()
//	logger.Info("run started", "run_id", id)
//
// Match confidences are logged at debug level; a busy scan produces one
// record per poll, so keep production at info.
package logging
