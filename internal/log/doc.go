// Package log provides redacting slog loggers for cjdnswalk.
//
// Talking to cjdroute requires the admin password, and every authenticated
// call carries a cookie and a hash derived from it. SecureHandler masks
// those attributes (and values that look like hex secrets) before they
// reach the output, even in verbose mode.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("admin call", "fn", "Core_nodeInfo", "cookie", cookie) // cookie=***REDACTED***
//	slog.SetDefault(logger)
//
// Logs always go to stderr; stdout carries the event stream.
package log
