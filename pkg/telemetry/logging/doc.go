// Package logging wraps log/slog with a log file that can be closed and
// reopened at the same path, so the SIGUSR1 handler spec.md §4.6 step 14
// names ("reopen all access log files") has something concrete to call.
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Path: "/var/log/helios/server.log"})
//	logger.Info("listener bound", "address", addr)
//	logger.Reopen() // called from the SIGUSR1 dispatcher task
package logging
