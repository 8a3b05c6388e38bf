// Package logger builds the structured logger shared by this module. Block
// storages log through the *zap.SugaredLogger this package returns, tagged
// with the service name that opened them; the search, memory-storage, and
// cursor packages do not log.
package logger

import "go.uber.org/zap"

// New builds a production zap logger and tags every entry with a "service"
// field so log output from multiple storages opened in the same process can
// be told apart.
func New(service string) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		// zap's production config is validated at compile time; it only
		// fails to build on a broken encoder/level configuration, which
		// this package never sets. Falling back to a no-op logger keeps
		// callers from having to handle an error that cannot occur in
		// practice.
		return zap.NewNop().Sugar()
	}

	return log.Sugar().With("service", service)
}
