// Package logging provides the Logger interface the framework logs through
// and slog-backed implementations of it.
//
// The interface stays small on purpose: Debug, Info, Warn and Error with
// slog-style key/value arguments. Plug in LoomLogger for structured output,
// NoOpLogger for silence, or any implementation of your own:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "text", false)
//	loom := agentloom.New("my-app", rootAgent, func(o *agentloom.Options) {
//		o.Logger = logger
//	})
package logging
