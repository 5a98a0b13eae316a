package logging

import "context"

// NoopLogger discards everything. Used in tests and benchmarks.
type NoopLogger struct{}

// NewNoop returns a logger that drops all output.
func NewNoop() Logger { return &NoopLogger{} }

func (n *NoopLogger) Debug(string, ...interface{}) {}
func (n *NoopLogger) Info(string, ...interface{})  {}
func (n *NoopLogger) Warn(string, ...interface{})  {}
func (n *NoopLogger) Error(string, ...interface{}) {}

func (n *NoopLogger) DebugContext(context.Context, string, ...interface{}) {}
func (n *NoopLogger) InfoContext(context.Context, string, ...interface{})  {}
func (n *NoopLogger) WarnContext(context.Context, string, ...interface{})  {}
func (n *NoopLogger) ErrorContext(context.Context, string, ...interface{}) {}

func (n *NoopLogger) WithComponent(string) Logger { return n }
