package logger

// ComponentLogger prefixes every message with a component name. It resolves
// the default logger at call time, so it is safe to construct before Init.
type ComponentLogger struct {
	component string
}

// WithComponent returns a logger scoped to the given component name.
func WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{component: component}
}

func (c *ComponentLogger) log(level LogLevel, format string, args ...interface{}) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(level, "["+c.component+"] "+format, args...)
}

// Debug logs a debug message tagged with the component name
func (c *ComponentLogger) Debug(format string, args ...interface{}) {
	c.log(LevelDebug, format, args...)
}

// Info logs an info message tagged with the component name
func (c *ComponentLogger) Info(format string, args ...interface{}) {
	c.log(LevelInfo, format, args...)
}

// Warn logs a warning message tagged with the component name
func (c *ComponentLogger) Warn(format string, args ...interface{}) {
	c.log(LevelWarn, format, args...)
}

// Error logs an error message tagged with the component name
func (c *ComponentLogger) Error(format string, args ...interface{}) {
	c.log(LevelError, format, args...)
}
