package nwm

import "fmt"

// ConfigError reports a request outside the fixed product catalog: an unknown
// product name, or a cycle or forecast hour the product never publishes.
// It is fatal and never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
