package structs

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/zond/hitres"
)

// ConfigurationError reports body or armor data the pipeline cannot work
// with, such as zero hit weights or a missing wound multiplier.
type ConfigurationError struct {
	Location LocationID
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error at %q: %s", e.Location, e.Reason)
}

// ConfigErrorf builds a ConfigurationError with a stack trace.
func ConfigErrorf(loc LocationID, format string, args ...any) error {
	return hitres.WithStack(&ConfigurationError{
		Location: loc,
		Reason:   fmt.Sprintf(format, args...),
	})
}

// IsConfigurationError reports whether err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
