package observability

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// FlushTelemetry syncs buffered log entries and closes the rotating log file, if one
// was opened by NewLogger. Prometheus is pull-based so metrics need no flush.
// Call during graceful shutdown after in-flight requests have drained.
func FlushTelemetry(logger *zap.Logger) error {
	var errs error
	if logger != nil {
		for _, err := range multierr.Errors(logger.Sync()) {
			if !isUnsyncable(err) {
				errs = multierr.Append(errs, fmt.Errorf("flush logs: %w", err))
			}
		}
	}

	rotatingMu.Lock()
	file := rotating
	rotating = nil
	rotatingMu.Unlock()
	if file != nil {
		if err := file.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errs
}

// isUnsyncable reports errors returned when fsync is called on a terminal or pipe.
func isUnsyncable(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY)
}
