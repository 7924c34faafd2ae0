package domain

import "errors"

// Failures returned by the reporting core. Callers match them with errors.Is;
// the returned errors wrap these with the offending value.
var (
	ErrInvalidPreset        = errors.New("invalid preset")
	ErrInvalidRange         = errors.New("invalid range")
	ErrInvalidScheduleEntry = errors.New("invalid schedule entry")
	ErrInvalidCalendar      = errors.New("invalid calendar")
	ErrDuplicateRecordID    = errors.New("duplicate record id")
	ErrUnsupportedGrain     = errors.New("unsupported grain")
)

// IsInputError reports whether err was caused by caller-supplied input
// rather than by an infrastructure failure.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidPreset,
		ErrInvalidRange,
		ErrInvalidScheduleEntry,
		ErrInvalidCalendar,
		ErrDuplicateRecordID,
		ErrUnsupportedGrain,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
