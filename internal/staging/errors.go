package staging

import "errors"

var (
	// ErrCapacityExceeded indicates the file would push usage past the configured maximum.
	ErrCapacityExceeded = errors.New("staging capacity exceeded")
	// ErrNotFound indicates no staged file has the requested id.
	ErrNotFound = errors.New("staged file not found")
	// ErrPurged indicates the staged file has already been purged.
	ErrPurged = errors.New("staged file already purged")
	// ErrSourceMissing indicates the file to stage does not exist.
	ErrSourceMissing = errors.New("staging source missing")
	// ErrNotRegularFile indicates the file to stage is a directory or device.
	ErrNotRegularFile = errors.New("staging source is not a regular file")
)
