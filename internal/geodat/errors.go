package geodat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDatabase is returned when no structure info signature is
	// found in the trailing window of the file.
	ErrInvalidDatabase = errors.New("invalid database: structure info not found")

	// ErrUnknownEdition is returned for an edition byte the engine cannot lay out.
	ErrUnknownEdition = errors.New("unknown database edition")

	// ErrCorrupt is returned when a search or record read leaves the data.
	ErrCorrupt = errors.New("corrupt database")
)

// OpenError reports a database that could not be read or validated.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("problem opening database: %v", e.Err)
	}
	return fmt.Sprintf("problem opening database %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// UnsupportedEncodingError is returned when a charset other than
// ISO-8859-1 or UTF-8 is requested.
type UnsupportedEncodingError struct {
	Name string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("unsupported encoding %q", e.Name)
}
