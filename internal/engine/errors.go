package engine

import "errors"

var (
	// ErrNoDevice means no device of the requested type is free for the
	// whole range.
	ErrNoDevice = errors.New("no available device")

	// ErrSheetNotFound means a calendar sheet required by the range does
	// not exist; the operation fails as a whole, nothing is allocated.
	ErrSheetNotFound = errors.New("calendar sheet not found")

	ErrDeviceNotFound = errors.New("device not found")

	ErrDayNotFound = errors.New("day not found in sheet header")

	ErrReservationNotFound = errors.New("reservation not found")

	// ErrAlreadyCancelled reports an idempotent re-cancel; the document
	// is left untouched.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")

	// ErrConflict means a cell in the requested range is already
	// occupied; the booking aborts before any write.
	ErrConflict = errors.New("device already reserved for the period")
)
