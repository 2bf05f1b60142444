package monitor

import "errors"

var (
	// ErrZoneNotFound indicates the referenced zone does not exist in the company.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrSubzoneNotFound indicates the referenced subzone does not exist in the company.
	ErrSubzoneNotFound = errors.New("subzone not found")

	// ErrSiteNotFound indicates the referenced site does not exist in the company.
	ErrSiteNotFound = errors.New("site not found")
)
