package models

import "errors"

var (
	// ErrListingItemNotFound is returned by lookups when no listing item
	// matches the given hash.
	ErrListingItemNotFound = errors.New("listing item not found")

	// ErrBidNotFound is returned by bid updates when the bid id does not
	// exist for the given listing item.
	ErrBidNotFound = errors.New("bid not found")

	// ErrBidConflict is returned by bid updates when the bid no longer
	// holds the expected status, i.e. a concurrent writer won the
	// transition.
	ErrBidConflict = errors.New("bid status changed concurrently")
)
