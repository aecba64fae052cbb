package domain

import "errors"

var (
	// ErrInvalidDateInput is returned before any store access when the target date is malformed
	ErrInvalidDateInput = errors.New("invalid date input")

	// ErrStoreConnection wraps failures to acquire a connection or begin a transaction
	ErrStoreConnection = errors.New("store connection failure")

	// ErrStoreQuery wraps failures of a read or write statement
	ErrStoreQuery = errors.New("store query failure")

	// ErrNotImplemented marks a rule whose field mapping is switched off
	ErrNotImplemented = errors.New("not implemented")
)
