package domain

import "errors"

var (
	// ErrConfiguration means a network, pair, token or cap is missing from
	// the registry. Raised before any transaction is submitted.
	ErrConfiguration = errors.New("configuration error")
	// ErrExpiryInThePast means the requested expiry is not after the
	// current time. Raised before any transaction is submitted.
	ErrExpiryInThePast = errors.New("expiry is in the past")
	// ErrTransactionRejected means the node rejected or reverted a
	// submitted transaction. Gas may have been spent.
	ErrTransactionRejected = errors.New("transaction rejected")
	// ErrDeploymentVerification means a freshly created market could not
	// be confirmed. On-chain state needs manual inspection.
	ErrDeploymentVerification = errors.New("deployment verification failed")

	ErrNotFound = errors.New("not found")
	ErrLockHeld = errors.New("lock already held")
	// ErrLockLost means a held lock expired or was taken by another process
	// before it was released.
	ErrLockLost = errors.New("lock lost")
)
