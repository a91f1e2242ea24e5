package wallet

import "errors"

var (
	// ErrAlreadyExists is returned by Create for an existing wallet. Callers
	// that only need the wallet to exist treat it as success and Open.
	ErrAlreadyExists = errors.New("wallet already exists")
	// ErrOpenFailure wraps every reason Open can fail.
	ErrOpenFailure = errors.New("wallet open failed")
	// ErrWalletNotFound is returned when the configured wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrInvalidKey is returned when the credentials key does not match.
	ErrInvalidKey = errors.New("wallet key mismatch")
	// ErrNotOpen is returned by operations on a closed handle.
	ErrNotOpen = errors.New("wallet handle is not open")
	// ErrWalletOpen is returned by Delete while handles to the wallet are open.
	ErrWalletOpen = errors.New("wallet is open")
	// ErrUnknownStorage is returned for a storage_type with no registered provider.
	ErrUnknownStorage = errors.New("unknown wallet storage type")
)
