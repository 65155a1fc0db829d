package store

// StoreError is an infrastructure-level error from a backing store.
//
// The engine translates these into its own domain errors (for example
// ErrCorrupt becomes the engine's StorageCorrupt) so callers above the
// engine never see store internals.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the backing file or key related to the error, if any
	Path string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a store error.
type ErrorCode int

const (
	// ErrCorrupt indicates stored data exists but failed verification
	// (bad magic, bad checksum, undecodable payload). Never resolved by
	// reformatting implicitly.
	ErrCorrupt ErrorCode = iota

	// ErrIO indicates a read or write against the backing medium failed.
	ErrIO

	// ErrGeometry indicates the store's recorded geometry does not match
	// the geometry requested at open, or a block index is out of range.
	ErrGeometry

	// ErrSnapshotTooLarge indicates the serialized snapshot does not fit
	// the metadata region reserved for it.
	ErrSnapshotTooLarge
)

// IsCorrupt reports whether err is a StoreError carrying ErrCorrupt.
func IsCorrupt(err error) bool {
	se, ok := err.(*StoreError)
	return ok && se.Code == ErrCorrupt
}
