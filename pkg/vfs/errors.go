package vfs

// Error is a domain error from filesystem operations.
//
// These are business-level conditions (path not found, directory not
// empty, out of space) as opposed to infrastructure errors from the
// backing store. Every code is recoverable at the call site; no
// operation aborts the process.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a filesystem error.
type ErrorCode int

const (
	// ErrNotFound indicates the path or inode does not exist
	ErrNotFound ErrorCode = iota

	// ErrAlreadyExists indicates a child with the name is already present
	ErrAlreadyExists

	// ErrNotADirectory indicates a directory was required
	ErrNotADirectory

	// ErrNotAFile indicates a regular file (or symlink, where allowed)
	// was required
	ErrNotAFile

	// ErrDirectoryNotEmpty indicates a directory holds entries besides
	// "." and ".."
	ErrDirectoryNotEmpty

	// ErrOutOfSpace indicates no free data blocks remain
	ErrOutOfSpace

	// ErrOutOfInodes indicates no free inode slots remain
	ErrOutOfInodes

	// ErrTooManySymlinks indicates resolution exceeded the symlink hop
	// budget (direct or indirect cycle)
	ErrTooManySymlinks

	// ErrInvalidMove indicates a move of a directory into itself or one
	// of its descendants
	ErrInvalidMove

	// ErrStorageCorrupt indicates the backing store holds data that
	// failed verification; never resolved by silent reformat
	ErrStorageCorrupt

	// ErrPermissionDenied indicates the session user lacks the required
	// permission bit
	ErrPermissionDenied

	// ErrInvalidArgument indicates a malformed operand, such as an empty
	// entry name or "." and ".." used where a real name is required
	ErrInvalidArgument
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "NotFound",
	ErrAlreadyExists:     "AlreadyExists",
	ErrNotADirectory:     "NotADirectory",
	ErrNotAFile:          "NotAFile",
	ErrDirectoryNotEmpty: "DirectoryNotEmpty",
	ErrOutOfSpace:        "OutOfSpace",
	ErrOutOfInodes:       "OutOfInodes",
	ErrTooManySymlinks:   "TooManySymlinks",
	ErrInvalidMove:       "InvalidMove",
	ErrStorageCorrupt:    "StorageCorrupt",
	ErrPermissionDenied:  "PermissionDenied",
	ErrInvalidArgument:   "InvalidArgument",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "Unknown"
}

// IsCode reports whether err is a *Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	fe, ok := err.(*Error)
	return ok && fe.Code == code
}
