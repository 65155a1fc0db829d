package vfs

// Mode holds Unix permission bits. The conventional nine-bit layout is
// kept so modes display and export naturally, but access checks consult
// only the owner and other classes: the session user either owns the
// inode or falls into "other".
type Mode uint16

const (
	PermRead  Mode = 4
	PermWrite Mode = 2
	PermExec  Mode = 1

	// DefaultFileMode, DefaultDirMode, and DefaultSymlinkMode are applied
	// at creation time.
	DefaultFileMode    Mode = 0o644
	DefaultDirMode     Mode = 0o755
	DefaultSymlinkMode Mode = 0o777
)

// ownerBits and otherBits extract one permission class.
func (m Mode) ownerBits() Mode { return (m >> 6) & 7 }
func (m Mode) otherBits() Mode { return m & 7 }

// String renders the mode as the familiar "rwxr-xr-x" form.
func (m Mode) String() string {
	const chars = "rwxrwxrwx"
	out := make([]byte, 9)
	for i := range out {
		if m&(1<<(8-i)) != 0 {
			out[i] = chars[i]
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}

// SuperUser bypasses permission checks, matching the usual Unix rule.
const SuperUser = "root"

// checkAccess verifies that user holds the wanted permission bits on the
// inode.
func (fs *Filesystem) checkAccess(ino *Inode, user string, want Mode) error {
	if user == SuperUser {
		return nil
	}

	granted := ino.Mode.otherBits()
	if user == ino.Owner {
		granted = ino.Mode.ownerBits()
	}
	if granted&want != want {
		return &Error{
			Code:    ErrPermissionDenied,
			Message: "permission denied",
			Path:    ino.Name,
		}
	}
	return nil
}
