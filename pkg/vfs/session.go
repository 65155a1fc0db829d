package vfs

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/vdiskfs/vdiskfs/internal/logger"
)

// Session is one caller's view of a filesystem: a store handle, the user
// identity the caller resolved (OS identity resolution is the caller's
// concern), and the cursor — the current-directory inode id.
//
// Sessions are values constructed by the caller and passed into every
// operation; there is no global filesystem or global cursor, so multiple
// independent sessions can share one Filesystem.
type Session struct {
	fs     *Filesystem
	id     uuid.UUID
	user   string
	cursor InodeID
}

// NewSession creates a session rooted at "/" for the given user.
func NewSession(fs *Filesystem, user string) *Session {
	s := &Session{
		fs:     fs,
		id:     uuid.New(),
		user:   user,
		cursor: RootID,
	}
	logger.Debug("Session %s opened for user %q", s.id, user)
	return s
}

// User returns the session's user identity.
func (s *Session) User() string { return s.user }

// Cursor returns the current-directory inode id.
func (s *Session) Cursor() InodeID { return s.cursor }

// rollbackCreateLocked undoes a createEntryLocked after a later step of
// the same operation failed, so no half-created entry is ever flushed.
func (s *Session) rollbackCreateLocked(parentID InodeID, ino *Inode) {
	parent, err := s.fs.inodes.Get(parentID)
	if err == nil {
		parent.children.remove(ino.Name)
	}
	s.fs.freeBlocksLocked(ino)
	s.fs.inodes.Free(ino.ID)
}

// CreateFile creates a regular file, optionally with initial content.
func (s *Session) CreateFile(path string, content []byte) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentID, name, err := fs.resolveParentLocked(path, s.cursor, s.user)
	if err != nil {
		return err
	}

	ino, err := fs.createEntryLocked(parentID, name, KindFile, s.user)
	if err != nil {
		return err
	}
	if len(content) > 0 {
		if err := fs.writeContentLocked(ino, content, Truncate); err != nil {
			s.rollbackCreateLocked(parentID, ino)
			return err
		}
	}

	logger.Debug("Session %s created file %q (%d bytes)", s.id, path, len(content))
	return fs.flushLocked()
}

// DeleteFile removes a file or symlink. The entry itself is removed: a
// symlink's target is left alone.
func (s *Session) DeleteFile(path string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentID, name, err := fs.resolveParentLocked(path, s.cursor, s.user)
	if err != nil {
		return err
	}
	if err := fs.removeEntryLocked(parentID, name, false, s.user); err != nil {
		return err
	}

	logger.Debug("Session %s deleted %q", s.id, path)
	return fs.flushLocked()
}

// AppendContent appends bytes to a file, creating it first when the path
// does not exist (">>" semantics).
func (s *Session) AppendContent(path string, data []byte) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if IsCode(err, ErrNotFound) {
		parentID, name, perr := fs.resolveParentLocked(path, s.cursor, s.user)
		if perr != nil {
			return perr
		}
		ino, cerr := fs.createEntryLocked(parentID, name, KindFile, s.user)
		if cerr != nil {
			return cerr
		}
		if werr := fs.writeContentLocked(ino, data, Truncate); werr != nil {
			s.rollbackCreateLocked(parentID, ino)
			return werr
		}
		logger.Debug("Session %s created %q via append (%d bytes)", s.id, path, len(data))
		return fs.flushLocked()
	}
	if err != nil {
		return err
	}

	ino, err := fs.inodes.Get(id)
	if err != nil {
		return err
	}
	if ino.Kind != KindFile {
		return &Error{Code: ErrNotAFile, Message: "not a regular file", Path: path}
	}
	if err := fs.checkAccess(ino, s.user, PermWrite); err != nil {
		return err
	}
	if err := fs.writeContentLocked(ino, data, Append); err != nil {
		return err
	}

	logger.Debug("Session %s appended %d bytes to %q", s.id, len(data), path)
	return fs.flushLocked()
}

// WriteFile replaces a file's content entirely (">" semantics).
func (s *Session) WriteFile(path string, data []byte) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if IsCode(err, ErrNotFound) {
		parentID, name, perr := fs.resolveParentLocked(path, s.cursor, s.user)
		if perr != nil {
			return perr
		}
		ino, cerr := fs.createEntryLocked(parentID, name, KindFile, s.user)
		if cerr != nil {
			return cerr
		}
		if werr := fs.writeContentLocked(ino, data, Truncate); werr != nil {
			s.rollbackCreateLocked(parentID, ino)
			return werr
		}
		logger.Debug("Session %s created %q via write (%d bytes)", s.id, path, len(data))
		return fs.flushLocked()
	}
	if err != nil {
		return err
	}

	ino, err := fs.inodes.Get(id)
	if err != nil {
		return err
	}
	if ino.Kind != KindFile {
		return &Error{Code: ErrNotAFile, Message: "not a regular file", Path: path}
	}
	if err := fs.checkAccess(ino, s.user, PermWrite); err != nil {
		return err
	}
	if err := fs.writeContentLocked(ino, data, Truncate); err != nil {
		return err
	}

	logger.Debug("Session %s wrote %d bytes to %q", s.id, len(data), path)
	return fs.flushLocked()
}

// ReadFile returns a file's exact content; symlinks along the path and
// at the end are followed.
func (s *Session) ReadFile(path string) ([]byte, error) {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if err != nil {
		return nil, err
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return nil, err
	}
	if ino.Kind != KindFile {
		return nil, &Error{Code: ErrNotAFile, Message: "not a regular file", Path: path}
	}
	if err := fs.checkAccess(ino, s.user, PermRead); err != nil {
		return nil, err
	}
	return fs.readContentLocked(ino)
}

// CopyFile duplicates a file into independent blocks — the copy never
// shares storage with the source, so later writes to either stay
// isolated. When dst names an existing directory the copy lands inside
// it under the source's name.
func (s *Session) CopyFile(src, dst string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcID, err := fs.resolveLocked(src, s.cursor, s.user)
	if err != nil {
		return err
	}
	srcIno, err := fs.inodes.Get(srcID)
	if err != nil {
		return err
	}
	if srcIno.Kind != KindFile {
		return &Error{Code: ErrNotAFile, Message: "not a regular file", Path: src}
	}
	if err := fs.checkAccess(srcIno, s.user, PermRead); err != nil {
		return err
	}
	content, err := fs.readContentLocked(srcIno)
	if err != nil {
		return err
	}

	parentID, name, err := fs.resolveParentLocked(dst, s.cursor, s.user)
	if err != nil {
		return err
	}
	if id, ok := s.lookupLocked(parentID, name); ok {
		target, terr := fs.inodes.Get(id)
		if terr != nil {
			return terr
		}
		if !target.IsDirectory() {
			return &Error{Code: ErrAlreadyExists, Message: "destination already exists", Path: dst}
		}
		parentID, name = id, srcIno.Name
	}

	copyIno, err := fs.createEntryLocked(parentID, name, KindFile, s.user)
	if err != nil {
		return err
	}
	copyIno.Mode = srcIno.Mode
	if err := fs.writeContentLocked(copyIno, content, Truncate); err != nil {
		s.rollbackCreateLocked(parentID, copyIno)
		return err
	}

	logger.Debug("Session %s copied %q to %q (%d bytes)", s.id, src, dst, len(content))
	return fs.flushLocked()
}

// lookupLocked resolves one entry name inside a directory, treating "."
// and ".." like any other mapping entry.
func (s *Session) lookupLocked(dirID InodeID, name string) (InodeID, bool) {
	dir, err := s.fs.inodes.Get(dirID)
	if err != nil || !dir.IsDirectory() {
		return 0, false
	}
	return dir.children.get(name)
}

// RenameOrMove re-parents or renames an entry. Content blocks are never
// touched, only the naming entries. When dst names an existing
// directory, the source moves into it keeping its name. Moving a
// directory into itself or any descendant fails with InvalidMove.
func (s *Session) RenameOrMove(src, dst string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	srcParent, srcName, err := fs.resolveParentLocked(src, s.cursor, s.user)
	if err != nil {
		return err
	}
	dstParent, dstName, err := fs.resolveParentLocked(dst, s.cursor, s.user)
	if err != nil {
		return err
	}

	if id, ok := s.lookupLocked(dstParent, dstName); ok {
		target, terr := fs.inodes.Get(id)
		if terr != nil {
			return terr
		}
		if target.IsDirectory() && !(srcParent == dstParent && srcName == dstName) {
			dstParent, dstName = id, srcName
		}
	}

	if err := fs.moveEntryLocked(srcParent, srcName, dstParent, dstName, s.user); err != nil {
		return err
	}

	logger.Debug("Session %s moved %q to %q", s.id, src, dst)
	return fs.flushLocked()
}

// CreateSymlink creates a symbolic link at linkPath holding the target
// path as an unresolved string. The target need not exist; it is only
// resolved when the link is traversed.
func (s *Session) CreateSymlink(target, linkPath string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if target == "" {
		return &Error{Code: ErrInvalidArgument, Message: "symlink target must not be empty"}
	}

	parentID, name, err := fs.resolveParentLocked(linkPath, s.cursor, s.user)
	if err != nil {
		return err
	}
	ino, err := fs.createEntryLocked(parentID, name, KindSymlink, s.user)
	if err != nil {
		return err
	}
	if err := fs.writeContentLocked(ino, []byte(target), Truncate); err != nil {
		s.rollbackCreateLocked(parentID, ino)
		return err
	}

	logger.Debug("Session %s created symlink %q -> %q", s.id, linkPath, target)
	return fs.flushLocked()
}

// ReadSymlink returns the stored target of a symlink without following
// it.
func (s *Session) ReadSymlink(path string) (string, error) {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	parentID, name, err := fs.resolveParentLocked(path, s.cursor, s.user)
	if err != nil {
		return "", err
	}
	id, ok := s.lookupLocked(parentID, name)
	if !ok {
		return "", &Error{Code: ErrNotFound, Message: "no such file or directory", Path: path}
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return "", err
	}
	if ino.Kind != KindSymlink {
		return "", &Error{Code: ErrNotAFile, Message: "not a symlink", Path: path}
	}
	target, err := fs.readContentLocked(ino)
	if err != nil {
		return "", err
	}
	return string(target), nil
}

// CreateDirectory creates an empty directory whose child mapping starts
// with "." and "..".
func (s *Session) CreateDirectory(path string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentID, name, err := fs.resolveParentLocked(path, s.cursor, s.user)
	if err != nil {
		return err
	}
	if _, err := fs.createEntryLocked(parentID, name, KindDirectory, s.user); err != nil {
		return err
	}

	logger.Debug("Session %s created directory %q", s.id, path)
	return fs.flushLocked()
}

// RemoveDirectory removes an empty directory; DirectoryNotEmpty exactly
// when it holds entries besides "." and "..".
func (s *Session) RemoveDirectory(path string) error {
	fs := s.fs
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentID, name, err := fs.resolveParentLocked(path, s.cursor, s.user)
	if err != nil {
		return err
	}
	if err := fs.removeEntryLocked(parentID, name, true, s.user); err != nil {
		return err
	}

	logger.Debug("Session %s removed directory %q", s.id, path)
	return fs.flushLocked()
}

// ListDirectory returns the ordered entries of a directory, "." and ".."
// first. An empty path lists the current directory.
func (s *Session) ListDirectory(path string) ([]DirEntry, error) {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if err != nil {
		return nil, err
	}
	return fs.listLocked(id, s.user)
}

// ChangeDirectory moves the session cursor. "." keeps it in place; ".."
// from the root stays at the root.
func (s *Session) ChangeDirectory(path string) error {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if err != nil {
		return err
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return err
	}
	if !ino.IsDirectory() {
		return &Error{Code: ErrNotADirectory, Message: "not a directory", Path: path}
	}

	s.cursor = id
	return nil
}

// WorkingDirectory reconstructs the absolute path of the cursor by
// walking parent references up to the root.
func (s *Session) WorkingDirectory() string {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if s.cursor == RootID {
		return Separator
	}

	var parts []string
	cur := s.cursor
	for cur != RootID {
		ino, err := fs.inodes.Get(cur)
		if err != nil {
			return Separator
		}
		parts = append(parts, ino.Name)
		cur = ino.Parent

		if len(parts) > int(fs.inodes.TotalCount()) {
			// Broken parent chain; should be unreachable on a valid tree.
			return Separator
		}
	}

	path := ""
	for i := len(parts) - 1; i >= 0; i-- {
		path += Separator + parts[i]
	}
	return path
}

// Stat returns a read-only metadata view, following symlinks.
func (s *Session) Stat(path string) (Info, error) {
	fs := s.fs
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	id, err := fs.resolveLocked(path, s.cursor, s.user)
	if err != nil {
		return Info{}, err
	}
	ino, err := fs.inodes.Get(id)
	if err != nil {
		return Info{}, err
	}

	return Info{
		ID:         ino.ID,
		Name:       ino.Name,
		Kind:       ino.Kind,
		Owner:      ino.Owner,
		Creator:    ino.Creator,
		Mode:       ino.Mode,
		Size:       ino.Size,
		CreatedAt:  ino.CreatedAt,
		ModifiedAt: ino.ModifiedAt,
		Blocks:     len(ino.Blocks),
	}, nil
}

// ExportFile copies a file's content out to the host filesystem.
func (s *Session) ExportFile(path, hostPath string) error {
	content, err := s.ReadFile(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(hostPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to export to host file: %w", err)
	}

	logger.Debug("Session %s exported %q to %q (%d bytes)", s.id, path, hostPath, len(content))
	return nil
}
