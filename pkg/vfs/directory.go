package vfs

import (
	"strings"
	"time"
)

// childSet is a directory's ordered name→inode-id mapping. The slice
// keeps listing order (with "." and ".." pinned as the first two
// entries); the map gives per-directory constant-time lookup so name
// resolution never scans the inode table.
type childSet struct {
	order []string
	ids   map[string]InodeID
}

// newChildSet builds the mapping for a fresh directory.
func newChildSet(self, parent InodeID) *childSet {
	return &childSet{
		order: []string{".", ".."},
		ids:   map[string]InodeID{".": self, "..": parent},
	}
}

func (cs *childSet) get(name string) (InodeID, bool) {
	id, ok := cs.ids[name]
	return id, ok
}

func (cs *childSet) put(name string, id InodeID) {
	cs.order = append(cs.order, name)
	cs.ids[name] = id
}

func (cs *childSet) remove(name string) {
	delete(cs.ids, name)
	for i, n := range cs.order {
		if n == name {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			return
		}
	}
}

// setParent rewires the ".." entry after a move.
func (cs *childSet) setParent(parent InodeID) {
	cs.ids[".."] = parent
}

// empty reports whether the directory holds nothing besides "." and "..".
func (cs *childSet) empty() bool {
	return len(cs.order) == 2
}

// validateName rejects names that cannot be directory entries.
func validateName(name string) error {
	if name == "" {
		return &Error{Code: ErrInvalidArgument, Message: "entry name must not be empty"}
	}
	if name == "." || name == ".." {
		return &Error{Code: ErrInvalidArgument, Message: "entry name is reserved", Path: name}
	}
	if strings.Contains(name, Separator) {
		return &Error{Code: ErrInvalidArgument, Message: "entry name must not contain the path separator", Path: name}
	}
	return nil
}

// createEntryLocked allocates a new inode of the given kind and links it
// into parent under name.
func (fs *Filesystem) createEntryLocked(parentID InodeID, name string, kind FileKind, user string) (*Inode, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	parent, err := fs.inodes.Get(parentID)
	if err != nil {
		return nil, err
	}
	if !parent.IsDirectory() {
		return nil, &Error{Code: ErrNotADirectory, Message: "parent is not a directory", Path: parent.Name}
	}
	if err := fs.checkAccess(parent, user, PermWrite); err != nil {
		return nil, err
	}
	if _, exists := parent.children.get(name); exists {
		return nil, &Error{Code: ErrAlreadyExists, Message: "entry already exists", Path: name}
	}

	ino, err := fs.inodes.Allocate()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ino.Name = name
	ino.Kind = kind
	ino.Owner = user
	ino.Creator = user
	ino.Size = 0
	ino.CreatedAt = now
	ino.ModifiedAt = now
	ino.Parent = parentID

	switch kind {
	case KindDirectory:
		ino.Mode = DefaultDirMode
		ino.children = newChildSet(ino.ID, parentID)
	case KindSymlink:
		ino.Mode = DefaultSymlinkMode
	default:
		ino.Mode = DefaultFileMode
	}

	parent.children.put(name, ino.ID)
	parent.ModifiedAt = now
	return ino, nil
}

// removeEntryLocked unlinks name from parent and releases the inode and
// its blocks. wantDir selects rmdir semantics (directory required, must
// be empty) versus rm semantics (directory refused).
func (fs *Filesystem) removeEntryLocked(parentID InodeID, name string, wantDir bool, user string) error {
	if err := validateName(name); err != nil {
		return err
	}

	parent, err := fs.inodes.Get(parentID)
	if err != nil {
		return err
	}
	if !parent.IsDirectory() {
		return &Error{Code: ErrNotADirectory, Message: "parent is not a directory", Path: parent.Name}
	}
	if err := fs.checkAccess(parent, user, PermWrite); err != nil {
		return err
	}

	id, ok := parent.children.get(name)
	if !ok {
		return &Error{Code: ErrNotFound, Message: "no such entry", Path: name}
	}
	child, err := fs.inodes.Get(id)
	if err != nil {
		return err
	}

	if wantDir {
		if !child.IsDirectory() {
			return &Error{Code: ErrNotADirectory, Message: "not a directory", Path: name}
		}
		if !child.children.empty() {
			return &Error{Code: ErrDirectoryNotEmpty, Message: "directory not empty", Path: name}
		}
	} else if child.IsDirectory() {
		return &Error{Code: ErrNotAFile, Message: "is a directory", Path: name}
	}

	fs.freeBlocksLocked(child)
	parent.children.remove(name)
	parent.ModifiedAt = time.Now()
	fs.inodes.Free(id)
	return nil
}

// moveEntryLocked re-parents oldName from oldParent to newParent under
// newName. Moving a directory into itself or any of its descendants is
// rejected; the moved directory's ".." entry is rewired.
func (fs *Filesystem) moveEntryLocked(oldParentID InodeID, oldName string, newParentID InodeID, newName string, user string) error {
	if err := validateName(oldName); err != nil {
		return err
	}
	if err := validateName(newName); err != nil {
		return err
	}

	oldParent, err := fs.inodes.Get(oldParentID)
	if err != nil {
		return err
	}
	newParent, err := fs.inodes.Get(newParentID)
	if err != nil {
		return err
	}
	if !oldParent.IsDirectory() || !newParent.IsDirectory() {
		return &Error{Code: ErrNotADirectory, Message: "move endpoints must be directories"}
	}

	if oldParentID == newParentID && oldName == newName {
		return nil
	}

	id, ok := oldParent.children.get(oldName)
	if !ok {
		return &Error{Code: ErrNotFound, Message: "no such entry", Path: oldName}
	}
	child, err := fs.inodes.Get(id)
	if err != nil {
		return err
	}

	if err := fs.checkAccess(oldParent, user, PermWrite); err != nil {
		return err
	}
	if err := fs.checkAccess(newParent, user, PermWrite); err != nil {
		return err
	}

	if _, exists := newParent.children.get(newName); exists {
		return &Error{Code: ErrAlreadyExists, Message: "destination entry already exists", Path: newName}
	}

	// A directory must not become its own ancestor: walk from the
	// destination up to the root and refuse if the moved directory is on
	// that chain.
	if child.IsDirectory() {
		for cur := newParentID; ; {
			if cur == id {
				return &Error{Code: ErrInvalidMove, Message: "cannot move a directory into itself or its descendants", Path: oldName}
			}
			if cur == RootID {
				break
			}
			ancestor, err := fs.inodes.Get(cur)
			if err != nil {
				return err
			}
			cur = ancestor.Parent
		}
	}

	now := time.Now()
	oldParent.children.remove(oldName)
	newParent.children.put(newName, id)
	child.Name = newName
	child.Parent = newParentID
	if child.IsDirectory() {
		child.children.setParent(newParentID)
	}
	oldParent.ModifiedAt = now
	newParent.ModifiedAt = now
	return nil
}

// listLocked returns the ordered entries of a directory, "." and ".."
// first.
func (fs *Filesystem) listLocked(dirID InodeID, user string) ([]DirEntry, error) {
	dir, err := fs.inodes.Get(dirID)
	if err != nil {
		return nil, err
	}
	if !dir.IsDirectory() {
		return nil, &Error{Code: ErrNotADirectory, Message: "not a directory", Path: dir.Name}
	}
	if err := fs.checkAccess(dir, user, PermRead); err != nil {
		return nil, err
	}

	entries := make([]DirEntry, 0, len(dir.children.order))
	for _, name := range dir.children.order {
		id := dir.children.ids[name]
		child, err := fs.inodes.Get(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, DirEntry{Name: name, Kind: child.Kind, ID: id})
	}
	return entries, nil
}
