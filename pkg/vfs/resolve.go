package vfs

import (
	"strings"
)

// Separator is the path separator. Paths beginning with it are absolute;
// everything else resolves against the session cursor.
const Separator = "/"

// MaxSymlinkHops bounds symlink dereferences during one resolution,
// covering both direct (A→A) and indirect (A→B→A) cycles. Matches the
// Linux ELOOP budget.
const MaxSymlinkHops = 40

// splitPath breaks a path into components, dropping empty ones so
// repeated and trailing separators are harmless.
func splitPath(path string) (comps []string, absolute bool) {
	absolute = strings.HasPrefix(path, Separator)
	for _, comp := range strings.Split(path, Separator) {
		if comp != "" {
			comps = append(comps, comp)
		}
	}
	return comps, absolute
}

// resolveLocked resolves a path to an inode id, following symlinks
// everywhere including the terminal component.
func (fs *Filesystem) resolveLocked(path string, cursor InodeID, user string) (InodeID, error) {
	comps, absolute := splitPath(path)
	if absolute {
		cursor = RootID
	}
	hops := 0
	return fs.walkLocked(comps, cursor, &hops, true, user)
}

// resolveParentLocked resolves everything but the final component,
// returning the containing directory id and the entry name for the
// caller to operate on. Symlinks in the directory part are followed; the
// final component never is.
func (fs *Filesystem) resolveParentLocked(path string, cursor InodeID, user string) (InodeID, string, error) {
	comps, absolute := splitPath(path)
	if absolute {
		cursor = RootID
	}
	if len(comps) == 0 {
		return 0, "", &Error{Code: ErrInvalidArgument, Message: "operation requires a named entry", Path: path}
	}

	hops := 0
	parentID, err := fs.walkLocked(comps[:len(comps)-1], cursor, &hops, true, user)
	if err != nil {
		return 0, "", err
	}

	parent, err := fs.inodes.Get(parentID)
	if err != nil {
		return 0, "", err
	}
	if !parent.IsDirectory() {
		return 0, "", &Error{Code: ErrNotADirectory, Message: "not a directory", Path: path}
	}
	return parentID, comps[len(comps)-1], nil
}

// walkLocked descends the component list from cursor.
//
// Rules per component: "." stays put, ".." moves to the recorded parent
// (the root is its own parent), anything else is looked up in the current
// directory's child mapping. A symlink encountered mid-path, or at the
// end when followTerminal is set, restarts the walk on its target
// relative to the symlink's containing directory, charging the shared
// hop counter.
func (fs *Filesystem) walkLocked(comps []string, cursor InodeID, hops *int, followTerminal bool, user string) (InodeID, error) {
	cur := cursor
	for i, comp := range comps {
		ino, err := fs.inodes.Get(cur)
		if err != nil {
			return 0, err
		}
		if !ino.IsDirectory() {
			return 0, &Error{Code: ErrNotADirectory, Message: "not a directory", Path: ino.Name}
		}
		if err := fs.checkAccess(ino, user, PermExec); err != nil {
			return 0, err
		}

		switch comp {
		case ".":
			continue
		case "..":
			cur = ino.Parent
			continue
		}

		id, ok := ino.children.get(comp)
		if !ok {
			return 0, &Error{Code: ErrNotFound, Message: "no such file or directory", Path: comp}
		}
		child, err := fs.inodes.Get(id)
		if err != nil {
			return 0, err
		}

		if child.Kind == KindSymlink && (i < len(comps)-1 || followTerminal) {
			*hops++
			if *hops > MaxSymlinkHops {
				return 0, &Error{Code: ErrTooManySymlinks, Message: "too many levels of symbolic links", Path: comp}
			}

			target, err := fs.readContentLocked(child)
			if err != nil {
				return 0, err
			}
			targetComps, absolute := splitPath(string(target))
			base := cur
			if absolute {
				base = RootID
			}
			resolved, err := fs.walkLocked(targetComps, base, hops, true, user)
			if err != nil {
				return 0, err
			}
			cur = resolved
			continue
		}

		cur = id
	}
	return cur, nil
}
