package vfs_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vdiskfs/vdiskfs/pkg/store"
	"github.com/vdiskfs/vdiskfs/pkg/store/memory"
	"github.com/vdiskfs/vdiskfs/pkg/vfs"
)

func testGeometry() store.Geometry {
	return store.Geometry{BlockSize: 4096, BlockCount: 64, InodeCapacity: 16}
}

// newTestFS builds a filesystem over a fresh in-memory store plus a
// superuser session.
func newTestFS(t *testing.T, geo store.Geometry) (*vfs.Filesystem, *vfs.Session) {
	t.Helper()

	fs, err := vfs.Open(memory.New(geo))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })

	return fs, vfs.NewSession(fs, "root")
}

func assertCode(t *testing.T, err error, code vfs.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.True(t, vfs.IsCode(err, code), "expected %v, got %v", code, err)
}

// ============================================================================
// File content
// ============================================================================

func TestCreateAndReadFile(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"Empty", 0},
		{"Small", 10},
		{"ExactBlock", 4096},
		{"BlockPlusOne", 4097},
		{"MultiBlock", 3*4096 + 123},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, session := newTestFS(t, testGeometry())

			content := bytes.Repeat([]byte{0xAB}, tt.size)
			for i := range content {
				content[i] = byte(i)
			}

			require.NoError(t, session.CreateFile("/data.bin", content))

			got, err := session.ReadFile("/data.bin")
			require.NoError(t, err)
			require.Equal(t, content, got)

			info, err := session.Stat("/data.bin")
			require.NoError(t, err)
			require.Equal(t, uint64(tt.size), info.Size)
			require.Equal(t, (tt.size+4095)/4096, info.Blocks)
		})
	}
}

func TestCreateFileErrors(t *testing.T) {
	_, session := newTestFS(t, testGeometry())
	require.NoError(t, session.CreateFile("/a.txt", nil))

	// Duplicate name
	assertCode(t, session.CreateFile("/a.txt", nil), vfs.ErrAlreadyExists)

	// Missing intermediate directory
	assertCode(t, session.CreateFile("/missing/b.txt", nil), vfs.ErrNotFound)

	// Empty path has no final component to create
	assertCode(t, session.CreateFile("", nil), vfs.ErrInvalidArgument)
	assertCode(t, session.CreateFile("/", nil), vfs.ErrInvalidArgument)

	// Intermediate component that is a file
	assertCode(t, session.CreateFile("/a.txt/c.txt", nil), vfs.ErrNotADirectory)
}

func TestReadFileErrors(t *testing.T) {
	_, session := newTestFS(t, testGeometry())
	require.NoError(t, session.CreateDirectory("/docs"))

	_, err := session.ReadFile("/nope")
	assertCode(t, err, vfs.ErrNotFound)

	_, err = session.ReadFile("/docs")
	assertCode(t, err, vfs.ErrNotAFile)
}

func TestAppendContent(t *testing.T) {
	t.Run("FillsTailBlockFirst", func(t *testing.T) {
		fs, session := newTestFS(t, testGeometry())

		require.NoError(t, session.CreateFile("/log", bytes.Repeat([]byte("x"), 100)))
		before := fs.Stats()

		// 100 bytes used of a 4096-byte block; this append fits entirely
		// in the tail.
		require.NoError(t, session.AppendContent("/log", bytes.Repeat([]byte("y"), 200)))
		require.Equal(t, before.FreeBlocks, fs.Stats().FreeBlocks)

		got, err := session.ReadFile("/log")
		require.NoError(t, err)
		require.Equal(t, append(bytes.Repeat([]byte("x"), 100), bytes.Repeat([]byte("y"), 200)...), got)
	})

	t.Run("AllocatesBeyondTail", func(t *testing.T) {
		fs, session := newTestFS(t, testGeometry())

		require.NoError(t, session.CreateFile("/log", bytes.Repeat([]byte("x"), 4000)))
		before := fs.Stats()

		require.NoError(t, session.AppendContent("/log", bytes.Repeat([]byte("y"), 5000)))
		require.Equal(t, before.FreeBlocks-2, fs.Stats().FreeBlocks)

		got, err := session.ReadFile("/log")
		require.NoError(t, err)
		require.Len(t, got, 9000)
		require.Equal(t, byte('x'), got[3999])
		require.Equal(t, byte('y'), got[4000])
		require.Equal(t, byte('y'), got[8999])
	})

	t.Run("CreatesMissingFile", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())

		require.NoError(t, session.AppendContent("/new.txt", []byte("hello")))
		got, err := session.ReadFile("/new.txt")
		require.NoError(t, err)
		require.Equal(t, []byte("hello"), got)
	})

	t.Run("RefusesDirectory", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/docs"))
		assertCode(t, session.AppendContent("/docs", []byte("x")), vfs.ErrNotAFile)
	})
}

func TestWriteFileTruncates(t *testing.T) {
	_, session := newTestFS(t, testGeometry())

	require.NoError(t, session.CreateFile("/f", bytes.Repeat([]byte("a"), 9000)))
	require.NoError(t, session.WriteFile("/f", []byte("short")))

	got, err := session.ReadFile("/f")
	require.NoError(t, err)
	require.Equal(t, []byte("short"), got)
}

func TestDeleteFileRestoresPools(t *testing.T) {
	fs, session := newTestFS(t, testGeometry())
	baseline := fs.Stats()

	require.NoError(t, session.CreateFile("/big", bytes.Repeat([]byte("z"), 10000)))
	middle := fs.Stats()
	require.Equal(t, baseline.FreeBlocks-3, middle.FreeBlocks)
	require.Equal(t, baseline.FreeInodes-1, middle.FreeInodes)

	require.NoError(t, session.DeleteFile("/big"))
	require.Equal(t, baseline, fs.Stats())

	_, err := session.ReadFile("/big")
	assertCode(t, err, vfs.ErrNotFound)
}

func TestDeleteFileRefusesDirectory(t *testing.T) {
	_, session := newTestFS(t, testGeometry())
	require.NoError(t, session.CreateDirectory("/docs"))
	assertCode(t, session.DeleteFile("/docs"), vfs.ErrNotAFile)
}

// ============================================================================
// Space exhaustion
// ============================================================================

func TestOutOfSpaceLeavesNoPartialState(t *testing.T) {
	geo := store.Geometry{BlockSize: 4096, BlockCount: 4, InodeCapacity: 16}
	fs, session := newTestFS(t, geo)
	baseline := fs.Stats()

	// Five blocks needed, four exist
	err := session.CreateFile("/huge", bytes.Repeat([]byte("x"), 5*4096))
	assertCode(t, err, vfs.ErrOutOfSpace)

	require.Equal(t, baseline, fs.Stats())
	_, err = session.ReadFile("/huge")
	assertCode(t, err, vfs.ErrNotFound)
}

func TestOutOfSpacePreservesOldContent(t *testing.T) {
	geo := store.Geometry{BlockSize: 4096, BlockCount: 4, InodeCapacity: 16}
	_, session := newTestFS(t, geo)

	require.NoError(t, session.CreateFile("/f", []byte("precious")))

	// Overwrite needs 4 fresh blocks before the old one is released, and
	// only 3 are free.
	err := session.WriteFile("/f", bytes.Repeat([]byte("y"), 4*4096))
	assertCode(t, err, vfs.ErrOutOfSpace)

	got, err := session.ReadFile("/f")
	require.NoError(t, err)
	require.Equal(t, []byte("precious"), got)
}

func TestOutOfInodes(t *testing.T) {
	geo := store.Geometry{BlockSize: 4096, BlockCount: 8, InodeCapacity: 2}
	_, session := newTestFS(t, geo)

	require.NoError(t, session.CreateFile("/only", nil))
	assertCode(t, session.CreateFile("/more", nil), vfs.ErrOutOfInodes)

	// Freeing the slot makes creation possible again
	require.NoError(t, session.DeleteFile("/only"))
	require.NoError(t, session.CreateFile("/more", nil))
}

// ============================================================================
// Directories
// ============================================================================

func TestDirectoryLifecycle(t *testing.T) {
	fs, session := newTestFS(t, testGeometry())
	baseline := fs.Stats()

	require.NoError(t, session.CreateDirectory("/docs"))

	entries, err := session.ListDirectory("/docs")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ".", entries[0].Name)
	require.Equal(t, "..", entries[1].Name)

	require.NoError(t, session.CreateFile("/docs/a", nil))
	assertCode(t, session.RemoveDirectory("/docs"), vfs.ErrDirectoryNotEmpty)

	require.NoError(t, session.DeleteFile("/docs/a"))
	require.NoError(t, session.RemoveDirectory("/docs"))
	require.Equal(t, baseline, fs.Stats())
}

func TestRemoveDirectoryErrors(t *testing.T) {
	_, session := newTestFS(t, testGeometry())
	require.NoError(t, session.CreateFile("/f", nil))

	assertCode(t, session.RemoveDirectory("/f"), vfs.ErrNotADirectory)
	assertCode(t, session.RemoveDirectory("/gone"), vfs.ErrNotFound)
	assertCode(t, session.RemoveDirectory("/."), vfs.ErrInvalidArgument)
}

func TestListDirectoryOrder(t *testing.T) {
	_, session := newTestFS(t, testGeometry())

	require.NoError(t, session.CreateFile("/zebra", nil))
	require.NoError(t, session.CreateDirectory("/apple"))
	require.NoError(t, session.CreateSymlink("/zebra", "/link"))

	entries, err := session.ListDirectory("/")
	require.NoError(t, err)

	// Creation order after the pinned "." and ".."
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.Equal(t, []string{".", "..", "zebra", "apple", "link"}, names)

	require.Equal(t, vfs.KindDirectory, entries[0].Kind)
	require.Equal(t, vfs.KindFile, entries[2].Kind)
	require.Equal(t, vfs.KindDirectory, entries[3].Kind)
	require.Equal(t, vfs.KindSymlink, entries[4].Kind)
}

// ============================================================================
// Path resolution and the cursor
// ============================================================================

func TestPathResolution(t *testing.T) {
	_, session := newTestFS(t, testGeometry())

	require.NoError(t, session.CreateDirectory("/a"))
	require.NoError(t, session.CreateDirectory("/a/b"))
	require.NoError(t, session.CreateFile("/a/c", []byte("payload")))

	// Dot-dot inside a path is equivalent to dropping the previous hop
	got, err := session.ReadFile("/a/b/../c")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	// Single dots and repeated separators are harmless
	got, err = session.ReadFile("/a/./c")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
	got, err = session.ReadFile("//a///c")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	// Dot-dot at the root stays at the root
	got, err = session.ReadFile("/../a/c")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)
}

func TestCursorSemantics(t *testing.T) {
	_, session := newTestFS(t, testGeometry())

	require.NoError(t, session.CreateDirectory("/a"))
	require.NoError(t, session.CreateDirectory("/a/b"))
	require.Equal(t, "/", session.WorkingDirectory())

	require.NoError(t, session.ChangeDirectory("/a"))
	require.Equal(t, "/a", session.WorkingDirectory())

	// Relative operations resolve against the cursor
	require.NoError(t, session.CreateFile("rel.txt", []byte("hi")))
	got, err := session.ReadFile("/a/rel.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), got)

	require.NoError(t, session.ChangeDirectory("b"))
	require.Equal(t, "/a/b", session.WorkingDirectory())

	require.NoError(t, session.ChangeDirectory(".."))
	require.Equal(t, "/a", session.WorkingDirectory())

	require.NoError(t, session.ChangeDirectory(".."))
	require.NoError(t, session.ChangeDirectory(".."))
	require.Equal(t, "/", session.WorkingDirectory())

	// cd into a file is refused and leaves the cursor alone
	require.NoError(t, session.CreateFile("/f", nil))
	assertCode(t, session.ChangeDirectory("/f"), vfs.ErrNotADirectory)
	require.Equal(t, "/", session.WorkingDirectory())
}

func TestIndependentSessions(t *testing.T) {
	fs, first := newTestFS(t, testGeometry())
	second := vfs.NewSession(fs, "root")

	require.NoError(t, first.CreateDirectory("/a"))
	require.NoError(t, first.ChangeDirectory("/a"))

	require.Equal(t, "/a", first.WorkingDirectory())
	require.Equal(t, "/", second.WorkingDirectory())

	// Tree changes are shared even though cursors are not
	require.NoError(t, first.CreateFile("shared", []byte("x")))
	got, err := second.ReadFile("/a/shared")
	require.NoError(t, err)
	require.Equal(t, []byte("x"), got)
}

// ============================================================================
// Symlinks
// ============================================================================

func TestSymlinks(t *testing.T) {
	t.Run("FollowToFile", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/target", []byte("data")))
		require.NoError(t, session.CreateSymlink("/target", "/link"))

		got, err := session.ReadFile("/link")
		require.NoError(t, err)
		require.Equal(t, []byte("data"), got)

		target, err := session.ReadSymlink("/link")
		require.NoError(t, err)
		require.Equal(t, "/target", target)
	})

	t.Run("RelativeTarget", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/docs"))
		require.NoError(t, session.CreateFile("/docs/note", []byte("n")))
		require.NoError(t, session.CreateSymlink("note", "/docs/alias"))

		// Relative targets resolve against the link's directory
		got, err := session.ReadFile("/docs/alias")
		require.NoError(t, err)
		require.Equal(t, []byte("n"), got)
	})

	t.Run("MidPathThroughDirectory", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/real"))
		require.NoError(t, session.CreateFile("/real/f", []byte("deep")))
		require.NoError(t, session.CreateSymlink("/real", "/alias"))

		got, err := session.ReadFile("/alias/f")
		require.NoError(t, err)
		require.Equal(t, []byte("deep"), got)

		require.NoError(t, session.ChangeDirectory("/alias"))
		require.Equal(t, "/real", session.WorkingDirectory())
	})

	t.Run("Dangling", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateSymlink("/nowhere", "/link"))

		_, err := session.ReadFile("/link")
		assertCode(t, err, vfs.ErrNotFound)

		// The link itself still stats as a symlink via its parent
		target, err := session.ReadSymlink("/link")
		require.NoError(t, err)
		require.Equal(t, "/nowhere", target)
	})

	t.Run("TwoNodeCycle", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateSymlink("/b", "/a"))
		require.NoError(t, session.CreateSymlink("/a", "/b"))

		_, err := session.ReadFile("/a")
		assertCode(t, err, vfs.ErrTooManySymlinks)
	})

	t.Run("SelfCycle", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateSymlink("/self", "/self"))

		_, err := session.ReadFile("/self")
		assertCode(t, err, vfs.ErrTooManySymlinks)
	})

	t.Run("DeleteRemovesLinkOnly", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/target", []byte("keep")))
		require.NoError(t, session.CreateSymlink("/target", "/link"))

		require.NoError(t, session.DeleteFile("/link"))

		got, err := session.ReadFile("/target")
		require.NoError(t, err)
		require.Equal(t, []byte("keep"), got)
		_, err = session.ReadSymlink("/link")
		assertCode(t, err, vfs.ErrNotFound)
	})

	t.Run("EmptyTargetRejected", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		assertCode(t, session.CreateSymlink("", "/link"), vfs.ErrInvalidArgument)
	})
}

// ============================================================================
// Copy and move
// ============================================================================

func TestCopyFile(t *testing.T) {
	t.Run("ToNewName", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/src", []byte("original")))
		require.NoError(t, session.CopyFile("/src", "/dst"))

		// Blocks are independent: rewriting the copy leaves the source
		require.NoError(t, session.WriteFile("/dst", []byte("changed")))
		got, err := session.ReadFile("/src")
		require.NoError(t, err)
		require.Equal(t, []byte("original"), got)
	})

	t.Run("IntoExistingDirectory", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/src", []byte("x")))
		require.NoError(t, session.CreateDirectory("/dir"))

		require.NoError(t, session.CopyFile("/src", "/dir"))
		got, err := session.ReadFile("/dir/src")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), got)
	})

	t.Run("ExistingFileDestination", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/src", nil))
		require.NoError(t, session.CreateFile("/dst", nil))
		assertCode(t, session.CopyFile("/src", "/dst"), vfs.ErrAlreadyExists)
	})

	t.Run("DirectorySource", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/dir"))
		assertCode(t, session.CopyFile("/dir", "/copy"), vfs.ErrNotAFile)
	})

	t.Run("FollowsSourceSymlink", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/real", []byte("content")))
		require.NoError(t, session.CreateSymlink("/real", "/link"))

		require.NoError(t, session.CopyFile("/link", "/copy"))
		got, err := session.ReadFile("/copy")
		require.NoError(t, err)
		require.Equal(t, []byte("content"), got)

		info, err := session.Stat("/copy")
		require.NoError(t, err)
		require.Equal(t, vfs.KindFile, info.Kind)
	})
}

func TestRenameOrMove(t *testing.T) {
	t.Run("RenameKeepsContentAndBlocks", func(t *testing.T) {
		fs, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/old", []byte("data")))
		before := fs.Stats()

		require.NoError(t, session.RenameOrMove("/old", "/new"))
		require.Equal(t, before, fs.Stats())

		got, err := session.ReadFile("/new")
		require.NoError(t, err)
		require.Equal(t, []byte("data"), got)
		_, err = session.ReadFile("/old")
		assertCode(t, err, vfs.ErrNotFound)
	})

	t.Run("IntoExistingDirectoryKeepsName", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/f", []byte("x")))
		require.NoError(t, session.CreateDirectory("/dir"))

		require.NoError(t, session.RenameOrMove("/f", "/dir"))
		got, err := session.ReadFile("/dir/f")
		require.NoError(t, err)
		require.Equal(t, []byte("x"), got)
	})

	t.Run("MoveDirectoryRewiresDotDot", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/a"))
		require.NoError(t, session.CreateDirectory("/b"))
		require.NoError(t, session.CreateDirectory("/a/sub"))
		require.NoError(t, session.CreateFile("/a/sub/f", []byte("v")))

		require.NoError(t, session.RenameOrMove("/a/sub", "/b"))

		got, err := session.ReadFile("/b/sub/f")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)

		// ".." now points at the new parent
		got, err = session.ReadFile("/b/sub/../sub/f")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)
	})

	t.Run("IntoOwnDescendant", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateDirectory("/a"))
		require.NoError(t, session.CreateDirectory("/a/b"))

		assertCode(t, session.RenameOrMove("/a", "/a/b"), vfs.ErrInvalidMove)
		assertCode(t, session.RenameOrMove("/a", "/a/b/nested"), vfs.ErrInvalidMove)
	})

	t.Run("ExistingFileDestination", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/src", nil))
		require.NoError(t, session.CreateFile("/dst", nil))
		assertCode(t, session.RenameOrMove("/src", "/dst"), vfs.ErrAlreadyExists)
	})

	t.Run("MissingSource", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		assertCode(t, session.RenameOrMove("/gone", "/x"), vfs.ErrNotFound)
	})

	t.Run("NoOpSamePath", func(t *testing.T) {
		_, session := newTestFS(t, testGeometry())
		require.NoError(t, session.CreateFile("/f", []byte("v")))
		require.NoError(t, session.RenameOrMove("/f", "/f"))

		got, err := session.ReadFile("/f")
		require.NoError(t, err)
		require.Equal(t, []byte("v"), got)
	})
}

// ============================================================================
// Permissions
// ============================================================================

func TestPermissions(t *testing.T) {
	t.Run("OtherClassDeniedWrite", func(t *testing.T) {
		fs, _ := newTestFS(t, testGeometry())
		alice := vfs.NewSession(fs, "alice")
		bob := vfs.NewSession(fs, "bob")

		// Mode 0644: owner writes, others read
		require.NoError(t, alice.CreateFile("/shared.txt", []byte("v1")))
		assertCode(t, bob.AppendContent("/shared.txt", []byte("v2")), vfs.ErrPermissionDenied)

		got, err := bob.ReadFile("/shared.txt")
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), got)
	})

	t.Run("DirectoryWriteGatesCreation", func(t *testing.T) {
		fs, _ := newTestFS(t, testGeometry())
		alice := vfs.NewSession(fs, "alice")
		bob := vfs.NewSession(fs, "bob")

		// Mode 0755: only the owner may add entries
		require.NoError(t, alice.CreateDirectory("/home"))
		assertCode(t, bob.CreateFile("/home/intruder", nil), vfs.ErrPermissionDenied)
		require.NoError(t, alice.CreateFile("/home/own", nil))

		// Deletion also mutates the directory
		assertCode(t, bob.DeleteFile("/home/own"), vfs.ErrPermissionDenied)
	})

	t.Run("SuperuserBypass", func(t *testing.T) {
		fs, _ := newTestFS(t, testGeometry())
		alice := vfs.NewSession(fs, "alice")
		root := vfs.NewSession(fs, "root")

		require.NoError(t, alice.CreateDirectory("/home"))
		require.NoError(t, alice.CreateFile("/home/f", []byte("x")))

		require.NoError(t, root.AppendContent("/home/f", []byte("y")))
		require.NoError(t, root.DeleteFile("/home/f"))
	})

	t.Run("OwnershipRecorded", func(t *testing.T) {
		fs, _ := newTestFS(t, testGeometry())
		alice := vfs.NewSession(fs, "alice")

		require.NoError(t, alice.CreateFile("/mine", nil))
		info, err := alice.Stat("/mine")
		require.NoError(t, err)
		require.Equal(t, "alice", info.Owner)
		require.Equal(t, "alice", info.Creator)
		require.Equal(t, vfs.DefaultFileMode, info.Mode)
	})
}

// ============================================================================
// Export and end-to-end scenario
// ============================================================================

func TestExportFile(t *testing.T) {
	_, session := newTestFS(t, testGeometry())
	require.NoError(t, session.CreateFile("/data", []byte("exported bytes")))

	hostPath := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, session.ExportFile("/data", hostPath))

	got, err := os.ReadFile(hostPath)
	require.NoError(t, err)
	require.Equal(t, []byte("exported bytes"), got)
}

func TestNotebookScenario(t *testing.T) {
	_, session := newTestFS(t, testGeometry())

	require.NoError(t, session.CreateDirectory("/docs"))
	require.NoError(t, session.WriteFile("/docs/note.txt", []byte("hello\n")))
	require.NoError(t, session.AppendContent("/docs/note.txt", []byte("world\n")))

	require.NoError(t, session.ChangeDirectory("docs"))
	require.Equal(t, "/docs", session.WorkingDirectory())

	got, err := session.ReadFile("note.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("hello\nworld\n"), got)

	require.NoError(t, session.CopyFile("note.txt", "backup.txt"))
	require.NoError(t, session.RenameOrMove("backup.txt", "/old-note.txt"))

	entries, err := session.ListDirectory("/")
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	require.Equal(t, []string{".", "..", "docs", "old-note.txt"}, names)

	require.NoError(t, session.DeleteFile("/old-note.txt"))
	require.NoError(t, session.DeleteFile("note.txt"))
	require.NoError(t, session.ChangeDirectory("/"))
	require.NoError(t, session.RemoveDirectory("/docs"))
}
