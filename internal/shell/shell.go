// Package shell implements the interactive command loop over one
// filesystem session. Commands mirror the familiar Unix surface (touch,
// rm, cat, echo with redirection, cp, mv, ln -s, mkdir, rmdir, ls, cd,
// pwd, stat, export, df) plus maintenance commands (format, backup).
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vdiskfs/vdiskfs/pkg/vfs"
)

// BackupFunc uploads the current disk image and returns the object key.
type BackupFunc func(ctx context.Context) (string, error)

// Shell is the interactive command loop.
type Shell struct {
	fs      *vfs.Filesystem
	session *vfs.Session
	scanner *bufio.Scanner
	out     io.Writer
	backup  BackupFunc

	commands map[string]command
}

type command struct {
	usage   string
	summary string
	run     func(sh *Shell, args []string) error
}

// New builds a shell over the session. backup may be nil when no backup
// target is configured.
func New(fs *vfs.Filesystem, session *vfs.Session, in io.Reader, out io.Writer, backup BackupFunc) *Shell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	sh := &Shell{
		fs:      fs,
		session: session,
		scanner: scanner,
		out:     out,
		backup:  backup,
	}
	sh.commands = map[string]command{
		"touch":  {"touch <path>", "create an empty file", (*Shell).cmdTouch},
		"rm":     {"rm <path>", "delete a file or symlink", (*Shell).cmdRm},
		"cat":    {"cat <path>", "print file content", (*Shell).cmdCat},
		"echo":   {"echo <text> [> path | >> path]", "print text or write it to a file", (*Shell).cmdEcho},
		"cp":     {"cp <src> <dst>", "copy a file", (*Shell).cmdCp},
		"mv":     {"mv <src> <dst>", "move or rename an entry", (*Shell).cmdMv},
		"ln":     {"ln -s <target> <link>", "create a symbolic link", (*Shell).cmdLn},
		"mkdir":  {"mkdir <path>", "create a directory", (*Shell).cmdMkdir},
		"rmdir":  {"rmdir <path>", "remove an empty directory", (*Shell).cmdRmdir},
		"ls":     {"ls [path]", "list directory entries", (*Shell).cmdLs},
		"cd":     {"cd <path>", "change the working directory", (*Shell).cmdCd},
		"pwd":    {"pwd", "print the working directory", (*Shell).cmdPwd},
		"stat":   {"stat <path>", "show entry metadata", (*Shell).cmdStat},
		"export": {"export <path> <hostpath>", "copy a file out to the host", (*Shell).cmdExport},
		"df":     {"df", "show block and inode usage", (*Shell).cmdDf},
		"format": {"format", "erase everything and reinitialize", (*Shell).cmdFormat},
		"backup": {"backup", "upload the disk image to S3", (*Shell).cmdBackup},
		"help":   {"help", "list commands", (*Shell).cmdHelp},
	}
	return sh
}

// Run reads and executes commands until EOF or an exit command. Command
// errors are printed, never fatal.
func (sh *Shell) Run() error {
	for {
		fmt.Fprintf(sh.out, "%s@vdiskfs:%s$ ", sh.session.User(), sh.session.WorkingDirectory())
		if !sh.scanner.Scan() {
			fmt.Fprintln(sh.out)
			return sh.scanner.Err()
		}

		line := strings.TrimSpace(sh.scanner.Text())
		if line == "" {
			continue
		}

		args, err := tokenize(line)
		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
			continue
		}

		name := args[0]
		if name == "exit" || name == "quit" {
			return nil
		}

		cmd, ok := sh.commands[name]
		if !ok {
			fmt.Fprintf(sh.out, "unknown command %q (try \"help\")\n", name)
			continue
		}
		if err := cmd.run(sh, args[1:]); err != nil {
			fmt.Fprintf(sh.out, "%s: %v\n", name, err)
		}
	}
}

// Execute runs a single already-tokenized command, for non-interactive
// callers and tests.
func (sh *Shell) Execute(args []string) error {
	if len(args) == 0 {
		return nil
	}
	cmd, ok := sh.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(sh, args[1:])
}

func wantArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (sh *Shell) cmdTouch(args []string) error {
	if err := wantArgs(args, 1, sh.commands["touch"].usage); err != nil {
		return err
	}
	return sh.session.CreateFile(args[0], nil)
}

func (sh *Shell) cmdRm(args []string) error {
	if err := wantArgs(args, 1, sh.commands["rm"].usage); err != nil {
		return err
	}
	return sh.session.DeleteFile(args[0])
}

func (sh *Shell) cmdCat(args []string) error {
	if err := wantArgs(args, 1, sh.commands["cat"].usage); err != nil {
		return err
	}
	content, err := sh.session.ReadFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(sh.out, string(content))
	if len(content) > 0 && content[len(content)-1] != '\n' {
		fmt.Fprintln(sh.out)
	}
	return nil
}

// cmdEcho prints its arguments, or writes them to a file when the
// argument list carries a ">" (truncate) or ">>" (append) redirection.
func (sh *Shell) cmdEcho(args []string) error {
	for i, arg := range args {
		if arg != ">" && arg != ">>" {
			continue
		}
		if i != len(args)-2 {
			return fmt.Errorf("usage: %s", sh.commands["echo"].usage)
		}
		text := strings.Join(args[:i], " ") + "\n"
		path := args[len(args)-1]
		if arg == ">>" {
			return sh.session.AppendContent(path, []byte(text))
		}
		return sh.session.WriteFile(path, []byte(text))
	}

	fmt.Fprintln(sh.out, strings.Join(args, " "))
	return nil
}

func (sh *Shell) cmdCp(args []string) error {
	if err := wantArgs(args, 2, sh.commands["cp"].usage); err != nil {
		return err
	}
	return sh.session.CopyFile(args[0], args[1])
}

func (sh *Shell) cmdMv(args []string) error {
	if err := wantArgs(args, 2, sh.commands["mv"].usage); err != nil {
		return err
	}
	return sh.session.RenameOrMove(args[0], args[1])
}

func (sh *Shell) cmdLn(args []string) error {
	if len(args) != 3 || args[0] != "-s" {
		return fmt.Errorf("usage: %s", sh.commands["ln"].usage)
	}
	return sh.session.CreateSymlink(args[1], args[2])
}

func (sh *Shell) cmdMkdir(args []string) error {
	if err := wantArgs(args, 1, sh.commands["mkdir"].usage); err != nil {
		return err
	}
	return sh.session.CreateDirectory(args[0])
}

func (sh *Shell) cmdRmdir(args []string) error {
	if err := wantArgs(args, 1, sh.commands["rmdir"].usage); err != nil {
		return err
	}
	return sh.session.RemoveDirectory(args[0])
}

func (sh *Shell) cmdLs(args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else if len(args) > 1 {
		return fmt.Errorf("usage: %s", sh.commands["ls"].usage)
	}

	entries, err := sh.session.ListDirectory(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		marker := ""
		switch entry.Kind {
		case vfs.KindDirectory:
			marker = "/"
		case vfs.KindSymlink:
			marker = "@"
		}
		fmt.Fprintf(sh.out, "%s%s\n", entry.Name, marker)
	}
	return nil
}

func (sh *Shell) cmdCd(args []string) error {
	if err := wantArgs(args, 1, sh.commands["cd"].usage); err != nil {
		return err
	}
	return sh.session.ChangeDirectory(args[0])
}

func (sh *Shell) cmdPwd(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", sh.commands["pwd"].usage)
	}
	fmt.Fprintln(sh.out, sh.session.WorkingDirectory())
	return nil
}

func (sh *Shell) cmdStat(args []string) error {
	if err := wantArgs(args, 1, sh.commands["stat"].usage); err != nil {
		return err
	}
	info, err := sh.session.Stat(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(sh.out, "  Name:     %s\n", info.Name)
	fmt.Fprintf(sh.out, "  Kind:     %s\n", info.Kind)
	fmt.Fprintf(sh.out, "  Mode:     %s\n", info.Mode)
	fmt.Fprintf(sh.out, "  Owner:    %s\n", info.Owner)
	fmt.Fprintf(sh.out, "  Creator:  %s\n", info.Creator)
	fmt.Fprintf(sh.out, "  Size:     %d bytes in %d blocks\n", info.Size, info.Blocks)
	fmt.Fprintf(sh.out, "  Created:  %s\n", info.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(sh.out, "  Modified: %s\n", info.ModifiedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (sh *Shell) cmdExport(args []string) error {
	if err := wantArgs(args, 2, sh.commands["export"].usage); err != nil {
		return err
	}
	return sh.session.ExportFile(args[0], args[1])
}

func (sh *Shell) cmdDf(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", sh.commands["df"].usage)
	}
	stats := sh.fs.Stats()
	usedBlocks := stats.TotalBlocks - stats.FreeBlocks
	usedInodes := stats.TotalInodes - stats.FreeInodes
	fmt.Fprintf(sh.out, "blocks: %d/%d used (%d bytes each)\n", usedBlocks, stats.TotalBlocks, stats.BlockSize)
	fmt.Fprintf(sh.out, "inodes: %d/%d used\n", usedInodes, stats.TotalInodes)
	return nil
}

func (sh *Shell) cmdFormat(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", sh.commands["format"].usage)
	}

	fmt.Fprint(sh.out, "this erases all data; type \"yes\" to continue: ")
	if !sh.scanner.Scan() || strings.TrimSpace(sh.scanner.Text()) != "yes" {
		fmt.Fprintln(sh.out, "aborted")
		return nil
	}

	if err := sh.fs.Format(); err != nil {
		return err
	}
	if err := sh.session.ChangeDirectory(vfs.Separator); err != nil {
		return err
	}
	fmt.Fprintln(sh.out, "formatted")
	return nil
}

func (sh *Shell) cmdBackup(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("usage: %s", sh.commands["backup"].usage)
	}
	if sh.backup == nil {
		return fmt.Errorf("no backup target configured")
	}

	key, err := sh.backup(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "uploaded as %s\n", key)
	return nil
}

func (sh *Shell) cmdHelp(args []string) error {
	names := make([]string, 0, len(sh.commands))
	for name := range sh.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cmd := sh.commands[name]
		fmt.Fprintf(sh.out, "  %-40s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintf(sh.out, "  %-40s %s\n", "exit", "leave the shell")
	return nil
}
