package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/vdiskfs/vdiskfs/internal/logger"
	"github.com/vdiskfs/vdiskfs/internal/shell"
	"github.com/vdiskfs/vdiskfs/pkg/config"
	"github.com/vdiskfs/vdiskfs/pkg/store/image"
	"github.com/vdiskfs/vdiskfs/pkg/vfs"
)

func main() {
	app := cli.App{
		Name:  "vdiskfs",
		Usage: "inode-based virtual disk filesystem",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override the configured log level (DEBUG, INFO, WARN, ERROR)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "shell",
				Usage:  "open the interactive shell (default command)",
				Action: runShell,
			},
			{
				Name:   "init",
				Usage:  "write a default configuration file",
				Action: runInit,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing configuration file",
					},
				},
			},
			{
				Name:   "format",
				Usage:  "erase the virtual disk and reinitialize it",
				Action: runFormat,
			},
			{
				Name:   "info",
				Usage:  "print disk geometry and usage",
				Action: runInfo,
			},
			{
				Name:   "backup",
				Usage:  "upload the disk image to the configured S3 bucket",
				Action: runBackup,
			},
		},
		// Plain "vdiskfs" opens the shell
		Action: runShell,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the configuration and applies the logging settings.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if override := ctx.String("log-level"); override != "" {
		level = override
	}
	logger.SetLevel(level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return nil, err
	}

	return cfg, nil
}

// openFilesystem builds the store and loads the filesystem over it.
func openFilesystem(cfg *config.Config) (*vfs.Filesystem, func(), error) {
	st, err := config.CreateStore(&cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	fs, err := vfs.Open(st)
	if err != nil {
		st.Close()
		if vfs.IsCode(err, vfs.ErrStorageCorrupt) {
			return nil, nil, fmt.Errorf("%w\nthe disk was not modified; run \"vdiskfs format\" to erase and reinitialize it", err)
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := fs.Close(); err != nil {
			logger.Error("Failed to close store: %v", err)
		}
	}
	return fs, cleanup, nil
}

// currentUser resolves the OS identity for session ownership.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "anonymous"
}

func runShell(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	fs, cleanup, err := openFilesystem(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	session := vfs.NewSession(fs, currentUser())

	var backupFn shell.BackupFunc
	if cfg.Backup.Enabled && cfg.Storage.Type == "image" {
		backupFn = makeBackupFunc(cfg)
	}

	sh := shell.New(fs, session, os.Stdin, os.Stdout, backupFn)
	return sh.Run()
}

// makeBackupFunc defers uploader construction until the first backup
// command, so shell startup never depends on AWS configuration.
func makeBackupFunc(cfg *config.Config) shell.BackupFunc {
	return func(ctx context.Context) (string, error) {
		uploader, err := config.CreateBackupUploader(ctx, &cfg.Backup)
		if err != nil {
			return "", err
		}
		imagePath, _ := cfg.Storage.Image["path"].(string)
		return uploader.Upload(ctx, imagePath)
	}
}

func runInit(ctx *cli.Context) error {
	path := ctx.String("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !ctx.Bool("force") {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	var cfg config.Config
	config.ApplyDefaults(&cfg)

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to render default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("wrote default configuration to %s\n", path)
	return nil
}

func runFormat(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	st, err := config.CreateStore(&cfg.Storage)
	if err != nil {
		return err
	}
	defer st.Close()

	// Open the filesystem if the store is readable; otherwise build a
	// fresh one directly over the store. Either way the format call
	// rewrites the metadata from scratch.
	fs, err := vfs.Open(st)
	if err != nil && !vfs.IsCode(err, vfs.ErrStorageCorrupt) {
		return err
	}
	if fs == nil {
		if err := vfs.Reformat(st); err != nil {
			return err
		}
		fmt.Println("disk formatted")
		return nil
	}

	if err := fs.Format(); err != nil {
		return err
	}
	fmt.Println("disk formatted")
	return nil
}

func runInfo(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	fs, cleanup, err := openFilesystem(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := fs.Stats()
	fmt.Printf("storage type:   %s\n", cfg.Storage.Type)
	if cfg.Storage.Type == "image" {
		imagePath, _ := cfg.Storage.Image["path"].(string)
		fmt.Printf("image path:     %s\n", imagePath)
	}
	fmt.Printf("block size:     %d bytes\n", stats.BlockSize)
	fmt.Printf("blocks:         %d used / %d total\n", stats.TotalBlocks-stats.FreeBlocks, stats.TotalBlocks)
	fmt.Printf("inodes:         %d used / %d total\n", stats.TotalInodes-stats.FreeInodes, stats.TotalInodes)
	return nil
}

func runBackup(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if cfg.Storage.Type != "image" {
		return fmt.Errorf("backup requires the image storage type (configured type is %q)", cfg.Storage.Type)
	}

	uploader, err := config.CreateBackupUploader(ctx.Context, &cfg.Backup)
	if err != nil {
		return err
	}

	imagePath, _ := cfg.Storage.Image["path"].(string)
	if imagePath == "" {
		return fmt.Errorf("storage.image: path is required")
	}

	// Open the store first so a half-written image never gets archived.
	st, err := image.Open(imagePath, cfg.Storage.Geometry.Geometry())
	if err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}

	key, err := uploader.Upload(ctx.Context, imagePath)
	if err != nil {
		return err
	}
	fmt.Printf("uploaded as %s\n", key)
	return nil
}
