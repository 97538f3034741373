package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"photovault/internal/keystore"
	"photovault/internal/store"
)

const (
	// Default timeout for store operations
	defaultTimeout = 5 * time.Minute
	// Default data directory path
	defaultDataDir = "/data"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	keyDir := filepath.Join(dataDir, "keys")

	ok := false
	switch command {
	case "backup":
		ok = withStore(ctx, dataDir, keyDir, runBackup)
	case "restore":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: restore requires a backup path")
			printUsage()
			os.Exit(1)
		}
		path := os.Args[2]
		ok = withStore(ctx, dataDir, keyDir, func(ctx context.Context, s *store.Store) bool {
			return runRestore(ctx, s, path)
		})
	case "list":
		ok = withStore(ctx, dataDir, keyDir, runList)
	case "vacuum":
		ok = withStore(ctx, dataDir, keyDir, runVacuum)
	case "export-key":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: export-key requires an output file")
			printUsage()
			os.Exit(1)
		}
		ok = runExportKey(keyDir, os.Args[2])
	case "import-key":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: import-key requires an input file")
			printUsage()
			os.Exit(1)
		}
		ok = runImportKey(keyDir, os.Args[2])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}

	if !ok {
		os.Exit(1)
	}
}

// withStore opens the store, runs fn, and closes the store again.
func withStore(ctx context.Context, dataDir, keyDir string, fn func(context.Context, *store.Store) bool) bool {
	keys, err := keystore.NewFileProvider(keyDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open keystore: %v\n", err)
		return false
	}

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = filepath.Join(dataDir, "backups")
	}

	dbPath := filepath.Join(dataDir, "photovault.db")
	s, err := store.New(ctx, dbPath, keys, store.Options{BackupDir: backupDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open store: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		return false
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
		}
	}()

	ctx, cancelTimeout := context.WithTimeout(ctx, defaultTimeout)
	defer cancelTimeout()
	return fn(ctx, s)
}

func runBackup(ctx context.Context, s *store.Store) bool {
	backup, err := s.CreateBackup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Backup failed: %v\n", err)
		return false
	}
	fmt.Printf("Backup written to %s (%d bytes, schema v%d)\n",
		backup.Path, backup.Manifest.PayloadSize, backup.Manifest.SchemaVersion)
	return true
}

func runRestore(ctx context.Context, s *store.Store, path string) bool {
	fmt.Printf("Restoring from %s will replace the current library index.\n", path)
	if !confirm("Continue? [y/N]: ") {
		fmt.Println("Aborted.")
		return false
	}

	if err := s.RestoreFromBackup(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Restore failed: %v\n", err)
		return false
	}
	fmt.Println("Restore complete.")
	return true
}

func runList(_ context.Context, s *store.Store) bool {
	backups, err := s.ListBackups()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list backups: %v\n", err)
		return false
	}
	if len(backups) == 0 {
		fmt.Println("No backups found.")
		return true
	}
	for _, b := range backups {
		fmt.Printf("%s  %s  %d bytes\n",
			b.Manifest.CreatedAt.Format(time.RFC3339), b.Path, b.Manifest.PayloadSize)
	}
	return true
}

func runVacuum(ctx context.Context, s *store.Store) bool {
	if err := s.Vacuum(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Vacuum failed: %v\n", err)
		return false
	}
	fmt.Println("Vacuum complete.")
	return true
}

// confirm reads a line from stdin and reports whether it was an explicit yes.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// sanitizeCommand returns a safe representation of a command string for
// display. Any character outside [a-zA-Z0-9_-] is replaced with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("PhotoVault Library Administration")
	fmt.Println("")
	fmt.Println("Usage: pvadmin <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  backup             - Create a sealed library backup")
	fmt.Println("  restore <path>     - Restore the library from a backup")
	fmt.Println("  list               - List available backups")
	fmt.Println("  vacuum             - Compact the store file")
	fmt.Println("  export-key <file>  - Export encryption keys to a sealed bundle")
	fmt.Println("  import-key <file>  - Import encryption keys from a sealed bundle")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATA_DIR   - Path to data directory (default: %s)\n", defaultDataDir)
	fmt.Println("  BACKUP_DIR - Path to backup directory (default: DATA_DIR/backups)")
}
