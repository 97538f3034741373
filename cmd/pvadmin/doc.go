// Command pvadmin provides offline administration for a PhotoVault library.
//
// It operates directly on the store file and must not run while the server
// is up; SQLite locking will reject concurrent writers, but backups taken
// under load belong to the server's own backup endpoint instead.
//
// Usage:
//
//	pvadmin <command> [args]
//
// Commands:
//
//	backup              Create a sealed, compressed snapshot of the library
//	                    index with an integrity manifest.
//
//	restore <path>      Replace the library index from a backup file. The
//	                    backup is verified against its manifest first and
//	                    the command asks for confirmation.
//
//	list                List available backups with creation time and size.
//
//	vacuum              Compact the store file.
//
//	export-key <file>   Write the library's encryption keys to a single
//	                    passphrase-sealed bundle for offsite escrow.
//
//	import-key <file>   Restore encryption keys from a sealed bundle.
//	                    Existing key files are never overwritten.
//
// Environment:
//
//	DATA_DIR   - Path to the data directory (default: /data)
//	BACKUP_DIR - Path to the backup directory (default: DATA_DIR/backups)
//
// Notes:
//
// Without its keys a library's sealed metadata and backups are unreadable.
// Keep the exported bundle somewhere safer than the disk the library
// lives on.
package main
