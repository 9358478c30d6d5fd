package domain

import "path/filepath"

const (
	// GardenDirName is the name of the internal project state directory.
	GardenDirName = ".garden"

	// StoreDirName is the name of the build info store directory.
	StoreDirName = "store"

	// HistoryFileName is the name of the result history database.
	HistoryFileName = "history.db"

	// SocketFileName is the name of the daemon socket.
	SocketFileName = "daemon.sock"

	// DaemonLogFileName is the name of the daemon log file.
	DaemonLogFileName = "daemon.log"

	// ProjectFileName is the name of the project configuration file.
	ProjectFileName = "garden.yml"

	// ModuleFileName is the name of a module configuration file.
	ModuleFileName = "project.garden.yml"

	// IgnoreFileName is the name of the project ignore file.
	IgnoreFileName = ".gardenignore"

	// GitIgnoreFileName is also honoured as an ignore file.
	GitIgnoreFileName = ".gitignore"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// IsConfigFileName reports whether base names a project or module config file.
func IsConfigFileName(base string) bool {
	return base == ProjectFileName || base == ModuleFileName
}

// IsIgnoreFileName reports whether base names an ignore file.
func IsIgnoreFileName(base string) bool {
	return base == IgnoreFileName || base == GitIgnoreFileName
}

// DefaultStorePath returns the build info store path under root.
func DefaultStorePath(root string) string {
	return filepath.Join(root, GardenDirName, StoreDirName)
}

// DefaultHistoryPath returns the result history path under root.
func DefaultHistoryPath(root string) string {
	return filepath.Join(root, GardenDirName, HistoryFileName)
}

// DefaultSocketPath returns the daemon socket path under root.
func DefaultSocketPath(root string) string {
	return filepath.Join(root, GardenDirName, SocketFileName)
}

// DefaultDaemonLogPath returns the daemon log path under root.
func DefaultDaemonLogPath(root string) string {
	return filepath.Join(root, GardenDirName, DaemonLogFileName)
}
