package domain

import "path/filepath"

const (
	// WorkspaceDirName is the name of the internal workspace metadata directory.
	WorkspaceDirName = ".taskgraph"

	// StoreDirName is the name of the shared content-addressed artifact store.
	StoreDirName = "store"

	// DoneMarkerDirName is the name of the per-package done-marker directory.
	DoneMarkerDirName = "done"

	// DebugLogFile is the name of the debug log file.
	DebugLogFile = "debug.log"

	// DirPerm is the default permission for directories.
	DirPerm = 0o750

	// FilePerm is the default permission for files.
	FilePerm = 0o644

	// PrivateFilePerm is the permission used for files holding
	// done-markers and cache manifests: owner read/write only.
	PrivateFilePerm = 0o600
)

// DefaultStorePath returns the default path for the shared artifact store,
// rooted at the workspace root.
func DefaultStorePath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, WorkspaceDirName, StoreDirName)
}

// DefaultDoneMarkerPath returns the default directory for a package's
// done-markers, rooted at the package directory.
func DefaultDoneMarkerPath(packageDir string) string {
	return filepath.Join(packageDir, WorkspaceDirName, DoneMarkerDirName)
}

// DefaultDebugLogPath returns the default path for the debug log.
func DefaultDebugLogPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, WorkspaceDirName, DebugLogFile)
}
