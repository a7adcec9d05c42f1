package updater

import "fmt"

// SnapshotError reports a failure while backing up protected data. The run
// aborts before any destructive step, so the workspace is untouched.
type SnapshotError struct {
	Err error
}

func (e *SnapshotError) Error() string { return fmt.Sprintf("snapshot failed: %v", e.Err) }
func (e *SnapshotError) Unwrap() error { return e.Err }

// InstallError reports a failure while installing the fresh tree. The purge
// already ran, so the snapshot is retained for manual recovery.
type InstallError struct {
	SnapshotPath string
	Err          error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed: %v (snapshot retained at %s)", e.Err, e.SnapshotPath)
}
func (e *InstallError) Unwrap() error { return e.Err }

// RestoreError reports a failure while restoring protected data into the
// updated workspace. The snapshot is the only surviving copy of that data
// and is retained.
type RestoreError struct {
	SnapshotPath string
	Err          error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore failed: %v (snapshot retained at %s)", e.Err, e.SnapshotPath)
}
func (e *RestoreError) Unwrap() error { return e.Err }

// UpdateError is the terminal error of a failed run. State names the phase
// that failed; SnapshotPath is set when a retained snapshot exists.
type UpdateError struct {
	State        State
	SnapshotPath string
	Err          error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update failed during %s: %v", e.State, e.Err)
}
func (e *UpdateError) Unwrap() error { return e.Err }
