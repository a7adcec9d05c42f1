package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version must have a non-empty default")
	}
	if BuildTime == "" || GitCommit == "" {
		t.Error("build metadata must have non-empty defaults")
	}
}
