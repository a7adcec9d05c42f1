package launch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
)

// pythonPath picks the installer's virtualenv interpreter when present and
// falls back to the system python3 otherwise.
func (p *Preparer) pythonPath() string {
	venv := filepath.Join(p.ws.Root(), "installer_files", "env", "bin", "python")
	if _, err := os.Stat(venv); err == nil {
		return venv
	}
	return "python3"
}

// Command builds the process command that starts the application. The caller
// owns the process lifecycle; there is no supervision or restart here.
func (p *Preparer) Command(ctx context.Context) *exec.Cmd {
	args := append([]string{"server.py"}, p.Flags()...)
	cmd := exec.CommandContext(ctx, p.pythonPath(), args...)
	cmd.Dir = p.ws.Root()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	return cmd
}
