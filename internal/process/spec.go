package process

import (
	"os/exec"
	"path/filepath"
	"time"

	"github.com/vigil-labs/launcher/internal/logger"
)

// Spec describes one supervised daemon executable.
type Spec struct {
	Name         string        `json:"name"`
	Executable   string        `json:"executable"`    // absolute path of the daemon binary
	WorkDir      string        `json:"work_dir"`      // defaults to the executable's directory
	Args         []string      `json:"args"`          // none for the bundled daemons
	Env          []string      `json:"env"`           // extra "K=V" entries over the launcher env
	Marker       string        `json:"marker"`        // readiness marker; empty means role default
	StartTimeout time.Duration `json:"start_timeout"` // 0 waits for readiness forever
	StopWait     time.Duration `json:"stop_wait"`     // grace period before SIGKILL on shutdown
	Log          logger.Config `json:"log"`           // stdout/stderr capture
}

// Dir returns the working directory the daemon is launched in.
func (s Spec) Dir() string {
	if s.WorkDir != "" {
		return s.WorkDir
	}
	return filepath.Dir(s.Executable)
}

// BuildCommand constructs the *exec.Cmd for the daemon. The executable is run
// directly, never through a shell.
func (s Spec) BuildCommand() *exec.Cmd {
	// #nosec G204 -- executable path comes from the launcher's own config
	cmd := exec.Command(s.Executable, s.Args...)
	cmd.Dir = s.Dir()
	configureSysProcAttr(cmd)
	return cmd
}
