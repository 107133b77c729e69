package manager

import (
	"fmt"

	"github.com/vigil-labs/launcher/internal/role"
)

// Vocabulary holds the human-readable status strings of one role. The
// presentation layer shows them verbatim.
type Vocabulary struct {
	AlreadyRunning string
	Starting       string
	Running        string
	Stopping       string
	NotRunning     string
	prefix         string
}

// Error formats a failure message.
func (v Vocabulary) Error(msg string) string { return v.prefix + "Error - " + msg }

// Exited formats the exit of a daemon that was not stopped by the user.
func (v Vocabulary) Exited(code int) string {
	return fmt.Sprintf("%sExited with code %d", v.prefix, code)
}

// VocabularyFor returns the status strings of r.
func VocabularyFor(r role.Role) Vocabulary {
	if r == role.Wallet {
		p := "Wallet Status: "
		return Vocabulary{
			AlreadyRunning: p + "Already Open",
			Starting:       p + "Opening...",
			Running:        p + "Opened",
			Stopping:       p + "Closing...",
			NotRunning:     p + "Not Open",
			prefix:         p,
		}
	}
	p := "Node Status: "
	return Vocabulary{
		AlreadyRunning: p + "Already Running",
		Starting:       p + "Starting...",
		Running:        p + "Running",
		Stopping:       p + "Stopping...",
		NotRunning:     p + "Not Running",
		prefix:         p,
	}
}
