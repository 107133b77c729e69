package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigil-labs/launcher/internal/role"
)

func TestVocabulary(t *testing.T) {
	node := VocabularyFor(role.Node)
	assert.Equal(t, "Node Status: Already Running", node.AlreadyRunning)
	assert.Equal(t, "Node Status: Starting...", node.Starting)
	assert.Equal(t, "Node Status: Running", node.Running)
	assert.Equal(t, "Node Status: Stopping...", node.Stopping)
	assert.Equal(t, "Node Status: Not Running", node.NotRunning)
	assert.Equal(t, "Node Status: Error - boom", node.Error("boom"))
	assert.Equal(t, "Node Status: Exited with code 1", node.Exited(1))

	wallet := VocabularyFor(role.Wallet)
	assert.Equal(t, "Wallet Status: Already Open", wallet.AlreadyRunning)
	assert.Equal(t, "Wallet Status: Opening...", wallet.Starting)
	assert.Equal(t, "Wallet Status: Opened", wallet.Running)
	assert.Equal(t, "Wallet Status: Exited with code -1", wallet.Exited(-1))
}

func TestStateString(t *testing.T) {
	want := []string{"stopped", "starting", "running", "stopping", "error"}
	for i, s := range States {
		assert.Equal(t, want[i], s.String())
	}
	assert.Equal(t, "unknown", State(42).String())
}
