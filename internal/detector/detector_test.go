package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vigil-labs/launcher/internal/role"
)

func TestDetectReady(t *testing.T) {
	cases := []struct {
		name  string
		role  role.Role
		chunk string
		want  bool
	}{
		{"node marker alone", role.Node, "RPC server listening on 127.0.0.1:9109", true},
		{"node marker mid chunk", role.Node, "2024-01-01 [INF] RPCS: RPC server listening on 127.0.0.1:9109\n[INF] SYNC: syncing", true},
		{"node marker on later line", role.Node, "loading blocks\nopening db\nRPC server listening on [::1]:9109\n", true},
		{"node unrelated", role.Node, "Loading block index...", false},
		{"node split marker", role.Node, "RPC server lis", false},
		{"wallet marker", role.Wallet, "[INF] WLLT: Wallet is unlocked", true},
		{"wallet ignores node marker", role.Wallet, "RPC server listening on 127.0.0.1:9110", false},
		{"empty chunk", role.Node, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectReady(tc.role, tc.chunk))
		})
	}
}

func TestForRoleOverride(t *testing.T) {
	d := ForRole(role.Node, "ready!")
	assert.True(t, d.Ready("service ready!"))
	assert.False(t, d.Ready(NodeMarker))
	assert.Equal(t, "marker:ready!", d.Describe())
}

func TestEmptyMarkerNeverReady(t *testing.T) {
	assert.False(t, MarkerDetector{}.Ready("anything"))
}
