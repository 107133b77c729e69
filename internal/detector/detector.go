// Package detector decides when a supervised daemon has finished initializing.
//
// The current heuristic scans raw stdout chunks for a literal marker. A marker
// split across two reads is not detected; callers accept that false negative
// rather than buffering output across chunks.
package detector

import (
	"strings"

	"github.com/vigil-labs/launcher/internal/role"
)

// Default readiness markers printed by the bundled binaries.
const (
	NodeMarker   = "RPC server listening on"
	WalletMarker = "Wallet is unlocked"
)

// Detector maps one chunk of daemon output to a "became ready" signal.
// It must be safe for concurrent use and must not keep state between chunks.
type Detector interface {
	// Ready returns true if chunk proves the daemon is ready.
	Ready(chunk string) bool
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// MarkerDetector reports readiness when a chunk contains Marker anywhere.
type MarkerDetector struct{ Marker string }

func (d MarkerDetector) Ready(chunk string) bool {
	if d.Marker == "" {
		return false
	}
	return strings.Contains(chunk, d.Marker)
}

func (d MarkerDetector) Describe() string { return "marker:" + d.Marker }

// ForRole returns the default detector for r, or marker when it is non-empty.
func ForRole(r role.Role, marker string) Detector {
	if marker != "" {
		return MarkerDetector{Marker: marker}
	}
	switch r {
	case role.Wallet:
		return MarkerDetector{Marker: WalletMarker}
	default:
		return MarkerDetector{Marker: NodeMarker}
	}
}

// DetectReady is the stateless helper form of ForRole(r, "").Ready(chunk).
func DetectReady(r role.Role, chunk string) bool {
	return ForRole(r, "").Ready(chunk)
}
