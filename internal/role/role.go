// Package role names the two daemon slots the launcher supervises.
package role

import (
	"fmt"
	"strings"
)

// Role identifies which daemon slot a command or status applies to.
type Role string

const (
	Node   Role = "node"
	Wallet Role = "wallet"
)

// All lists every role in a stable order.
var All = []Role{Node, Wallet}

func (r Role) String() string { return string(r) }

// Label is the capitalised form used in status messages ("Node", "Wallet").
func (r Role) Label() string {
	switch r {
	case Node:
		return "Node"
	case Wallet:
		return "Wallet"
	default:
		return strings.ToUpper(string(r))
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == Node || r == Wallet }

// Parse converts a case-insensitive role name.
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
