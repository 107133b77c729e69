package bridge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vigil-labs/launcher/internal/role"
)

var (
	// ErrUnknownCommand is returned for any inbound name outside the four commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrClosed is returned once the bridge has been shut down.
	ErrClosed = errors.New("bridge closed")
)

// Command is the only inbound unit. It carries no payload; the role is implied
// by the name.
type Command string

const (
	StartNode     Command = "start-node"
	StopNode      Command = "stop-node"
	OpenWallet    Command = "open-wallet"
	InstallUpdate Command = "install-update"
)

// Commands lists every accepted command.
var Commands = []Command{StartNode, StopNode, OpenWallet, InstallUpdate}

// ParseCommand accepts exactly the four command names.
func ParseCommand(s string) (Command, error) {
	c := Command(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return c, nil
}

func (c Command) Valid() bool {
	switch c {
	case StartNode, StopNode, OpenWallet, InstallUpdate:
		return true
	}
	return false
}

// Role returns the daemon the command targets; install-update has none.
func (c Command) Role() (role.Role, bool) {
	switch c {
	case StartNode, StopNode:
		return role.Node, true
	case OpenWallet:
		return role.Wallet, true
	}
	return "", false
}

// Channel names an outbound status stream.
type Channel string

const (
	NodeStatus    Channel = "node-status"
	WalletStatus  Channel = "wallet-status"
	InstallStatus Channel = "install-status"
)

// Channels lists every outbound channel.
var Channels = []Channel{NodeStatus, WalletStatus, InstallStatus}

func (c Channel) Valid() bool {
	return c == NodeStatus || c == WalletStatus || c == InstallStatus
}

// ParseChannel accepts exactly the three channel names.
func ParseChannel(s string) (Channel, error) {
	c := Channel(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("unknown channel %q", s)
	}
	return c, nil
}

// ChannelFor returns the status channel of a daemon role.
func ChannelFor(r role.Role) Channel {
	if r == role.Wallet {
		return WalletStatus
	}
	return NodeStatus
}

// StatusEvent is the only outbound unit. Values are copied, never shared.
type StatusEvent struct {
	Channel Channel   `json:"channel"`
	Role    role.Role `json:"role,omitempty"`
	Message string    `json:"message"`
}

// NewStatus builds the event for a daemon role.
func NewStatus(r role.Role, message string) StatusEvent {
	return StatusEvent{Channel: ChannelFor(r), Role: r, Message: message}
}

// InstallNotImplemented is the fixed reply to install-update.
const InstallNotImplemented = "Installation Status: Not yet implemented. Please update manually."
