package bridge

import "github.com/codefionn/wsbridge/internal/protocol"

// Server identity constants
const (
	ServerName    = "wsbridge"
	ServerVersion = "0.1.0"
)

// Identity is the named, versioned capability descriptor returned on
// every handshake. Constructed once at startup and never mutated.
type Identity struct {
	Name         string
	Version      string
	Capabilities protocol.Capabilities
}

// DefaultIdentity returns the identity of this server build.
func DefaultIdentity() Identity {
	return Identity{
		Name:    ServerName,
		Version: ServerVersion,
		Capabilities: protocol.Capabilities{
			FileAccess: true,
			CheckFile:  true,
			ReadFile:   true,
		},
	}
}
