// Package identity encodes and decodes the gateway-visible identifiers used
// by the messaging layer. A visitor is addressed as "{projectID}_{userID}",
// an agent as "agent_{agentID}"; the visitor's channel ID is its UID.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	separator   = "_"
	agentPrefix = "agent" + separator
)

// SystemUID is the fixed gateway identity used for platform-originated
// messages (welcome notices, automated replies).
const SystemUID = "system"

// Kind classifies a decoded UID.
type Kind string

const (
	KindVisitor Kind = "visitor"
	KindAgent   Kind = "agent"
)

// ErrUnparseable indicates a UID that is neither a valid visitor nor a valid
// agent identifier. Callers processing batches skip the offending item and
// continue.
var ErrUnparseable = errors.New("unparseable uid")

// UID is a decoded gateway identifier.
type UID struct {
	Kind      Kind
	ProjectID int64
	UserID    int64
	AgentID   int64
}

// VisitorUID returns the gateway UID (and channel ID) for a visitor.
func VisitorUID(projectID, userID int64) string {
	return strconv.FormatInt(projectID, 10) + separator + strconv.FormatInt(userID, 10)
}

// AgentUID returns the gateway UID for a support agent.
func AgentUID(agentID int64) string {
	return agentPrefix + strconv.FormatInt(agentID, 10)
}

// IsAgentUID reports whether uid carries the agent prefix. A prefixed UID is
// never treated as a visitor, even if its suffix would parse as one.
func IsAgentUID(uid string) bool {
	return strings.HasPrefix(uid, agentPrefix)
}

// Parse decodes a gateway UID back into its identity parts.
func Parse(uid string) (UID, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return UID{}, fmt.Errorf("%w: empty", ErrUnparseable)
	}
	if IsAgentUID(uid) {
		agentID, err := strconv.ParseInt(strings.TrimPrefix(uid, agentPrefix), 10, 64)
		if err != nil {
			return UID{}, fmt.Errorf("%w: %q", ErrUnparseable, uid)
		}
		return UID{Kind: KindAgent, AgentID: agentID}, nil
	}
	parts := strings.Split(uid, separator)
	if len(parts) != 2 {
		return UID{}, fmt.Errorf("%w: %q", ErrUnparseable, uid)
	}
	projectID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q", ErrUnparseable, uid)
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return UID{}, fmt.Errorf("%w: %q", ErrUnparseable, uid)
	}
	return UID{Kind: KindVisitor, ProjectID: projectID, UserID: userID}, nil
}
