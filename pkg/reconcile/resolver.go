package reconcile

import (
	"fmt"

	"github.com/stratusctl/stratus/pkg/types"
)

// ResolvedPeer is the concrete identity a rule's peer resolves to. Exactly
// one field is set. A group name the snapshot does not know stays in
// GroupName: the grant is applied with the symbolic name and the provider is
// the authority on whether it exists.
type ResolvedPeer struct {
	CIDR      string
	GroupID   string
	GroupName string
}

// Resolve translates a rule's peer into a concrete identity against a group
// snapshot. A peer given by id is taken verbatim with no existence check. A
// peer given by name is looked up in the snapshot; the name of the group
// being reconciled resolves to that group's own id even when the snapshot
// predates the group. Resolve has no side effects.
func Resolve(rule types.Rule, own types.Group, snap types.GroupSnapshot) (ResolvedPeer, error) {
	switch peer := rule.Peer.(type) {
	case types.PeerCIDR:
		return ResolvedPeer{CIDR: string(peer)}, nil

	case types.PeerGroupID:
		return ResolvedPeer{GroupID: string(peer)}, nil

	case types.PeerGroupName:
		name := string(peer)
		if g, ok := snap.ByName(name); ok {
			return ResolvedPeer{GroupID: g.ID}, nil
		}
		if name == own.Name && own.ID != "" {
			return ResolvedPeer{GroupID: own.ID}, nil
		}
		return ResolvedPeer{GroupName: name}, nil

	case nil:
		return ResolvedPeer{}, &types.ValidationError{Reason: "rule has no peer"}
	}

	return ResolvedPeer{}, &types.ValidationError{Reason: fmt.Sprintf("unsupported peer type %T", rule.Peer)}
}
