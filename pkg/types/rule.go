package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Direction identifies which side of a security group a rule applies to.
type Direction string

const (
	DirectionIngress Direction = "ingress"
	DirectionEgress  Direction = "egress"
)

// ProtocolAll is the provider-side wildcard protocol. Rules written with
// protocol "all" normalize to it and carry no port range.
const ProtocolAll = "-1"

// ValidationError reports a malformed or ambiguous rule. Validation runs
// before any remote call, so a rule that fails it never reaches the
// provider.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid rule: " + e.Reason
}

// NormalizeProtocol maps a user-facing protocol spelling to the form the
// provider understands: "all" becomes "-1", names are lowercased, numeric
// protocol strings pass through.
func NormalizeProtocol(proto string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(proto))
	switch p {
	case "":
		return "", &ValidationError{Reason: "protocol is required"}
	case "all", ProtocolAll:
		return ProtocolAll, nil
	case "tcp", "udp", "icmp", "icmpv6":
		return p, nil
	}
	if _, err := strconv.Atoi(p); err == nil {
		return p, nil
	}
	return "", &ValidationError{Reason: fmt.Sprintf("unknown protocol %q", proto)}
}

// PeerSpec is the peer side of a rule: a CIDR block, a security group
// referenced by id, or a security group referenced by name. A rule carries
// exactly one variant.
type PeerSpec interface {
	fmt.Stringer
	peer()
}

// PeerCIDR matches traffic against an IP range.
type PeerCIDR string

// PeerGroupID matches traffic from the members of a security group, by id.
// The id is taken verbatim; the provider is the authority on whether it
// exists.
type PeerGroupID string

// PeerGroupName matches traffic from the members of a security group, by
// name. Names resolve against a snapshot at plan time; a name the snapshot
// does not know is passed to the provider unresolved.
type PeerGroupName string

func (PeerCIDR) peer()      {}
func (PeerGroupID) peer()   {}
func (PeerGroupName) peer() {}

func (p PeerCIDR) String() string      { return string(p) }
func (p PeerGroupID) String() string   { return string(p) }
func (p PeerGroupName) String() string { return string(p) }

// NewPeerSpec builds a PeerSpec from loose input where every field is
// optional, as in a manifest or flag set. Exactly one field must be set.
func NewPeerSpec(cidr, groupID, groupName string) (PeerSpec, error) {
	var (
		peer PeerSpec
		set  int
	)
	if cidr != "" {
		peer = PeerCIDR(cidr)
		set++
	}
	if groupID != "" {
		peer = PeerGroupID(groupID)
		set++
	}
	if groupName != "" {
		peer = PeerGroupName(groupName)
		set++
	}
	switch {
	case set == 0:
		return nil, &ValidationError{Reason: "one of cidr, group_id or group_name is required"}
	case set > 1:
		return nil, &ValidationError{Reason: "cidr, group_id and group_name are mutually exclusive"}
	}
	return peer, nil
}

// Rule is one desired permission on a security group.
type Rule struct {
	Direction Direction
	Protocol  string
	FromPort  *int32
	ToPort    *int32
	Peer      PeerSpec
}

// Validate checks that the rule is well formed. Port bounds are only
// enforced for tcp and udp; icmp uses the port pair as type and code, where
// -1 is a wildcard.
func (r Rule) Validate() error {
	if r.Direction != DirectionIngress && r.Direction != DirectionEgress {
		return &ValidationError{Reason: fmt.Sprintf("unknown direction %q", r.Direction)}
	}

	proto, err := NormalizeProtocol(r.Protocol)
	if err != nil {
		return err
	}

	if proto != ProtocolAll {
		if r.FromPort == nil || r.ToPort == nil {
			return &ValidationError{Reason: fmt.Sprintf("protocol %q requires from_port and to_port", r.Protocol)}
		}
		if proto == "tcp" || proto == "udp" {
			if *r.FromPort > *r.ToPort {
				return &ValidationError{Reason: fmt.Sprintf("from_port %d is greater than to_port %d", *r.FromPort, *r.ToPort)}
			}
		}
	}

	if r.Peer == nil {
		return &ValidationError{Reason: "rule has no peer"}
	}
	if cidr, ok := r.Peer.(PeerCIDR); ok {
		if _, _, err := net.ParseCIDR(string(cidr)); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("invalid cidr %q", string(cidr))}
		}
	}

	return nil
}

// Normalized returns the rule with its protocol in provider form. The
// all-protocol wildcard clears the port range so that "all" compares equal
// to an existing -1 rule no matter how its ports were written.
func (r Rule) Normalized() (Rule, error) {
	proto, err := NormalizeProtocol(r.Protocol)
	if err != nil {
		return Rule{}, err
	}

	out := r
	out.Protocol = proto
	if proto == ProtocolAll {
		out.FromPort = nil
		out.ToPort = nil
	}
	return out, nil
}
