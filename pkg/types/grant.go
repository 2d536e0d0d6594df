package types

import "fmt"

// Grant is one permission entry in wire-ready form: a normalized protocol
// and port range plus exactly one peer. A provider rule holding several peer
// entries fans out into one Grant per entry, so a revocation always targets
// the exact entry rather than the whole rule.
type Grant struct {
	Direction     Direction
	Protocol      string
	FromPort      *int32
	ToPort        *int32
	CIDR          string
	PeerGroupID   string
	PeerGroupName string
}

// Fingerprint is the order-independent identity of a grant. Two grants with
// equal fingerprints are the same permission regardless of how the provider
// groups or orders them. It is a comparable value and is used directly as a
// map key when diffing.
type Fingerprint struct {
	Direction Direction
	Protocol  string
	FromPort  int32
	ToPort    int32
	HasPorts  bool
	CIDR      string
	GroupID   string
	GroupName string
}

// Fingerprint derives the grant's identity key. The all-protocol wildcard
// carries no port range, and a peer that resolved to a group id keys by the
// id alone; the symbolic name only participates when no id is known.
func (g Grant) Fingerprint() Fingerprint {
	fp := Fingerprint{
		Direction: g.Direction,
		Protocol:  g.Protocol,
		CIDR:      g.CIDR,
	}

	if g.PeerGroupID != "" {
		fp.GroupID = g.PeerGroupID
	} else {
		fp.GroupName = g.PeerGroupName
	}

	if g.Protocol != ProtocolAll && g.FromPort != nil && g.ToPort != nil {
		fp.FromPort = *g.FromPort
		fp.ToPort = *g.ToPort
		fp.HasPorts = true
	}

	return fp
}

func (f Fingerprint) String() string {
	ports := "all"
	if f.HasPorts {
		ports = fmt.Sprintf("%d-%d", f.FromPort, f.ToPort)
	}

	peer := "none"
	switch {
	case f.CIDR != "":
		peer = "cidr=" + f.CIDR
	case f.GroupID != "":
		peer = "group=" + f.GroupID
	case f.GroupName != "":
		peer = "group-name=" + f.GroupName
	}

	return fmt.Sprintf("%s %s %s %s", f.Direction, f.Protocol, ports, peer)
}

// Peer returns the grant's peer as a display string.
func (g Grant) Peer() string {
	switch {
	case g.CIDR != "":
		return g.CIDR
	case g.PeerGroupID != "":
		return g.PeerGroupID
	case g.PeerGroupName != "":
		return g.PeerGroupName
	}
	return ""
}

// PortRange returns the grant's port range as a display string.
func (g Grant) PortRange() string {
	if g.Protocol == ProtocolAll || g.FromPort == nil || g.ToPort == nil {
		return "all"
	}
	if *g.FromPort == *g.ToPort {
		return fmt.Sprintf("%d", *g.FromPort)
	}
	return fmt.Sprintf("%d-%d", *g.FromPort, *g.ToPort)
}
