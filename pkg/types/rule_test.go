package types

import (
	"errors"
	"testing"
)

func int32p(v int32) *int32 {
	return &v
}

// --- Protocol normalization ---

func TestNormalizeProtocol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tcp", "tcp"},
		{"TCP", "tcp"},
		{" udp ", "udp"},
		{"icmp", "icmp"},
		{"icmpv6", "icmpv6"},
		{"all", ProtocolAll},
		{"-1", ProtocolAll},
		{"47", "47"},
	}
	for _, tt := range tests {
		got, err := NormalizeProtocol(tt.in)
		if err != nil {
			t.Errorf("NormalizeProtocol(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeProtocol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeProtocol_Invalid(t *testing.T) {
	for _, in := range []string{"", "bogus", "tcp/udp"} {
		if _, err := NormalizeProtocol(in); err == nil {
			t.Errorf("NormalizeProtocol(%q) succeeded, want error", in)
		}
	}
}

// --- Peer construction ---

func TestNewPeerSpec(t *testing.T) {
	peer, err := NewPeerSpec("10.0.0.0/8", "", "")
	if err != nil {
		t.Fatalf("NewPeerSpec returned error: %v", err)
	}
	if _, ok := peer.(PeerCIDR); !ok {
		t.Fatalf("NewPeerSpec returned %T, want PeerCIDR", peer)
	}

	peer, err = NewPeerSpec("", "sg-12345", "")
	if err != nil {
		t.Fatalf("NewPeerSpec returned error: %v", err)
	}
	if _, ok := peer.(PeerGroupID); !ok {
		t.Fatalf("NewPeerSpec returned %T, want PeerGroupID", peer)
	}

	peer, err = NewPeerSpec("", "", "bastion-sg")
	if err != nil {
		t.Fatalf("NewPeerSpec returned error: %v", err)
	}
	if _, ok := peer.(PeerGroupName); !ok {
		t.Fatalf("NewPeerSpec returned %T, want PeerGroupName", peer)
	}
}

func TestNewPeerSpec_NoneSet(t *testing.T) {
	_, err := NewPeerSpec("", "", "")
	if err == nil {
		t.Fatal("NewPeerSpec with no fields succeeded, want error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error %v is not a ValidationError", err)
	}
}

func TestNewPeerSpec_MultipleSet(t *testing.T) {
	_, err := NewPeerSpec("10.0.0.0/8", "sg-12345", "")
	if err == nil {
		t.Fatal("NewPeerSpec with two fields succeeded, want error")
	}
}

// --- Validation ---

func TestRuleValidate(t *testing.T) {
	rule := Rule{
		Direction: DirectionIngress,
		Protocol:  "tcp",
		FromPort:  int32p(80),
		ToPort:    int32p(443),
		Peer:      PeerCIDR("0.0.0.0/0"),
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestRuleValidate_AllProtocolNeedsNoPorts(t *testing.T) {
	rule := Rule{
		Direction: DirectionEgress,
		Protocol:  "all",
		Peer:      PeerCIDR("0.0.0.0/0"),
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestRuleValidate_ICMPWildcard(t *testing.T) {
	// For icmp the port pair is type and code, where -1 is a wildcard; the
	// from<=to bound does not apply.
	rule := Rule{
		Direction: DirectionIngress,
		Protocol:  "icmp",
		FromPort:  int32p(8),
		ToPort:    int32p(-1),
		Peer:      PeerCIDR("10.0.0.0/8"),
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestRuleValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{
			name: "unknown direction",
			rule: Rule{Direction: "sideways", Protocol: "tcp", FromPort: int32p(80), ToPort: int32p(80), Peer: PeerCIDR("0.0.0.0/0")},
		},
		{
			name: "missing ports",
			rule: Rule{Direction: DirectionIngress, Protocol: "tcp", Peer: PeerCIDR("0.0.0.0/0")},
		},
		{
			name: "inverted port range",
			rule: Rule{Direction: DirectionIngress, Protocol: "tcp", FromPort: int32p(443), ToPort: int32p(80), Peer: PeerCIDR("0.0.0.0/0")},
		},
		{
			name: "no peer",
			rule: Rule{Direction: DirectionIngress, Protocol: "tcp", FromPort: int32p(80), ToPort: int32p(80)},
		},
		{
			name: "bad cidr",
			rule: Rule{Direction: DirectionIngress, Protocol: "tcp", FromPort: int32p(80), ToPort: int32p(80), Peer: PeerCIDR("10.0.0.0")},
		},
		{
			name: "unknown protocol",
			rule: Rule{Direction: DirectionIngress, Protocol: "quic", FromPort: int32p(80), ToPort: int32p(80), Peer: PeerCIDR("0.0.0.0/0")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if err == nil {
				t.Fatal("Validate succeeded, want error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
		})
	}
}

// --- Normalization ---

func TestRuleNormalized_AllClearsPorts(t *testing.T) {
	rule := Rule{
		Direction: DirectionIngress,
		Protocol:  "all",
		FromPort:  int32p(0),
		ToPort:    int32p(65535),
		Peer:      PeerCIDR("0.0.0.0/0"),
	}

	got, err := rule.Normalized()
	if err != nil {
		t.Fatalf("Normalized returned error: %v", err)
	}
	if got.Protocol != ProtocolAll {
		t.Errorf("protocol = %q, want %q", got.Protocol, ProtocolAll)
	}
	if got.FromPort != nil || got.ToPort != nil {
		t.Error("port range survived normalization of the all protocol")
	}
}

func TestRuleNormalized_KeepsPorts(t *testing.T) {
	rule := Rule{
		Direction: DirectionIngress,
		Protocol:  "TCP",
		FromPort:  int32p(22),
		ToPort:    int32p(22),
		Peer:      PeerCIDR("0.0.0.0/0"),
	}

	got, err := rule.Normalized()
	if err != nil {
		t.Fatalf("Normalized returned error: %v", err)
	}
	if got.Protocol != "tcp" {
		t.Errorf("protocol = %q, want tcp", got.Protocol)
	}
	if got.FromPort == nil || *got.FromPort != 22 {
		t.Error("from port changed during normalization")
	}
}
