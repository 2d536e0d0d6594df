package reconcile

import (
	"errors"
	"testing"

	"github.com/stratusctl/stratus/pkg/types"
)

func TestResolve_CIDRPassesThrough(t *testing.T) {
	rule := makeRule("tcp", 80, 80, types.PeerCIDR("10.0.0.0/8"))

	peer, err := Resolve(rule, testGroup, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.CIDR != "10.0.0.0/8" || peer.GroupID != "" || peer.GroupName != "" {
		t.Errorf("expected pure CIDR peer, got %+v", peer)
	}
}

func TestResolve_GroupIDTakenVerbatim(t *testing.T) {
	// No snapshot lookup happens for ids: a stale or foreign id is the
	// provider's problem, not ours.
	rule := makeRule("tcp", 80, 80, types.PeerGroupID("sg-does-not-exist"))

	peer, err := Resolve(rule, testGroup, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.GroupID != "sg-does-not-exist" {
		t.Errorf("expected id passed verbatim, got %+v", peer)
	}
}

func TestResolve_GroupNameViaSnapshot(t *testing.T) {
	snap := types.NewGroupSnapshot([]types.Group{
		{ID: "sg-200", Name: "bastion"},
		{ID: "sg-201", Name: "db"},
	})
	rule := makeRule("tcp", 22, 22, types.PeerGroupName("bastion"))

	peer, err := Resolve(rule, testGroup, snap)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.GroupID != "sg-200" || peer.GroupName != "" {
		t.Errorf("expected name to resolve to sg-200, got %+v", peer)
	}
}

func TestResolve_OwnNameFallsBackToOwnID(t *testing.T) {
	// The group being reconciled was just created and is absent from the
	// snapshot; its own name must still resolve.
	rule := makeRule("tcp", 0, 65535, types.PeerGroupName(testGroup.Name))

	peer, err := Resolve(rule, testGroup, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.GroupID != testGroup.ID {
		t.Errorf("expected own id %q, got %+v", testGroup.ID, peer)
	}
}

func TestResolve_SnapshotWinsOverSelfReference(t *testing.T) {
	// If the snapshot already knows the name, the snapshot entry wins even
	// when the name equals the reconciled group's own name.
	snap := types.NewGroupSnapshot([]types.Group{
		{ID: "sg-500", Name: testGroup.Name},
	})
	rule := makeRule("tcp", 443, 443, types.PeerGroupName(testGroup.Name))

	peer, err := Resolve(rule, testGroup, snap)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.GroupID != "sg-500" {
		t.Errorf("expected snapshot id sg-500, got %+v", peer)
	}
}

func TestResolve_UnknownNameStaysSymbolic(t *testing.T) {
	rule := makeRule("tcp", 5432, 5432, types.PeerGroupName("db-clients"))

	peer, err := Resolve(rule, testGroup, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if peer.GroupName != "db-clients" || peer.GroupID != "" {
		t.Errorf("expected symbolic name kept, got %+v", peer)
	}
}

func TestResolve_MissingPeerIsValidationError(t *testing.T) {
	rule := types.Rule{Direction: types.DirectionIngress, Protocol: "tcp", FromPort: int32p(80), ToPort: int32p(80)}

	_, err := Resolve(rule, testGroup, types.GroupSnapshot{})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
