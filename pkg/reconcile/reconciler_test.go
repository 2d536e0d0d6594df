package reconcile

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/stratusctl/stratus/pkg/types"
)

// mockApplier is a test double for the RuleApplier interface. It records
// every call and can be told to fail specific grants.
type mockApplier struct {
	authorized []types.Grant
	revoked    []types.Grant
	failAuth   map[string]error // keyed by fingerprint string
	failRevoke map[string]error
}

func newMockApplier() *mockApplier {
	return &mockApplier{
		failAuth:   make(map[string]error),
		failRevoke: make(map[string]error),
	}
}

func (m *mockApplier) AuthorizeRule(_ context.Context, _ string, grant types.Grant) error {
	if err := m.failAuth[grant.Fingerprint().String()]; err != nil {
		return err
	}
	m.authorized = append(m.authorized, grant)
	return nil
}

func (m *mockApplier) RevokeRule(_ context.Context, _ string, grant types.Grant) error {
	if err := m.failRevoke[grant.Fingerprint().String()]; err != nil {
		return err
	}
	m.revoked = append(m.revoked, grant)
	return nil
}

func (m *mockApplier) calls() int {
	return len(m.authorized) + len(m.revoked)
}

// newTestEnv creates a Reconciler backed by a mock applier.
func newTestEnv(t *testing.T, opts ...Option) (*Reconciler, *mockApplier) {
	t.Helper()
	applier := newMockApplier()
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	return NewReconciler(applier, opts...), applier
}

// int32p creates a pointer to an int32 value.
func int32p(v int32) *int32 {
	return &v
}

// makeRule creates an ingress Rule for testing.
func makeRule(proto string, from, to int32, peer types.PeerSpec) types.Rule {
	return types.Rule{
		Direction: types.DirectionIngress,
		Protocol:  proto,
		FromPort:  int32p(from),
		ToPort:    int32p(to),
		Peer:      peer,
	}
}

// makeCIDRGrant creates an ingress Grant with a CIDR peer for testing.
func makeCIDRGrant(proto string, from, to int32, cidr string) types.Grant {
	return types.Grant{
		Direction: types.DirectionIngress,
		Protocol:  proto,
		FromPort:  int32p(from),
		ToPort:    int32p(to),
		CIDR:      cidr,
	}
}

// fingerprintSet collects the fingerprints of grants for set comparison.
func fingerprintSet(grants []types.Grant) map[string]bool {
	set := make(map[string]bool, len(grants))
	for _, g := range grants {
		set[g.Fingerprint().String()] = true
	}
	return set
}

// applyToState simulates the provider's state after a plan is applied.
func applyToState(existing []types.Grant, plan Plan) []types.Grant {
	removed := fingerprintSet(plan.Remove)
	var next []types.Grant
	for _, g := range existing {
		if !removed[g.Fingerprint().String()] {
			next = append(next, g)
		}
	}
	return append(next, plan.Add...)
}

var testGroup = types.Group{ID: "sg-100", Name: "web", VPCID: "vpc-1"}

// --- Diffing ---

func TestPlan_ConcreteScenario(t *testing.T) {
	r, _ := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 80, 80, types.PeerCIDR("0.0.0.0/0")),
		makeRule("tcp", 22, 22, types.PeerCIDR("10.0.0.0/8")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "0.0.0.0/0"),
		makeCIDRGrant("tcp", 3389, 3389, "0.0.0.0/0"),
	}

	plan, err := r.Plan(testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(plan.Add) != 1 || plan.Add[0].CIDR != "10.0.0.0/8" || *plan.Add[0].FromPort != 22 {
		t.Fatalf("expected single add of tcp/22 from 10.0.0.0/8, got %+v", plan.Add)
	}
	if len(plan.Remove) != 1 || *plan.Remove[0].FromPort != 3389 {
		t.Fatalf("expected single remove of tcp/3389, got %+v", plan.Remove)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	r, applier := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 443, 443, types.PeerCIDR("0.0.0.0/0")),
		makeRule("udp", 53, 53, types.PeerCIDR("10.0.0.0/8")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 22, 22, "192.168.0.0/16"),
	}

	plan, err := r.Plan(testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("first Plan failed: %v", err)
	}
	if plan.Empty() {
		t.Fatal("expected first plan to change something")
	}

	// Second run against the post-apply state must change nothing.
	second, err := r.Plan(testGroup, desired, applyToState(existing, plan), types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("second Plan failed: %v", err)
	}
	if !second.Empty() {
		t.Fatalf("expected empty second plan, got add=%d remove=%d", len(second.Add), len(second.Remove))
	}

	res, err := r.Reconcile(context.Background(), testGroup, desired, applyToState(existing, plan), types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res.Changed {
		t.Error("expected unchanged result on second run")
	}
	if applier.calls() != 0 {
		t.Errorf("expected no remote calls on second run, got %d", applier.calls())
	}
}

func TestPlan_OrderInvariance(t *testing.T) {
	r, _ := newTestEnv(t)

	a := makeRule("tcp", 80, 80, types.PeerCIDR("0.0.0.0/0"))
	b := makeRule("tcp", 22, 22, types.PeerCIDR("10.0.0.0/8"))
	c := makeRule("udp", 53, 53, types.PeerCIDR("172.16.0.0/12"))
	existing := []types.Grant{makeCIDRGrant("tcp", 8080, 8080, "0.0.0.0/0")}

	first, err := r.Plan(testGroup, []types.Rule{a, b, c}, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	second, err := r.Plan(testGroup, []types.Rule{c, a, b}, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("permuted Plan failed: %v", err)
	}

	if len(fingerprintSet(first.Add)) != len(fingerprintSet(second.Add)) {
		t.Fatalf("add sets differ: %d vs %d", len(first.Add), len(second.Add))
	}
	for fp := range fingerprintSet(first.Add) {
		if !fingerprintSet(second.Add)[fp] {
			t.Errorf("add set missing %s after permutation", fp)
		}
	}
	for fp := range fingerprintSet(first.Remove) {
		if !fingerprintSet(second.Remove)[fp] {
			t.Errorf("remove set missing %s after permutation", fp)
		}
	}
}

func TestPlan_AllProtocolNormalization(t *testing.T) {
	r, _ := newTestEnv(t)

	// A desired "all" rule with ports spelled out must match an existing
	// -1 grant with no ports.
	desired := []types.Rule{
		makeRule("all", 0, 65535, types.PeerCIDR("0.0.0.0/0")),
	}
	existing := []types.Grant{
		{Direction: types.DirectionIngress, Protocol: types.ProtocolAll, CIDR: "0.0.0.0/0"},
	}

	plan, err := r.Plan(testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected no diff, got add=%d remove=%d", len(plan.Add), len(plan.Remove))
	}
}

func TestPlan_EmptyDesiredRevokesEverything(t *testing.T) {
	r, _ := newTestEnv(t)

	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "0.0.0.0/0"),
		makeCIDRGrant("tcp", 22, 22, "10.0.0.0/8"),
		makeCIDRGrant("udp", 53, 53, "0.0.0.0/0"),
	}

	plan, err := r.Plan(testGroup, nil, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Add) != 0 {
		t.Errorf("expected no adds, got %d", len(plan.Add))
	}
	if len(plan.Remove) != len(existing) {
		t.Fatalf("expected %d removes, got %d", len(existing), len(plan.Remove))
	}
	want := fingerprintSet(existing)
	for fp := range fingerprintSet(plan.Remove) {
		if !want[fp] {
			t.Errorf("unexpected remove %s", fp)
		}
	}
}

func TestPlan_GrantFanOutRevokesSpecificPeer(t *testing.T) {
	r, _ := newTestEnv(t)

	// One provider rule with three CIDR entries arrives as three grants;
	// dropping one peer must revoke only that entry.
	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "10.0.0.0/8"),
		makeCIDRGrant("tcp", 80, 80, "172.16.0.0/12"),
		makeCIDRGrant("tcp", 80, 80, "192.168.0.0/16"),
	}
	desired := []types.Rule{
		makeRule("tcp", 80, 80, types.PeerCIDR("10.0.0.0/8")),
		makeRule("tcp", 80, 80, types.PeerCIDR("192.168.0.0/16")),
	}

	plan, err := r.Plan(testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Add) != 0 {
		t.Errorf("expected no adds, got %+v", plan.Add)
	}
	if len(plan.Remove) != 1 || plan.Remove[0].CIDR != "172.16.0.0/12" {
		t.Fatalf("expected single remove of 172.16.0.0/12, got %+v", plan.Remove)
	}
}

func TestPlan_DuplicateDesiredRulesCollapse(t *testing.T) {
	r, _ := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 80, 80, types.PeerCIDR("0.0.0.0/0")),
		makeRule("tcp", 80, 80, types.PeerCIDR("0.0.0.0/0")),
	}

	plan, err := r.Plan(testGroup, desired, nil, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Add) != 1 {
		t.Fatalf("expected duplicates to collapse to 1 add, got %d", len(plan.Add))
	}
}

// --- Name resolution ---

func TestPlan_ResolvedNameMatchesExistingGroupGrant(t *testing.T) {
	r, _ := newTestEnv(t)

	snap := types.NewGroupSnapshot([]types.Group{
		{ID: "sg-200", Name: "bastion", VPCID: "vpc-1"},
	})
	desired := []types.Rule{
		makeRule("tcp", 22, 22, types.PeerGroupName("bastion")),
	}
	existing := []types.Grant{
		{Direction: types.DirectionIngress, Protocol: "tcp", FromPort: int32p(22), ToPort: int32p(22), PeerGroupID: "sg-200"},
	}

	plan, err := r.Plan(testGroup, desired, existing, snap)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected resolved name to match existing grant, got add=%d remove=%d", len(plan.Add), len(plan.Remove))
	}
}

func TestPlan_SelfReferenceResolvesToOwnID(t *testing.T) {
	r, _ := newTestEnv(t)

	// The group's own name is not in the snapshot yet, as when it was just
	// created in the same run.
	desired := []types.Rule{
		makeRule("tcp", 0, 65535, types.PeerGroupName("web")),
	}

	plan, err := r.Plan(testGroup, desired, nil, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Add) != 1 {
		t.Fatalf("expected 1 add, got %d", len(plan.Add))
	}
	if plan.Add[0].PeerGroupID != testGroup.ID {
		t.Errorf("expected self-reference to resolve to %q, got %q", testGroup.ID, plan.Add[0].PeerGroupID)
	}
}

func TestPlan_UnresolvedNameIsAlwaysAdded(t *testing.T) {
	r, _ := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 5432, 5432, types.PeerGroupName("db-clients")),
	}
	existing := []types.Grant{
		{Direction: types.DirectionIngress, Protocol: "tcp", FromPort: int32p(5432), ToPort: int32p(5432), PeerGroupID: "sg-999"},
	}

	plan, err := r.Plan(testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(plan.Add) != 1 || plan.Add[0].PeerGroupName != "db-clients" {
		t.Fatalf("expected unresolved name to be added with its symbolic name, got %+v", plan.Add)
	}
	if len(plan.Remove) != 1 {
		t.Fatalf("expected the concrete sg-999 grant to be removed, got %+v", plan.Remove)
	}
}

// --- Validation ---

func TestPlan_InvalidCIDRFailsBeforeMutation(t *testing.T) {
	r, applier := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 80, 80, types.PeerCIDR("not-a-cidr")),
	}

	_, err := r.Reconcile(context.Background(), testGroup, desired, nil, types.GroupSnapshot{})
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if applier.calls() != 0 {
		t.Errorf("expected zero remote calls, got %d", applier.calls())
	}
}

func TestPlan_MissingProtocolFailsBeforeMutation(t *testing.T) {
	r, applier := newTestEnv(t)

	desired := []types.Rule{
		{Direction: types.DirectionIngress, Peer: types.PeerCIDR("0.0.0.0/0")},
	}

	_, err := r.Reconcile(context.Background(), testGroup, desired, nil, types.GroupSnapshot{})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing protocol, got %v", err)
	}
	if applier.calls() != 0 {
		t.Errorf("expected zero remote calls, got %d", applier.calls())
	}
}

// --- Apply ---

func TestReconcile_AppliesAddsThenRemoves(t *testing.T) {
	r, applier := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 443, 443, types.PeerCIDR("0.0.0.0/0")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "0.0.0.0/0"),
	}

	res, err := r.Reconcile(context.Background(), testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !res.Changed {
		t.Error("expected result to be changed")
	}
	if res.Applied != 2 {
		t.Errorf("expected 2 applied, got %d", res.Applied)
	}
	if len(applier.authorized) != 1 || len(applier.revoked) != 1 {
		t.Errorf("expected 1 authorize and 1 revoke, got %d and %d", len(applier.authorized), len(applier.revoked))
	}
}

func TestReconcile_PartialFailureKeepsGoing(t *testing.T) {
	r, applier := newTestEnv(t)

	desired := []types.Rule{
		makeRule("tcp", 443, 443, types.PeerCIDR("0.0.0.0/0")),
		makeRule("tcp", 8080, 8080, types.PeerCIDR("10.0.0.0/8")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 23, 23, "0.0.0.0/0"),
	}

	failing := makeCIDRGrant("tcp", 443, 443, "0.0.0.0/0")
	applier.failAuth[failing.Fingerprint().String()] = errors.New("throttled")

	res, err := r.Reconcile(context.Background(), testGroup, desired, existing, types.GroupSnapshot{})
	if err == nil {
		t.Fatal("expected run-level failure, got nil")
	}
	// The failure must not stop the remaining grants from being applied.
	if res.Applied != 2 {
		t.Errorf("expected 2 successful applies despite 1 failure, got %d", res.Applied)
	}
	if !res.Changed {
		t.Error("expected changed despite partial failure")
	}
}

func TestReconcile_DryRunMakesNoCalls(t *testing.T) {
	r, applier := newTestEnv(t, WithDryRun(true))

	desired := []types.Rule{
		makeRule("tcp", 443, 443, types.PeerCIDR("0.0.0.0/0")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "0.0.0.0/0"),
	}

	res, err := r.Reconcile(context.Background(), testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if applier.calls() != 0 {
		t.Errorf("expected zero remote calls in dry run, got %d", applier.calls())
	}
	if !res.Changed {
		t.Error("expected dry run to report the would-be change")
	}
	if res.Applied != 0 {
		t.Errorf("expected 0 applied in dry run, got %d", res.Applied)
	}
}

func TestReconcile_NoPurgeKeepsUndeclaredGrants(t *testing.T) {
	r, applier := newTestEnv(t, WithPurge(false))

	desired := []types.Rule{
		makeRule("tcp", 443, 443, types.PeerCIDR("0.0.0.0/0")),
	}
	existing := []types.Grant{
		makeCIDRGrant("tcp", 80, 80, "0.0.0.0/0"),
	}

	res, err := r.Reconcile(context.Background(), testGroup, desired, existing, types.GroupSnapshot{})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(applier.revoked) != 0 {
		t.Errorf("expected no revokes without purge, got %d", len(applier.revoked))
	}
	if res.Added != 1 || res.Removed != 0 {
		t.Errorf("expected added=1 removed=0, got added=%d removed=%d", res.Added, res.Removed)
	}
}
