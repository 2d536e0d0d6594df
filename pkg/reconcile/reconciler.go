package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/stratusctl/stratus/pkg/types"
)

// RuleApplier is the subset of provider operations the reconciler mutates
// through.
type RuleApplier interface {
	AuthorizeRule(ctx context.Context, groupID string, grant types.Grant) error
	RevokeRule(ctx context.Context, groupID string, grant types.Grant) error
}

// Reconciler computes and applies the minimal set of grant changes that
// make a group's remote rule set match a desired rule list. One Reconciler
// handles one run; it keeps no state between runs.
type Reconciler struct {
	applier RuleApplier
	logger  *zap.Logger
	purge   bool
	dryRun  bool
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithDryRun makes Apply skip every mutating call while the diff still runs
// in full.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) {
		r.dryRun = dryRun
	}
}

// WithPurge controls whether grants present remotely but not desired are
// revoked. Purging is on by default; turning it off makes the run
// additive-only.
func WithPurge(purge bool) Option {
	return func(r *Reconciler) {
		r.purge = purge
	}
}

// NewReconciler creates a Reconciler that mutates through applier.
func NewReconciler(applier RuleApplier, opts ...Option) *Reconciler {
	r := &Reconciler{
		applier: applier,
		logger:  zap.NewNop(),
		purge:   true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("reconcile")
	return r
}

// Plan is the minimal change set for one group and direction.
type Plan struct {
	Add    []types.Grant
	Remove []types.Grant
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

// Result summarizes one reconciliation run.
type Result struct {
	GroupID string
	Changed bool
	Added   int
	Removed int
	Applied int
}

// Plan diffs desired rules against a group's existing grants. Every desired
// rule is validated up front so a malformed rule aborts the run before any
// remote mutation. Desired rules are matched by fingerprint: a match removes
// the entry from the existing index (already satisfied), a miss becomes an
// add, and whatever is left in the index afterwards becomes a remove. An
// empty desired list therefore revokes everything.
func (r *Reconciler) Plan(group types.Group, desired []types.Rule, existing []types.Grant, snap types.GroupSnapshot) (Plan, error) {
	for i, rule := range desired {
		if err := rule.Validate(); err != nil {
			return Plan{}, fmt.Errorf("desired rule %d: %w", i, err)
		}
	}

	existingIndex := make(map[types.Fingerprint]types.Grant, len(existing))
	for _, grant := range existing {
		existingIndex[grant.Fingerprint()] = grant
	}

	var plan Plan
	seen := make(map[types.Fingerprint]struct{}, len(desired))
	for _, rule := range desired {
		grant, err := r.grantFor(rule, group, snap)
		if err != nil {
			return Plan{}, err
		}

		fp := grant.Fingerprint()
		if _, dup := seen[fp]; dup {
			r.logger.Debug("skipping duplicate desired rule", zap.Stringer("grant", fp))
			continue
		}
		seen[fp] = struct{}{}

		if _, ok := existingIndex[fp]; ok {
			// Already satisfied remotely; leave it alone.
			delete(existingIndex, fp)
			continue
		}
		plan.Add = append(plan.Add, grant)
	}

	if r.purge {
		for _, grant := range existingIndex {
			plan.Remove = append(plan.Remove, grant)
		}
		sort.Slice(plan.Remove, func(i, j int) bool {
			return plan.Remove[i].Fingerprint().String() < plan.Remove[j].Fingerprint().String()
		})
	}

	return plan, nil
}

// grantFor normalizes a desired rule and resolves its peer into wire-ready
// form.
func (r *Reconciler) grantFor(rule types.Rule, group types.Group, snap types.GroupSnapshot) (types.Grant, error) {
	norm, err := rule.Normalized()
	if err != nil {
		return types.Grant{}, err
	}

	peer, err := Resolve(norm, group, snap)
	if err != nil {
		return types.Grant{}, err
	}

	return types.Grant{
		Direction:     norm.Direction,
		Protocol:      norm.Protocol,
		FromPort:      norm.FromPort,
		ToPort:        norm.ToPort,
		CIDR:          peer.CIDR,
		PeerGroupID:   peer.GroupID,
		PeerGroupName: peer.GroupName,
	}, nil
}

// Apply issues one authorize per added grant and one revoke per removed
// grant, adds first. A failed grant does not roll back grants already
// applied; failures are collected and returned together with the number of
// successful applies.
func (r *Reconciler) Apply(ctx context.Context, group types.Group, plan Plan) (int, error) {
	log := r.logger.With(zap.String("group", group.ID))

	if r.dryRun {
		for _, grant := range plan.Add {
			log.Info("would authorize grant", zap.Stringer("grant", grant.Fingerprint()))
		}
		for _, grant := range plan.Remove {
			log.Info("would revoke grant", zap.Stringer("grant", grant.Fingerprint()))
		}
		return 0, nil
	}

	applied := 0
	var applyErrors []error

	for _, grant := range plan.Add {
		if err := r.applier.AuthorizeRule(ctx, group.ID, grant); err != nil {
			applyErrors = append(applyErrors, fmt.Errorf("authorize %s: %w", grant.Fingerprint(), err))
			continue
		}
		log.Info("authorized grant", zap.Stringer("grant", grant.Fingerprint()))
		applied++
	}

	for _, grant := range plan.Remove {
		if err := r.applier.RevokeRule(ctx, group.ID, grant); err != nil {
			applyErrors = append(applyErrors, fmt.Errorf("revoke %s: %w", grant.Fingerprint(), err))
			continue
		}
		log.Info("revoked grant", zap.Stringer("grant", grant.Fingerprint()))
		applied++
	}

	return applied, errors.Join(applyErrors...)
}

// Reconcile plans and applies in one pass. Changed reports whether anything
// was (or in a dry run, would be) mutated.
func (r *Reconciler) Reconcile(ctx context.Context, group types.Group, desired []types.Rule, existing []types.Grant, snap types.GroupSnapshot) (Result, error) {
	plan, err := r.Plan(group, desired, existing, snap)
	if err != nil {
		return Result{GroupID: group.ID}, err
	}

	applied, err := r.Apply(ctx, group, plan)

	return Result{
		GroupID: group.ID,
		Changed: applied > 0 || (r.dryRun && !plan.Empty()),
		Added:   len(plan.Add),
		Removed: len(plan.Remove),
		Applied: applied,
	}, err
}
