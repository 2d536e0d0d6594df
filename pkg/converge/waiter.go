package converge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratusctl/stratus/pkg/types"
)

// Direction selects which way a binding is being moved.
type Direction int

const (
	Register Direction = iota
	Deregister
)

func (d Direction) String() string {
	if d == Deregister {
		return "deregister"
	}
	return "register"
}

// awaited is the terminal health status this direction converges to.
func (d Direction) awaited() types.HealthStatus {
	if d == Deregister {
		return types.HealthOutOfService
	}
	return types.HealthInService
}

// Outcome is the terminal state of one convergence wait.
type Outcome string

const (
	// OutcomeConverged means the binding reached the awaited state, or the
	// deregister fast path found nothing to do.
	OutcomeConverged Outcome = "converged"

	// OutcomeSkippedNoWait means the mutation was issued fire-and-forget
	// and the outcome was not observed.
	OutcomeSkippedNoWait Outcome = "skipped-no-wait"

	// OutcomeTimedOut means the deadline elapsed before convergence.
	OutcomeTimedOut Outcome = "timed-out"

	// OutcomeFailed means the binding cannot reach the awaited state.
	OutcomeFailed Outcome = "failed"

	// OutcomeDryRun means no mutation was issued because dry-run is on.
	OutcomeDryRun Outcome = "dry-run"
)

// Options control one convergence wait.
type Options struct {
	// Wait blocks until the binding reaches the awaited state. When false
	// the mutation is fire-and-forget and unconditionally reported as
	// changed.
	Wait bool

	// Timeout bounds the whole wait, initial sampling included.
	Timeout time.Duration

	// EnableZone enables the instance's availability zone on the load
	// balancer before registering, when it is not already enabled.
	EnableZone bool
}

// Result reports how one convergence wait ended.
type Result struct {
	Outcome Outcome

	// Changed is false when the binding was already in the awaited state
	// before any mutation.
	Changed bool

	// Final is the last health sample observed, zero when none was taken.
	Final types.HealthState

	// ZoneEnabled reports whether the instance's availability zone was
	// enabled on the load balancer as a side effect.
	ZoneEnabled bool
}

// BindingService is the slice of the provider the waiter samples and
// mutates.
type BindingService interface {
	ListLoadBalancers(ctx context.Context, names []string) ([]types.LoadBalancer, error)
	RegisterInstance(ctx context.Context, lbName, instanceID string) error
	DeregisterInstance(ctx context.Context, lbName, instanceID string) error
	InstanceHealth(ctx context.Context, lbName, instanceID string) (types.HealthState, error)
	EnableAvailabilityZone(ctx context.Context, lbName, zone string) error
}

// PlacementService looks up where an instance is placed.
type PlacementService interface {
	InstanceZone(ctx context.Context, instanceID string) (string, error)
}

// Waiter drives one load-balancer binding to a terminal state: it issues
// the register or deregister call and polls instance health until the
// awaited state is observed, a fatal condition is detected, or the deadline
// passes. One Converge call handles one binding; callers fan out themselves
// when an instance spans several load balancers.
type Waiter struct {
	lbs        BindingService
	placement  PlacementService
	classifier StateClassifier
	clock      Clock
	logger     *zap.Logger

	interval       time.Duration
	sampleAttempts int
	sampleBackoff  time.Duration
	dryRun         bool
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithLogger sets the logger for convergence progress.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Waiter) {
		w.logger = logger
	}
}

// WithClassifier replaces the health sample classifier.
func WithClassifier(c StateClassifier) Option {
	return func(w *Waiter) {
		w.classifier = c
	}
}

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(w *Waiter) {
		w.clock = c
	}
}

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) {
		w.interval = d
	}
}

// WithSampleRetry bounds the initial-sample retry for register: attempts is
// the total number of samples taken, backoff the fixed pause between them.
func WithSampleRetry(attempts int, backoff time.Duration) Option {
	return func(w *Waiter) {
		w.sampleAttempts = attempts
		w.sampleBackoff = backoff
	}
}

// WithDryRun skips every mutating call while still reporting what would
// change.
func WithDryRun(dryRun bool) Option {
	return func(w *Waiter) {
		w.dryRun = dryRun
	}
}

// NewWaiter creates a Waiter polling once per second, with five initial
// samples two seconds apart before register gives up on an unrecognized
// instance.
func NewWaiter(lbs BindingService, placement PlacementService, opts ...Option) *Waiter {
	w := &Waiter{
		lbs:            lbs,
		placement:      placement,
		classifier:     elbClassifier{},
		clock:          realClock{},
		logger:         zap.NewNop(),
		interval:       time.Second,
		sampleAttempts: 5,
		sampleBackoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("converge")
	return w
}

// Converge moves one binding in the given direction and, when opts.Wait is
// set, blocks until the binding's observed health equals the awaited state.
// On Converged with wait enabled, Result.Final is confirmed equal to the
// awaited state at return time. TimedOut and Failed results are returned
// together with an *Error carrying the last observed description.
func (w *Waiter) Converge(ctx context.Context, binding types.LoadBalancerBinding, dir Direction, opts Options) (Result, error) {
	log := w.logger.With(
		zap.String("lb", binding.LoadBalancerName),
		zap.String("instance", binding.InstanceID),
		zap.Stringer("direction", dir),
	)
	deadline := w.clock.Now().Add(opts.Timeout)

	if w.dryRun {
		return w.dryRunResult(ctx, binding, dir, opts, log)
	}

	var initial types.HealthState
	if opts.Wait {
		var err error
		initial, err = w.initialSample(ctx, binding, dir, log)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Final: initial}, err
		}

		// Deregister fast path: nothing is in service, so there is
		// nothing to take out of service.
		if dir == Deregister && initial.Status != types.HealthInService {
			log.Info("instance already out of service, nothing to do")
			return Result{Outcome: OutcomeConverged, Changed: false, Final: initial}, nil
		}
	}

	zoneEnabled, err := w.ensureZone(ctx, binding, dir, opts, log)
	if err != nil {
		return Result{}, err
	}

	if err := w.mutate(ctx, binding, dir); err != nil {
		return Result{ZoneEnabled: zoneEnabled}, fmt.Errorf("%s instance %s on load balancer %s: %w",
			dir, binding.InstanceID, binding.LoadBalancerName, err)
	}
	log.Info("issued " + dir.String())

	if !opts.Wait {
		// Fire and forget: without observing the outcome, changed is the
		// only claim that can be made.
		return Result{Outcome: OutcomeSkippedNoWait, Changed: true, ZoneEnabled: zoneEnabled}, nil
	}

	res, err := w.await(ctx, binding, dir, initial, deadline, log)
	res.ZoneEnabled = zoneEnabled
	return res, err
}

// initialSample reads the binding's health before mutating. A register
// target may not be recognized yet while the provider propagates, so
// register retries unrecognized samples with a fixed backoff and gives up
// after the attempt bound; deregister takes the first answer as-is.
func (w *Waiter) initialSample(ctx context.Context, binding types.LoadBalancerBinding, dir Direction, log *zap.Logger) (types.HealthState, error) {
	state, err := w.lbs.InstanceHealth(ctx, binding.LoadBalancerName, binding.InstanceID)
	if err != nil || dir != Register {
		return state, err
	}

	for attempt := 1; !state.Recognized() && attempt < w.sampleAttempts; attempt++ {
		log.Debug("instance not recognized yet, retrying initial sample", zap.Int("attempt", attempt))
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-w.clock.After(w.sampleBackoff):
		}
		state, err = w.lbs.InstanceHealth(ctx, binding.LoadBalancerName, binding.InstanceID)
		if err != nil {
			return state, err
		}
	}

	if !state.Recognized() {
		return state, &Error{
			LoadBalancer: binding.LoadBalancerName,
			Instance:     binding.InstanceID,
			Description:  state.Description,
			Err:          ErrUnavailable,
		}
	}
	return state, nil
}

// ensureZone enables the instance's availability zone on the load balancer
// before a register, unless it is already enabled. Reports whether a zone
// was enabled.
func (w *Waiter) ensureZone(ctx context.Context, binding types.LoadBalancerBinding, dir Direction, opts Options, log *zap.Logger) (bool, error) {
	if dir != Register || !opts.EnableZone {
		return false, nil
	}

	zone, err := w.placement.InstanceZone(ctx, binding.InstanceID)
	if err != nil {
		return false, fmt.Errorf("looking up zone for instance %s: %w", binding.InstanceID, err)
	}

	lbs, err := w.lbs.ListLoadBalancers(ctx, []string{binding.LoadBalancerName})
	if err != nil {
		return false, err
	}
	if len(lbs) == 0 {
		return false, fmt.Errorf("load balancer %q not found", binding.LoadBalancerName)
	}
	if lbs[0].HasZone(zone) {
		return false, nil
	}

	if err := w.lbs.EnableAvailabilityZone(ctx, binding.LoadBalancerName, zone); err != nil {
		return false, fmt.Errorf("enabling availability zone %s on %s: %w", zone, binding.LoadBalancerName, err)
	}
	log.Info("enabled availability zone", zap.String("zone", zone))
	return true, nil
}

func (w *Waiter) mutate(ctx context.Context, binding types.LoadBalancerBinding, dir Direction) error {
	if dir == Deregister {
		return w.lbs.DeregisterInstance(ctx, binding.LoadBalancerName, binding.InstanceID)
	}
	return w.lbs.RegisterInstance(ctx, binding.LoadBalancerName, binding.InstanceID)
}

// await polls the binding until its health equals the awaited state, a
// fatal condition is detected, or the deadline passes. The deadline is
// checked after each sample so the last observation is always available for
// diagnostics.
func (w *Waiter) await(ctx context.Context, binding types.LoadBalancerBinding, dir Direction, initial types.HealthState, deadline time.Time, log *zap.Logger) (Result, error) {
	awaited := dir.awaited()
	last := initial

	for {
		state, err := w.lbs.InstanceHealth(ctx, binding.LoadBalancerName, binding.InstanceID)
		if err != nil {
			return Result{Outcome: OutcomeFailed, Final: last}, err
		}
		last = state
		log.Debug("sampled instance health",
			zap.String("state", string(state.Status)),
			zap.String("description", state.Description),
		)

		if w.satisfied(dir, state.Status) {
			log.Info("instance converged", zap.String("state", string(state.Status)))
			return Result{
				Outcome: OutcomeConverged,
				Changed: initial.Status != awaited,
				Final:   state,
			}, nil
		}

		if dir == Register && !state.Recognized() {
			// The load balancer lost track of the instance after the
			// register was issued; it will never reach InService.
			return Result{Outcome: OutcomeFailed, Final: state}, &Error{
				LoadBalancer: binding.LoadBalancerName,
				Instance:     binding.InstanceID,
				Description:  state.Description,
				Err:          ErrUnavailable,
			}
		}

		if !w.clock.Now().Before(deadline) {
			if dir == Register && w.classifier.Classify(state) == ClassFailedHealthCheck {
				return Result{Outcome: OutcomeFailed, Final: state}, &Error{
					LoadBalancer: binding.LoadBalancerName,
					Instance:     binding.InstanceID,
					Description:  state.Description,
					Err:          ErrFailed,
				}
			}
			return Result{Outcome: OutcomeTimedOut, Final: state}, &Error{
				LoadBalancer: binding.LoadBalancerName,
				Instance:     binding.InstanceID,
				Description:  state.Description,
				Err:          ErrTimeout,
			}
		}

		select {
		case <-ctx.Done():
			return Result{Outcome: OutcomeFailed, Final: last}, ctx.Err()
		case <-w.clock.After(w.interval):
		}
	}
}

// satisfied reports whether a sampled status meets the awaited state. An
// unrecognized instance satisfies a deregister: the load balancer having no
// record of the instance at all is as out of service as it gets.
func (w *Waiter) satisfied(dir Direction, status types.HealthStatus) bool {
	if dir == Deregister {
		return status == types.HealthOutOfService || status == types.HealthUnknown
	}
	return status == types.HealthInService
}

// dryRunResult samples once and reports what the mutation would change
// without issuing it.
func (w *Waiter) dryRunResult(ctx context.Context, binding types.LoadBalancerBinding, dir Direction, opts Options, log *zap.Logger) (Result, error) {
	state, err := w.lbs.InstanceHealth(ctx, binding.LoadBalancerName, binding.InstanceID)
	if err != nil {
		return Result{Outcome: OutcomeFailed}, err
	}

	if dir == Deregister && state.Status != types.HealthInService {
		log.Info("instance already out of service, nothing to do")
		return Result{Outcome: OutcomeConverged, Changed: false, Final: state}, nil
	}

	var zoneWould bool
	if dir == Register && opts.EnableZone {
		zone, err := w.placement.InstanceZone(ctx, binding.InstanceID)
		if err != nil {
			return Result{Outcome: OutcomeFailed}, fmt.Errorf("looking up zone for instance %s: %w", binding.InstanceID, err)
		}
		lbs, err := w.lbs.ListLoadBalancers(ctx, []string{binding.LoadBalancerName})
		if err != nil {
			return Result{Outcome: OutcomeFailed}, err
		}
		if len(lbs) > 0 && !lbs[0].HasZone(zone) {
			log.Info("would enable availability zone", zap.String("zone", zone))
			zoneWould = true
		}
	}

	log.Info("would " + dir.String() + " instance")
	return Result{
		Outcome:     OutcomeDryRun,
		Changed:     state.Status != dir.awaited(),
		Final:       state,
		ZoneEnabled: zoneWould,
	}, nil
}
