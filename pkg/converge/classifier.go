package converge

import (
	"strings"

	"github.com/stratusctl/stratus/pkg/types"
)

// Classification buckets one health sample for the poll loop.
type Classification int

const (
	// ClassSettled means the sample is neither transitioning nor failing.
	// A settled sample that does not match the awaited state is simply
	// polled again.
	ClassSettled Classification = iota

	// ClassPending means the provider describes the instance as still in
	// transition.
	ClassPending

	// ClassFailedHealthCheck means the instance itself is failing the load
	// balancer's health checks.
	ClassFailedHealthCheck
)

// StateClassifier interprets one health sample. The default reads classic
// load balancer fields; swap it if the provider ever exposes a structured
// transition status.
type StateClassifier interface {
	Classify(state types.HealthState) Classification
}

// elbClassifier classifies classic load balancer health samples. The
// provider reports transitions only as free text, so pending detection is a
// substring match on the description; a reason code of "Instance" pins the
// problem on the instance's own health checks rather than the load
// balancer.
type elbClassifier struct{}

func (elbClassifier) Classify(state types.HealthState) Classification {
	if strings.Contains(strings.ToLower(state.Description), "pending") {
		return ClassPending
	}
	if state.ReasonCode == "Instance" {
		return ClassFailedHealthCheck
	}
	return ClassSettled
}
