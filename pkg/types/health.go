package types

// HealthStatus is the coarse instance state a load balancer reports.
type HealthStatus string

const (
	HealthInService    HealthStatus = "InService"
	HealthOutOfService HealthStatus = "OutOfService"

	// HealthUnknown means the load balancer does not recognize the instance
	// at all, which is distinct from a registered instance that is out of
	// service.
	HealthUnknown HealthStatus = "Unknown"
)

// HealthState is one health sample for an instance behind a load balancer.
// ReasonCode and Description are free text from the provider; they are
// surfaced verbatim in failures and drive the pending-state heuristic.
type HealthState struct {
	Status      HealthStatus
	ReasonCode  string
	Description string
}

// Recognized reports whether the load balancer knows the instance.
func (h HealthState) Recognized() bool {
	return h.Status != HealthUnknown
}
