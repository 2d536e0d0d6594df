package types

import (
	"slices"
	"time"
)

// LoadBalancer represents a classic load balancer
type LoadBalancer struct {
	Name              string
	DNSName           string
	Scheme            string // internet-facing, internal
	VPCID             string
	AvailabilityZones []string
	InstanceIDs       []string
	Listeners         []Listener
	CreatedAt         time.Time
}

// Listener is one frontend/backend port mapping on a load balancer
type Listener struct {
	Protocol     string
	Port         int32
	InstancePort int32
}

// HasInstance reports whether the instance is registered with the load
// balancer.
func (lb LoadBalancer) HasInstance(instanceID string) bool {
	return slices.Contains(lb.InstanceIDs, instanceID)
}

// HasZone reports whether the availability zone is enabled on the load
// balancer.
func (lb LoadBalancer) HasZone(zone string) bool {
	return slices.Contains(lb.AvailabilityZones, zone)
}

// LoadBalancerBinding pairs one instance with one load balancer. It is the
// unit of work for a convergence wait; nothing about it is persisted.
type LoadBalancerBinding struct {
	LoadBalancerName string
	InstanceID       string
}
