package provider

import (
	"context"
	"errors"

	"github.com/stratusctl/stratus/pkg/types"
)

// Common errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrNotConfigured       = errors.New("provider not configured")
	ErrDependencyViolation = errors.New("resource is referenced by another resource")
)

// GroupService defines the provider operations for security groups. All
// calls are synchronous remote calls; retry and backoff for transient
// transport errors are the implementation's concern.
type GroupService interface {
	// ListGroups returns a full read of the groups visible to the caller,
	// optionally filtered to one VPC.
	ListGroups(ctx context.Context, vpcID string) ([]types.Group, error)

	// CreateGroup creates an empty group and returns it with its assigned id.
	CreateGroup(ctx context.Context, name, description, vpcID string) (types.Group, error)

	// DeleteGroup removes a group. It fails with ErrDependencyViolation when
	// the group is still referenced elsewhere.
	DeleteGroup(ctx context.Context, groupID string) error

	// AuthorizeRule adds one grant to a group.
	AuthorizeRule(ctx context.Context, groupID string, grant types.Grant) error

	// RevokeRule removes one grant from a group.
	RevokeRule(ctx context.Context, groupID string, grant types.Grant) error
}

// LoadBalancerService defines the provider operations for classic load
// balancers and their instance bindings.
type LoadBalancerService interface {
	// ListLoadBalancers returns load balancers by name, or all of them when
	// names is empty. A name that does not exist fails with ErrNotFound.
	ListLoadBalancers(ctx context.Context, names []string) ([]types.LoadBalancer, error)

	// RegisterInstance adds an instance to a load balancer.
	RegisterInstance(ctx context.Context, lbName, instanceID string) error

	// DeregisterInstance removes an instance from a load balancer.
	DeregisterInstance(ctx context.Context, lbName, instanceID string) error

	// InstanceHealth samples the health of one instance behind a load
	// balancer. An instance the load balancer does not recognize is reported
	// with HealthUnknown status, not an error.
	InstanceHealth(ctx context.Context, lbName, instanceID string) (types.HealthState, error)

	// EnableAvailabilityZone enables a zone on a load balancer.
	EnableAvailabilityZone(ctx context.Context, lbName, zone string) error
}

// InstanceService defines the provider operations for instance metadata.
type InstanceService interface {
	// InstanceZone returns the availability zone an instance is placed in.
	InstanceZone(ctx context.Context, instanceID string) (string, error)
}
