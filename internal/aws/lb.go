package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	elb "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancing/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/stratusctl/stratus/pkg/provider"
	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

var _ provider.LoadBalancerService = (*Client)(nil)

// ListLoadBalancers returns classic load balancers by name, or all of them
// when names is empty
func (c *Client) ListLoadBalancers(ctx context.Context, names []string) ([]pkgtypes.LoadBalancer, error) {
	input := &elb.DescribeLoadBalancersInput{}
	if len(names) > 0 {
		input.LoadBalancerNames = names
	}

	var lbs []pkgtypes.LoadBalancer
	paginator := elb.NewDescribeLoadBalancersPaginator(c.ELB, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			var notFound *elbtypes.AccessPointNotFoundException
			if errors.As(err, &notFound) {
				return nil, c.classicNotFound(ctx, names)
			}
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}
		for _, lb := range page.LoadBalancerDescriptions {
			lbs = append(lbs, toClassicLoadBalancer(lb))
		}
	}

	return lbs, nil
}

// RegisterInstance adds an instance to a classic load balancer
func (c *Client) RegisterInstance(ctx context.Context, lbName, instanceID string) error {
	_, err := c.ELB.RegisterInstancesWithLoadBalancer(ctx, &elb.RegisterInstancesWithLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []elbtypes.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return fmt.Errorf("failed to register %s with %s: %w", instanceID, lbName, mapELBError(err))
	}
	return nil
}

// DeregisterInstance removes an instance from a classic load balancer
func (c *Client) DeregisterInstance(ctx context.Context, lbName, instanceID string) error {
	_, err := c.ELB.DeregisterInstancesFromLoadBalancer(ctx, &elb.DeregisterInstancesFromLoadBalancerInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []elbtypes.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		return fmt.Errorf("failed to deregister %s from %s: %w", instanceID, lbName, mapELBError(err))
	}
	return nil
}

// InstanceHealth samples the health of one instance behind a classic load
// balancer. An instance the load balancer does not recognize is reported
// with HealthUnknown status, not an error.
func (c *Client) InstanceHealth(ctx context.Context, lbName, instanceID string) (pkgtypes.HealthState, error) {
	output, err := c.ELB.DescribeInstanceHealth(ctx, &elb.DescribeInstanceHealthInput{
		LoadBalancerName: aws.String(lbName),
		Instances:        []elbtypes.Instance{{InstanceId: aws.String(instanceID)}},
	})
	if err != nil {
		var invalid *elbtypes.InvalidEndPointException
		if errors.As(err, &invalid) {
			return pkgtypes.HealthState{Status: pkgtypes.HealthUnknown}, nil
		}
		var notFound *elbtypes.AccessPointNotFoundException
		if errors.As(err, &notFound) {
			return pkgtypes.HealthState{}, fmt.Errorf("load balancer %q: %w", lbName, provider.ErrNotFound)
		}
		return pkgtypes.HealthState{}, fmt.Errorf("failed to describe instance health: %w", err)
	}

	for _, state := range output.InstanceStates {
		if deref(state.InstanceId) == instanceID {
			return toHealthState(state), nil
		}
	}
	return pkgtypes.HealthState{Status: pkgtypes.HealthUnknown}, nil
}

// EnableAvailabilityZone enables a zone on a classic load balancer
func (c *Client) EnableAvailabilityZone(ctx context.Context, lbName, zone string) error {
	_, err := c.ELB.EnableAvailabilityZonesForLoadBalancer(ctx, &elb.EnableAvailabilityZonesForLoadBalancerInput{
		LoadBalancerName:  aws.String(lbName),
		AvailabilityZones: []string{zone},
	})
	if err != nil {
		return fmt.Errorf("failed to enable zone %s on %s: %w", zone, lbName, mapELBError(err))
	}
	return nil
}

// classicNotFound explains a missing classic load balancer. Instance
// registration only works against classic load balancers, so a name that
// exists as an ALB or NLB is called out explicitly instead of being
// reported missing.
func (c *Client) classicNotFound(ctx context.Context, names []string) error {
	for _, name := range names {
		kind, err := c.lookupV2Kind(ctx, name)
		if err == nil && kind != "" {
			return fmt.Errorf("load balancer %q is a %s load balancer; instance registration requires a classic load balancer", name, kind)
		}
	}
	if len(names) > 0 {
		return fmt.Errorf("load balancer %s: %w", strings.Join(names, ", "), provider.ErrNotFound)
	}
	return provider.ErrNotFound
}

// lookupV2Kind reports the type of a v2 load balancer with the given name,
// or empty when no such load balancer exists
func (c *Client) lookupV2Kind(ctx context.Context, name string) (string, error) {
	output, err := c.ELBv2.DescribeLoadBalancers(ctx, &elbv2.DescribeLoadBalancersInput{
		Names: []string{name},
	})
	if err != nil {
		var notFound *elbv2types.LoadBalancerNotFoundException
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", err
	}
	if len(output.LoadBalancers) == 0 {
		return "", nil
	}
	return string(output.LoadBalancers[0].Type), nil
}

// mapELBError translates ELB API errors into provider errors
func mapELBError(err error) error {
	var notFound *elbtypes.AccessPointNotFoundException
	if errors.As(err, &notFound) {
		return provider.ErrNotFound
	}
	return err
}

// toClassicLoadBalancer converts an ELB LoadBalancerDescription to our
// LoadBalancer type
func toClassicLoadBalancer(lb elbtypes.LoadBalancerDescription) pkgtypes.LoadBalancer {
	result := pkgtypes.LoadBalancer{
		Name:              deref(lb.LoadBalancerName),
		DNSName:           deref(lb.DNSName),
		Scheme:            deref(lb.Scheme),
		VPCID:             deref(lb.VPCId),
		AvailabilityZones: lb.AvailabilityZones,
	}

	if lb.CreatedTime != nil {
		result.CreatedAt = *lb.CreatedTime
	}

	for _, inst := range lb.Instances {
		if inst.InstanceId != nil {
			result.InstanceIDs = append(result.InstanceIDs, *inst.InstanceId)
		}
	}

	for _, ld := range lb.ListenerDescriptions {
		if ld.Listener != nil {
			result.Listeners = append(result.Listeners, toListener(*ld.Listener))
		}
	}

	return result
}

// toListener converts an ELB Listener to our Listener type
func toListener(l elbtypes.Listener) pkgtypes.Listener {
	return pkgtypes.Listener{
		Protocol:     deref(l.Protocol),
		Port:         l.LoadBalancerPort,
		InstancePort: deref32(l.InstancePort),
	}
}

// toHealthState converts an ELB InstanceState to our HealthState type
func toHealthState(state elbtypes.InstanceState) pkgtypes.HealthState {
	h := pkgtypes.HealthState{
		Status:      pkgtypes.HealthStatus(deref(state.State)),
		ReasonCode:  deref(state.ReasonCode),
		Description: deref(state.Description),
	}
	if h.Status == "" {
		h.Status = pkgtypes.HealthUnknown
	}
	return h
}
