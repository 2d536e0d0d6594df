package converge

import (
	"context"
	"sort"

	"github.com/stratusctl/stratus/pkg/types"
)

// DiscoverBindings returns one binding per load balancer the instance is
// currently registered with, ordered by load balancer name. When names is
// non-empty only those load balancers are considered; membership is still
// required either way.
func DiscoverBindings(ctx context.Context, lbs BindingService, instanceID string, names []string) ([]types.LoadBalancerBinding, error) {
	all, err := lbs.ListLoadBalancers(ctx, names)
	if err != nil {
		return nil, err
	}

	var bindings []types.LoadBalancerBinding
	for _, lb := range all {
		if lb.HasInstance(instanceID) {
			bindings = append(bindings, types.LoadBalancerBinding{
				LoadBalancerName: lb.Name,
				InstanceID:       instanceID,
			})
		}
	}
	sort.Slice(bindings, func(i, j int) bool {
		return bindings[i].LoadBalancerName < bindings[j].LoadBalancerName
	})
	return bindings, nil
}
