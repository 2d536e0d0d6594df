package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
)

// InstanceAutoScalingGroup returns the name of the Auto Scaling group an
// instance belongs to, or empty when it is not in one
func (c *Client) InstanceAutoScalingGroup(ctx context.Context, instanceID string) (string, error) {
	output, err := c.ASG.DescribeAutoScalingInstances(ctx, &autoscaling.DescribeAutoScalingInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe auto scaling instances: %w", err)
	}

	for _, inst := range output.AutoScalingInstances {
		if deref(inst.InstanceId) == instanceID {
			return deref(inst.AutoScalingGroupName), nil
		}
	}

	return "", nil
}
