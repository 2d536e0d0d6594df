package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/stratusctl/stratus/pkg/provider"
	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

var _ provider.InstanceService = (*Client)(nil)

// DescribeInstance returns one instance by ID
func (c *Client) DescribeInstance(ctx context.Context, instanceID string) (*pkgtypes.Instance, error) {
	output, err := c.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidInstanceID.NotFound" {
			return nil, fmt.Errorf("instance %s: %w", instanceID, provider.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range output.Reservations {
		for _, inst := range reservation.Instances {
			result := toInstance(inst)
			return &result, nil
		}
	}

	return nil, fmt.Errorf("instance %s: %w", instanceID, provider.ErrNotFound)
}

// InstanceZone returns the availability zone an instance is placed in
func (c *Client) InstanceZone(ctx context.Context, instanceID string) (string, error) {
	inst, err := c.DescribeInstance(ctx, instanceID)
	if err != nil {
		return "", err
	}
	return inst.AZ, nil
}

// toInstance converts an EC2 Instance to our Instance type
func toInstance(i ec2types.Instance) pkgtypes.Instance {
	inst := pkgtypes.Instance{
		ID:   deref(i.InstanceId),
		Type: string(i.InstanceType),
	}

	if i.State != nil {
		inst.State = string(i.State.Name)
	}

	if i.PrivateIpAddress != nil {
		inst.PrivateIP = *i.PrivateIpAddress
	}

	if i.PublicIpAddress != nil {
		inst.PublicIP = *i.PublicIpAddress
	}

	if i.Placement != nil && i.Placement.AvailabilityZone != nil {
		inst.AZ = *i.Placement.AvailabilityZone
	}

	if i.LaunchTime != nil {
		inst.LaunchTime = *i.LaunchTime
	}

	// Extract tags
	for _, tag := range i.Tags {
		key := deref(tag.Key)
		value := deref(tag.Value)

		switch key {
		case "Name":
			inst.Name = value
		case "aws:autoscaling:groupName":
			inst.ASG = value
		}
	}

	return inst
}
