package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/stratusctl/stratus/pkg/provider"
	pkgtypes "github.com/stratusctl/stratus/pkg/types"
)

var _ provider.GroupService = (*Client)(nil)

// ListGroups returns all security groups, optionally filtered by VPC ID
func (c *Client) ListGroups(ctx context.Context, vpcID string) ([]pkgtypes.Group, error) {
	input := &ec2.DescribeSecurityGroupsInput{}

	if vpcID != "" {
		input.Filters = []ec2types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
		}
	}

	var groups []pkgtypes.Group
	paginator := ec2.NewDescribeSecurityGroupsPaginator(c.EC2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		for _, sg := range page.SecurityGroups {
			groups = append(groups, toGroup(sg))
		}
	}

	return groups, nil
}

// CreateGroup creates an empty security group and returns it with its
// assigned ID
func (c *Client) CreateGroup(ctx context.Context, name, description, vpcID string) (pkgtypes.Group, error) {
	input := &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(name),
		Description: aws.String(description),
	}
	if vpcID != "" {
		input.VpcId = aws.String(vpcID)
	}

	output, err := c.EC2.CreateSecurityGroup(ctx, input)
	if err != nil {
		return pkgtypes.Group{}, fmt.Errorf("failed to create security group %q: %w", name, err)
	}

	return pkgtypes.Group{
		ID:          deref(output.GroupId),
		Name:        name,
		Description: description,
		VPCID:       vpcID,
	}, nil
}

// DeleteGroup removes a security group
func (c *Client) DeleteGroup(ctx context.Context, groupID string) error {
	_, err := c.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(groupID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete security group %s: %w", groupID, mapGroupError(err))
	}
	return nil
}

// AuthorizeRule adds one grant to a security group
func (c *Client) AuthorizeRule(ctx context.Context, groupID string, grant pkgtypes.Grant) error {
	var err error
	if grant.Direction == pkgtypes.DirectionEgress {
		_, err = c.EC2.AuthorizeSecurityGroupEgress(ctx, &ec2.AuthorizeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{toIPPermission(grant)},
		})
	} else {
		_, err = c.EC2.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{toIPPermission(grant)},
		})
	}
	if err != nil {
		return fmt.Errorf("failed to authorize rule on %s: %w", groupID, mapGroupError(err))
	}
	return nil
}

// RevokeRule removes one grant from a security group
func (c *Client) RevokeRule(ctx context.Context, groupID string, grant pkgtypes.Grant) error {
	var err error
	if grant.Direction == pkgtypes.DirectionEgress {
		_, err = c.EC2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{toIPPermission(grant)},
		})
	} else {
		_, err = c.EC2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{toIPPermission(grant)},
		})
	}
	if err != nil {
		return fmt.Errorf("failed to revoke rule on %s: %w", groupID, mapGroupError(err))
	}
	return nil
}

// mapGroupError translates EC2 API error codes into provider errors
func mapGroupError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidGroup.NotFound", "InvalidGroupId.NotFound":
			return provider.ErrNotFound
		case "DependencyViolation":
			return fmt.Errorf("%s: %w", apiErr.ErrorMessage(), provider.ErrDependencyViolation)
		}
	}
	return err
}

// toGroup converts an EC2 SecurityGroup to our Group type. A provider rule
// carries multiple peer entries; each entry becomes its own Grant so a
// revoke can target a single peer instead of the whole rule.
func toGroup(sg ec2types.SecurityGroup) pkgtypes.Group {
	group := pkgtypes.Group{
		ID:          deref(sg.GroupId),
		Name:        deref(sg.GroupName),
		Description: deref(sg.Description),
		VPCID:       deref(sg.VpcId),
		OwnerID:     deref(sg.OwnerId),
	}

	for _, perm := range sg.IpPermissions {
		group.Ingress = append(group.Ingress, toGrants(pkgtypes.DirectionIngress, perm)...)
	}
	for _, perm := range sg.IpPermissionsEgress {
		group.Egress = append(group.Egress, toGrants(pkgtypes.DirectionEgress, perm)...)
	}

	return group
}

// toGrants fans one IpPermission out into one Grant per peer entry
func toGrants(dir pkgtypes.Direction, perm ec2types.IpPermission) []pkgtypes.Grant {
	base := pkgtypes.Grant{
		Direction: dir,
		Protocol:  deref(perm.IpProtocol),
		FromPort:  perm.FromPort,
		ToPort:    perm.ToPort,
	}

	var grants []pkgtypes.Grant
	for _, r := range perm.IpRanges {
		g := base
		g.CIDR = deref(r.CidrIp)
		grants = append(grants, g)
	}
	for _, r := range perm.Ipv6Ranges {
		g := base
		g.CIDR = deref(r.CidrIpv6)
		grants = append(grants, g)
	}
	for _, pair := range perm.UserIdGroupPairs {
		g := base
		g.PeerGroupID = deref(pair.GroupId)
		g.PeerGroupName = deref(pair.GroupName)
		grants = append(grants, g)
	}

	return grants
}

// toIPPermission converts one grant back into the provider's rule shape
func toIPPermission(grant pkgtypes.Grant) ec2types.IpPermission {
	perm := ec2types.IpPermission{
		IpProtocol: aws.String(grant.Protocol),
		FromPort:   grant.FromPort,
		ToPort:     grant.ToPort,
	}

	switch {
	case grant.CIDR != "" && strings.Contains(grant.CIDR, ":"):
		perm.Ipv6Ranges = []ec2types.Ipv6Range{{CidrIpv6: aws.String(grant.CIDR)}}
	case grant.CIDR != "":
		perm.IpRanges = []ec2types.IpRange{{CidrIp: aws.String(grant.CIDR)}}
	case grant.PeerGroupID != "":
		perm.UserIdGroupPairs = []ec2types.UserIdGroupPair{{GroupId: aws.String(grant.PeerGroupID)}}
	case grant.PeerGroupName != "":
		perm.UserIdGroupPairs = []ec2types.UserIdGroupPair{{GroupName: aws.String(grant.PeerGroupName)}}
	}

	return perm
}

// deref safely dereferences a string pointer
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// deref32 safely dereferences an int32 pointer
func deref32(i *int32) int32 {
	if i == nil {
		return 0
	}
	return *i
}
