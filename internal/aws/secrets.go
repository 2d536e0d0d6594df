package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/stratusctl/stratus/pkg/provider"
)

// GetParameter returns the decrypted value of an SSM parameter
func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	output, err := c.SSM.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: boolPtr(true),
	})
	if err != nil {
		var notFound *ssmtypes.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("parameter %s: %w", name, provider.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get SSM parameter %s: %w", name, err)
	}

	if output.Parameter == nil {
		return "", fmt.Errorf("parameter %s: %w", name, provider.ErrNotFound)
	}
	return deref(output.Parameter.Value), nil
}

// GetSecretValue returns the string value of a Secrets Manager secret
func (c *Client) GetSecretValue(ctx context.Context, name string) (string, error) {
	output, err := c.Secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("secret %s: %w", name, provider.ErrNotFound)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}

	return deref(output.SecretString), nil
}

func boolPtr(b bool) *bool { return &b }
