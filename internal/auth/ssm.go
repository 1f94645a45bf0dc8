package auth

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/rotisserie/eris"
)

// SSMAPI is the subset of the SSM client used here.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMParameterStore reads SecureString parameters from AWS Systems Manager
// Parameter Store, decrypting them on read.
type SSMParameterStore struct {
	client SSMAPI
}

// NewSSMParameterStore wraps an existing SSM client.
func NewSSMParameterStore(client SSMAPI) *SSMParameterStore {
	return &SSMParameterStore{client: client}
}

// LoadSSMParameterStore builds a client from the default AWS credential
// chain. An empty region defers to the environment.
func LoadSSMParameterStore(ctx context.Context, region string) (*SSMParameterStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "auth: load aws config")
	}
	return NewSSMParameterStore(ssm.NewFromConfig(cfg)), nil
}

// GetParameter returns the decrypted value of name.
func (s *SSMParameterStore) GetParameter(ctx context.Context, name string) (string, error) {
	out, err := s.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", eris.Wrapf(ErrParameterNotFound, "auth: get %s", name)
		}
		return "", eris.Wrapf(err, "auth: get %s", name)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", eris.Wrapf(ErrParameterNotFound, "auth: get %s", name)
	}
	return aws.ToString(out.Parameter.Value), nil
}
