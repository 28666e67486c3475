package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/hemantobora/proxygen/internal/models"
)

// AWSQuerier lists proxygen EC2 instances via the AWS SDK.
type AWSQuerier struct {
	cfg aws.Config
}

// NewAWSQuerier loads AWS configuration for the given profile. An empty
// profile uses the default credential chain.
func NewAWSQuerier(ctx context.Context, profile string) (*AWSQuerier, error) {
	var cfg aws.Config
	var err error

	if profile != "" {
		cfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
	} else {
		cfg, err = awsconfig.LoadDefaultConfig(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return &AWSQuerier{cfg: cfg}, nil
}

// Provider implements Querier.
func (q *AWSQuerier) Provider() models.Provider { return models.ProviderAWS }

// Preflight verifies the credentials resolve to a real identity.
func (q *AWSQuerier) Preflight(ctx context.Context) error {
	client := sts.NewFromConfig(q.cfg)
	if _, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return wrapAWSError(err, "", "get-caller-identity")
	}
	return nil
}

// ListInstances returns running proxygen instances in the region, matching on
// the ManagedBy tag and the proxygen- name prefix.
func (q *AWSQuerier) ListInstances(ctx context.Context, region string) ([]LiveInstance, error) {
	client := ec2.NewFromConfig(q.cfg, func(o *ec2.Options) {
		o.Region = region
	})

	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag:ManagedBy"), Values: []string{ManagedByTag}},
			{Name: aws.String("instance-state-name"), Values: []string{"pending", "running"}},
		},
	}

	var instances []LiveInstance
	paginator := ec2.NewDescribeInstancesPaginator(client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAWSError(err, region, "describe-instances")
		}
		for _, reservation := range page.Reservations {
			for _, inst := range reservation.Instances {
				instances = append(instances, awsInstance(inst, region))
			}
		}
	}
	return instances, nil
}

func awsInstance(inst ec2types.Instance, region string) LiveInstance {
	live := LiveInstance{
		InstanceID:   aws.ToString(inst.InstanceId),
		Region:       region,
		PublicIP:     aws.ToString(inst.PublicIpAddress),
		PrivateIP:    aws.ToString(inst.PrivateIpAddress),
		InstanceType: string(inst.InstanceType),
		Tags:         make(map[string]string, len(inst.Tags)),
	}
	if inst.State != nil {
		live.State = string(inst.State.Name)
	}
	if inst.LaunchTime != nil {
		live.LaunchedAt = *inst.LaunchTime
	}
	for _, tag := range inst.Tags {
		live.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	live.Name = live.Tags["Name"]
	return live
}

// wrapAWSError converts SDK failures into ProviderAPIError, preserving the
// API error code and message verbatim.
func wrapAWSError(err error, region, op string) error {
	raw := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		raw = strings.TrimSpace(apiErr.ErrorCode() + ": " + apiErr.ErrorMessage())
	}
	return &models.ProviderAPIError{
		Provider: models.ProviderAWS,
		Region:   region,
		Op:       op,
		RawText:  raw,
		Cause:    err,
	}
}
