package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/infrastructure/awsconf"
)

// NewClient creates a DynamoDB client. When cfg.AWSEndpointURL is set (LocalStack),
// it overrides the endpoint so all traffic goes to the local instance.
func NewClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*dynamodb.Options){}
	if endpoint := awsconf.Endpoint(cfg); endpoint != nil {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = endpoint
		})
	}

	return dynamodb.NewFromConfig(awsCfg, clientOpts...), nil
}
