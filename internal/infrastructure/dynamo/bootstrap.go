package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// TableAPI is the subset of the DynamoDB client used for table management.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Bootstrap creates the notifications table with its change stream if it
// doesn't already exist. Safe to call on every startup.
func Bootstrap(ctx context.Context, client TableAPI, tableName string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(fieldNotificationID), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(fieldNotificationID), KeyType: types.KeyTypeHash},
		},
		StreamSpecification: &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewImage,
		},
	})
	if err != nil {
		// ResourceInUseException means the table already exists.
		var riue *types.ResourceInUseException
		if errors.As(err, &riue) {
			return nil
		}
		return fmt.Errorf("create table %s: %w", tableName, err)
	}
	logger.Info("created table", zap.String("table", tableName))
	return nil
}

// StreamARN returns the ARN of the table's latest change stream.
func StreamARN(ctx context.Context, client TableAPI, tableName string) (string, error) {
	out, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return "", fmt.Errorf("describe table %s: %w", tableName, err)
	}
	if out.Table == nil || out.Table.LatestStreamArn == nil {
		return "", fmt.Errorf("table %s has no stream enabled", tableName)
	}
	return *out.Table.LatestStreamArn, nil
}

// Ping reports whether the table can be described, for readiness checks.
func Ping(ctx context.Context, client TableAPI, tableName string) error {
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	}); err != nil {
		return fmt.Errorf("describe table %s: %w", tableName, err)
	}
	return nil
}
