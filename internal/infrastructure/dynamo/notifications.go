package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/transfer-notifier/internal/domain"
)

// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
const maxTransactItems = 100

// API is the subset of the DynamoDB client used by NotificationRepo.
type API interface {
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewNotificationRepo(client API, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.NotificationRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldNotificationID, notificationID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get notification %s: %w", notificationID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.NotificationRecord
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification: %w", err)
	}
	return &n, nil
}

// MarkSent records a successful delivery. sentAt is assigned by the store at write time.
func (r *NotificationRepo) MarkSent(ctx context.Context, notificationID string) error {
	return r.update(ctx, notificationID, map[string]interface{}{
		fieldSent:   true,
		fieldSentAt: domain.FormatTimestamp(r.now()),
	}, fieldError, fieldFailedAt)
}

// MarkFailed records a failed delivery with the provider's message.
func (r *NotificationRepo) MarkFailed(ctx context.Context, notificationID, message string) error {
	return r.update(ctx, notificationID, map[string]interface{}{
		fieldSent:     false,
		fieldError:    message,
		fieldFailedAt: domain.FormatTimestamp(r.now()),
	}, fieldSentAt)
}

// update applies the outcome fields only if the record still exists, so a
// record purged mid-dispatch is not resurrected as a bare outcome item.
func (r *NotificationRepo) update(ctx context.Context, notificationID string, set map[string]interface{}, remove ...string) error {
	ue, err := buildUpdateExpr(set, remove...)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldNotificationID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldNotificationID, notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("update notification %s: %w", notificationID, domain.ErrNotFound)
		}
		return fmt.Errorf("update notification %s: %w", notificationID, err)
	}
	return nil
}

// ListOlderThan returns every record whose timestamp string sorts before cutoff.
// Records without a timestamp never match. A record with malformed attributes
// is returned with only its NotificationID set.
func (r *NotificationRepo) ListOlderThan(ctx context.Context, cutoff string) ([]domain.NotificationRecord, error) {
	p := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("#ts < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#ts": fieldTimestamp,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cutoff": &types.AttributeValueMemberS{Value: cutoff},
		},
		ConsistentRead: aws.Bool(true),
	})

	var records []domain.NotificationRecord
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan notifications: %w", err)
		}
		for _, item := range page.Items {
			if rec, ok := decodeAged(item); ok {
				records = append(records, rec)
			}
		}
	}
	return records, nil
}

// decodeAged decodes a scanned item. An item whose attributes do not decode
// still yields its key so the sweep can purge it.
func decodeAged(item map[string]types.AttributeValue) (domain.NotificationRecord, bool) {
	var rec domain.NotificationRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err == nil {
		return rec, true
	}
	key, ok := item[fieldNotificationID].(*types.AttributeValueMemberS)
	if !ok || key.Value == "" {
		return rec, false
	}
	return domain.NotificationRecord{NotificationID: key.Value}, true
}

// DeleteBatch deletes the given records transactionally. Each group of up to
// maxTransactItems ids is all-or-nothing; an error stops at the failing group.
func (r *NotificationRepo) DeleteBatch(ctx context.Context, notificationIDs []string) error {
	for _, ids := range chunk(notificationIDs, maxTransactItems) {
		items := make([]types.TransactWriteItem, 0, len(ids))
		for _, id := range ids {
			items = append(items, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(r.tableName),
					Key:       strKey(fieldNotificationID, id),
				},
			})
		}
		if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		}); err != nil {
			return fmt.Errorf("delete %d notifications: %w", len(ids), err)
		}
	}
	return nil
}
