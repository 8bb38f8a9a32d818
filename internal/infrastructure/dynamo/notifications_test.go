package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfer-notifier/internal/domain"
)

// --- fake ---

type fakeAPI struct {
	getOut      *dynamodb.GetItemOutput
	updateIn    []*dynamodb.UpdateItemInput
	updateErr   error
	scanIn      []*dynamodb.ScanInput
	scanPages   []*dynamodb.ScanOutput
	transactIn  []*dynamodb.TransactWriteItemsInput
	transactErr error
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getOut, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateIn = append(f.updateIn, in)
	return &dynamodb.UpdateItemOutput{}, f.updateErr
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanIn = append(f.scanIn, in)
	page := f.scanPages[len(f.scanIn)-1]
	return page, nil
}

func (f *fakeAPI) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.transactIn = append(f.transactIn, in)
	return &dynamodb.TransactWriteItemsOutput{}, f.transactErr
}

func newTestRepo(api *fakeAPI) *NotificationRepo {
	r := NewNotificationRepo(api, "notifications")
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func item(id, ts string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"notificationId": &types.AttributeValueMemberS{Value: id},
		"type":           &types.AttributeValueMemberS{Value: domain.TypeTransferReceived},
		"timestamp":      &types.AttributeValueMemberS{Value: ts},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// --- tests ---

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(&fakeAPI{getOut: &dynamodb.GetItemOutput{}})

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_DecodesRecord(t *testing.T) {
	it := item("n1", "2026-01-01T00:00:00.000Z")
	it["amount"] = &types.AttributeValueMemberN{Value: "500"}
	it["sent"] = &types.AttributeValueMemberBOOL{Value: true}
	repo := newTestRepo(&fakeAPI{getOut: &dynamodb.GetItemOutput{Item: it}})

	rec, err := repo.Get(context.Background(), "n1")
	require.NoError(t, err)
	assert.Equal(t, "n1", rec.NotificationID)
	require.NotNil(t, rec.Amount)
	assert.Equal(t, domain.Amount("500"), *rec.Amount)
	assert.True(t, rec.Delivered())
}

func TestMarkSent_SetsOutcomeAndClearsFailure(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, newTestRepo(api).MarkSent(context.Background(), "n1"))

	require.Len(t, api.updateIn, 1)
	in := api.updateIn[0]
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1 REMOVE #f2, #f3", *in.UpdateExpression)
	assert.Equal(t, "attribute_exists(#pk)", *in.ConditionExpression)
	assert.Equal(t, map[string]string{
		"#f0": "sent",
		"#f1": "sentAt",
		"#f2": "error",
		"#f3": "failedAt",
		"#pk": "notificationId",
	}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: true}, in.ExpressionAttributeValues[":v0"])
	assert.Equal(t, "2026-03-01T12:00:00.000Z", str(in.ExpressionAttributeValues[":v1"]))
	assert.Equal(t, "n1", str(in.Key["notificationId"]))
}

func TestMarkFailed_SetsErrorAndFailedAt(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, newTestRepo(api).MarkFailed(context.Background(), "n1", "Requested entity was not found."))

	in := api.updateIn[0]
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2 REMOVE #f3", *in.UpdateExpression)
	assert.Equal(t, "error", in.ExpressionAttributeNames["#f0"])
	assert.Equal(t, "failedAt", in.ExpressionAttributeNames["#f1"])
	assert.Equal(t, "sent", in.ExpressionAttributeNames["#f2"])
	assert.Equal(t, "sentAt", in.ExpressionAttributeNames["#f3"])
	assert.Equal(t, "Requested entity was not found.", str(in.ExpressionAttributeValues[":v0"]))
	assert.Equal(t, &types.AttributeValueMemberBOOL{Value: false}, in.ExpressionAttributeValues[":v2"])
}

func TestMarkSent_MissingRecordMapsToNotFound(t *testing.T) {
	api := &fakeAPI{updateErr: &types.ConditionalCheckFailedException{Message: aws.String("nope")}}

	err := newTestRepo(api).MarkSent(context.Background(), "gone")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOlderThan_FiltersByTimestampAndPaginates(t *testing.T) {
	api := &fakeAPI{scanPages: []*dynamodb.ScanOutput{
		{
			Items:            []map[string]types.AttributeValue{item("a", "2026-01-01T00:00:00.000Z")},
			LastEvaluatedKey: strKey("notificationId", "a"),
		},
		{
			Items: []map[string]types.AttributeValue{item("b", "2026-01-02T00:00:00.000Z")},
		},
	}}

	records, err := newTestRepo(api).ListOlderThan(context.Background(), "2026-01-31T00:00:00.000Z")
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].NotificationID)
	assert.Equal(t, "b", records[1].NotificationID)

	require.Len(t, api.scanIn, 2)
	first := api.scanIn[0]
	assert.Equal(t, "#ts < :cutoff", *first.FilterExpression)
	assert.Equal(t, "timestamp", first.ExpressionAttributeNames["#ts"])
	assert.Equal(t, "2026-01-31T00:00:00.000Z", str(first.ExpressionAttributeValues[":cutoff"]))
	assert.Equal(t, "a", str(api.scanIn[1].ExclusiveStartKey["notificationId"]))
}

func TestListOlderThan_MalformedRecordKeepsID(t *testing.T) {
	bad := item("bad", "2026-01-02T00:00:00.000Z")
	bad["amount"] = &types.AttributeValueMemberBOOL{Value: true}
	api := &fakeAPI{scanPages: []*dynamodb.ScanOutput{
		{Items: []map[string]types.AttributeValue{item("good", "2026-01-01T00:00:00.000Z"), bad}},
	}}

	records, err := newTestRepo(api).ListOlderThan(context.Background(), "2026-01-31T00:00:00.000Z")
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "good", records[0].NotificationID)
	assert.Equal(t, domain.TypeTransferReceived, records[0].Type)
	assert.Equal(t, domain.NotificationRecord{NotificationID: "bad"}, records[1])
}

func TestDeleteBatch_ChunksTransactions(t *testing.T) {
	api := &fakeAPI{}
	ids := make([]string, 150)
	for i := range ids {
		ids[i] = "id"
	}

	require.NoError(t, newTestRepo(api).DeleteBatch(context.Background(), ids))

	require.Len(t, api.transactIn, 2)
	assert.Len(t, api.transactIn[0].TransactItems, 100)
	assert.Len(t, api.transactIn[1].TransactItems, 50)
	assert.Equal(t, "notifications", *api.transactIn[0].TransactItems[0].Delete.TableName)
}

func TestDeleteBatch_Empty_NoCall(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, newTestRepo(api).DeleteBatch(context.Background(), nil))
	assert.Empty(t, api.transactIn)
}

func TestDeleteBatch_PropagatesError(t *testing.T) {
	api := &fakeAPI{transactErr: errors.New("TransactionCanceledException")}

	err := newTestRepo(api).DeleteBatch(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "TransactionCanceledException")
}
