package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	domain "course-enrollment/internal/domain/enrollment"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_PendingThenOutcome(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, l.PutPending(ctx, domain.NewPendingEntry("b1", 11, 55, 1, domain.ActionEnroll, now)))
	require.NoError(t, l.PutPending(ctx, domain.NewPendingEntry("b1", 9, 55, 1, domain.ActionUnenroll, now)))

	enrollmentID := int64(700)
	require.NoError(t, l.UpdateOutcome(ctx, &domain.StatusLedgerUpdate{
		BatchID:         "b1",
		ClassGroupID:    11,
		Status:          domain.EnrollmentStatusEnrolled,
		RdbEnrollmentID: &enrollmentID,
		UpdatedAt:       now.Add(time.Second),
	}))

	entries, err := l.QueryByBatch(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "9", entries[0].ClassGroupID)
	assert.Equal(t, domain.EnrollmentStatusPending, entries[0].Status)
	assert.Equal(t, "11", entries[1].ClassGroupID)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, entries[1].Status)
	assert.Equal(t, int64(1), entries[1].SemesterID)
	assert.Equal(t, domain.ActionEnroll, entries[1].Action)
	require.NotNil(t, entries[1].RdbEnrollmentID)
	assert.Equal(t, enrollmentID, *entries[1].RdbEnrollmentID)

	empty, err := l.QueryByBatch(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryLedger_OutcomeWithoutPending(t *testing.T) {
	l := NewMemoryLedger()
	ctx := context.Background()

	require.NoError(t, l.UpdateOutcome(ctx, &domain.StatusLedgerUpdate{
		BatchID:       "b2",
		ClassGroupID:  4,
		StudentID:     55,
		Status:        domain.EnrollmentStatusFailed,
		FailureReason: "class group 4 not found",
		UpdatedAt:     time.Now(),
	}))

	entries, err := l.QueryByBatch(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "4", entries[0].ClassGroupID)
	assert.Equal(t, int64(55), entries[0].StudentID)
	assert.Equal(t, "class group 4 not found", entries[0].FailureReason)
}

type fakeDynamo struct {
	put    []*dynamodb.PutItemInput
	update []*dynamodb.UpdateItemInput
	query  []*dynamodb.QueryInput
	items  []map[string]types.AttributeValue
}

func (f *fakeDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.put = append(f.put, params)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.update = append(f.update, params)
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.query = append(f.query, params)
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func TestNewDynamoDBLedger_RequiresTable(t *testing.T) {
	_, err := NewDynamoDBLedger(&fakeDynamo{}, "", time.Hour)
	assert.Error(t, err)
}

func TestDynamoDBLedger_PutPending(t *testing.T) {
	fake := &fakeDynamo{}
	l, err := NewDynamoDBLedger(fake, "enrollment_status", time.Hour)
	require.NoError(t, err)

	entry := domain.NewPendingEntry("1_S001_1700000000000", 10, 55, 1, domain.ActionEnroll, time.Now())
	require.NoError(t, l.PutPending(context.Background(), entry))

	require.Len(t, fake.put, 1)
	item := fake.put[0].Item
	assert.Equal(t, "enrollment_status", aws.ToString(fake.put[0].TableName))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "1_S001_1700000000000"}, item["batchId"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "10"}, item["classGroupId"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "5"}, item["status"])
	assert.Contains(t, item, "expiresAt")
	assert.NotContains(t, item, "rdbEnrollmentId")
	assert.NotContains(t, item, "failureReason")
	assert.Zero(t, entry.ExpiresAt)
}

func TestDynamoDBLedger_UpdateOutcomeRemovesStaleReason(t *testing.T) {
	fake := &fakeDynamo{}
	l, err := NewDynamoDBLedger(fake, "enrollment_status", 0)
	require.NoError(t, err)

	id := int64(42)
	require.NoError(t, l.UpdateOutcome(context.Background(), &domain.StatusLedgerUpdate{
		BatchID:         "b1",
		ClassGroupID:    10,
		Status:          domain.EnrollmentStatusEnrolled,
		Action:          domain.ActionEnroll,
		RdbEnrollmentID: &id,
		UpdatedAt:       time.Now(),
	}))

	require.Len(t, fake.update, 1)
	in := fake.update[0]
	assert.Equal(t, &types.AttributeValueMemberS{Value: "b1"}, in.Key["batchId"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "10"}, in.Key["classGroupId"])

	expr := aws.ToString(in.UpdateExpression)
	assert.True(t, strings.Contains(expr, "REMOVE"), expr)
	assert.True(t, strings.Contains(expr, "SET"), expr)

	var names []string
	for _, n := range in.ExpressionAttributeNames {
		names = append(names, n)
	}
	assert.ElementsMatch(t, []string{"status", "updatedAt", "action", "rdbEnrollmentId", "failureReason"}, names)
}

func TestDynamoDBLedger_QueryByBatch(t *testing.T) {
	fake := &fakeDynamo{}
	for _, e := range []*domain.StatusLedgerEntry{
		{BatchID: "b1", ClassGroupID: "12", StudentID: 55, SemesterID: 1, Status: domain.EnrollmentStatusFailed, UpdatedAt: "t2"},
		{BatchID: "b1", ClassGroupID: "3", StudentID: 55, SemesterID: 1, Status: domain.EnrollmentStatusEnrolled, UpdatedAt: "t1"},
	} {
		item, err := attributevalue.MarshalMap(e)
		require.NoError(t, err)
		fake.items = append(fake.items, item)
	}

	l, err := NewDynamoDBLedger(fake, "enrollment_status", 0)
	require.NoError(t, err)

	entries, err := l.QueryByBatch(context.Background(), "b1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "3", entries[0].ClassGroupID)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, entries[0].Status)
	assert.Equal(t, "12", entries[1].ClassGroupID)

	require.Len(t, fake.query, 1)
	assert.NotNil(t, fake.query[0].KeyConditionExpression)
	assert.NotNil(t, fake.query[0].ProjectionExpression)
}
