package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the DynamoDB client the ledger uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ interfaces.StatusLedger = (*DynamoDBLedger)(nil)

// DynamoDBLedger stores entries in a table with partition key batchId and
// sort key classGroupId, both strings.
type DynamoDBLedger struct {
	client    DynamoDBAPI
	tableName string
	ttl       time.Duration
}

func NewDynamoDBLedger(client DynamoDBAPI, tableName string, ttl time.Duration) (*DynamoDBLedger, error) {
	if tableName == "" {
		return nil, errors.New("status ledger table name is required")
	}
	return &DynamoDBLedger{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
	}, nil
}

func (l *DynamoDBLedger) expiresAt(now time.Time) int64 {
	if l.ttl <= 0 {
		return 0
	}
	return now.Add(l.ttl).Unix()
}

func (l *DynamoDBLedger) PutPending(ctx context.Context, entry *domain.StatusLedgerEntry) error {
	item := *entry
	item.ExpiresAt = l.expiresAt(time.Now())

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal status ledger entry: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put status ledger entry %s/%s: %w", entry.BatchID, entry.ClassGroupID, err)
	}
	return nil
}

// UpdateOutcome upserts the terminal fields. UpdateItem creates the item
// when the PENDING write never landed.
func (l *DynamoDBLedger) UpdateOutcome(ctx context.Context, update *domain.StatusLedgerUpdate) error {
	expr, err := buildOutcomeExpression(update, l.expiresAt(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to build status ledger update: %w", err)
	}

	_, err = l.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]types.AttributeValue{
			"batchId":      &types.AttributeValueMemberS{Value: update.BatchID},
			"classGroupId": &types.AttributeValueMemberS{Value: domain.ClassGroupKey(update.ClassGroupID)},
		},
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to update status ledger entry %s/%d: %w", update.BatchID, update.ClassGroupID, err)
	}
	return nil
}

func buildOutcomeExpression(update *domain.StatusLedgerUpdate, expiresAt int64) (expression.Expression, error) {
	set := expression.Set(expression.Name("status"), expression.Value(update.Status)).
		Set(expression.Name("updatedAt"), expression.Value(domain.FormatLedgerTime(update.UpdatedAt)))

	if update.Action != "" {
		set = set.Set(expression.Name("action"), expression.Value(update.Action))
	}
	if update.StudentID != 0 {
		set = set.Set(expression.Name("studentId"), expression.Value(update.StudentID))
	}
	if update.RdbEnrollmentID != nil {
		set = set.Set(expression.Name("rdbEnrollmentId"), expression.Value(*update.RdbEnrollmentID))
	}
	if expiresAt > 0 {
		set = set.Set(expression.Name("expiresAt"), expression.Value(expiresAt))
	}
	if update.FailureReason != "" {
		set = set.Set(expression.Name("failureReason"), expression.Value(update.FailureReason))
	} else {
		set = set.Remove(expression.Name("failureReason"))
	}

	return expression.NewBuilder().WithUpdate(set).Build()
}

func (l *DynamoDBLedger) QueryByBatch(ctx context.Context, batchID string) ([]*domain.StatusLedgerEntry, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("batchId").Equal(expression.Value(batchID))).
		WithProjection(expression.NamesList(
			expression.Name("batchId"),
			expression.Name("classGroupId"),
			expression.Name("studentId"),
			expression.Name("semesterId"),
			expression.Name("status"),
			expression.Name("action"),
			expression.Name("updatedAt"),
			expression.Name("rdbEnrollmentId"),
			expression.Name("failureReason"),
		)).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build status ledger query: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(l.client, &dynamodb.QueryInput{
		TableName:                 aws.String(l.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var entries []*domain.StatusLedgerEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query status ledger for batch %s: %w", batchID, err)
		}
		var items []*domain.StatusLedgerEntry
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status ledger entries: %w", err)
		}
		entries = append(entries, items...)
	}

	sortEntries(entries)
	return entries, nil
}
