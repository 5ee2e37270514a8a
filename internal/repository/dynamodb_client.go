package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"careai-backend/internal/domain"
	"careai-backend/internal/triage"
)

const (
	pkPrefixUser  = "USER#"
	skPrefixHist  = "HIST#"
	ttlDuration   = 90 * 24 * time.Hour // 90-day TTL
	maxQueryLimit = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client wraps a DynamoDB table holding per-user triage history.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// userPK returns the DynamoDB partition key for a user's history.
func userPK(userID string) string {
	return pkPrefixUser + userID
}

// histSK returns the sort key for a record. Record ids are time-ordered, so
// sorting by SK sorts by creation time.
func histSK(id string) string {
	return skPrefixHist + id
}

// ttlValue returns a Unix timestamp 90 days after t.
func ttlValue(t time.Time) int64 {
	return t.Add(ttlDuration).Unix()
}

// SaveRecord persists a history record. It never overwrites an existing item.
func (c *Client) SaveRecord(ctx context.Context, rec domain.HistoryRecord) error {
	if rec.UserID == "" || rec.ID == "" {
		return errors.New("repository: SaveRecord: user id and id are required")
	}
	rec.PK = userPK(rec.UserID)
	rec.SK = histSK(rec.ID)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now().UTC()
	}
	if rec.TTL == 0 {
		rec.TTL = ttlValue(rec.CreatedAt)
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                historyItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveRecord: %w", err)
	}
	return nil
}

// ListHistory returns up to limit records for userID, newest first.
func (c *Client) ListHistory(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixHist},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListHistory query: %w", err)
	}

	recs := make([]domain.HistoryRecord, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := itemToRecord(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListHistory unmarshal: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// DeleteHistory removes one record. A missing record yields an error wrapping
// domain.ErrNotFound.
func (c *Client) DeleteHistory(ctx context.Context, userID, id string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: histSK(id)},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("repository: DeleteHistory %q: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("repository: DeleteHistory: %w", err)
	}
	return nil
}

// itemToRecord converts a DynamoDB attribute map to a HistoryRecord. Level
// values written by older clients are mapped through the synonym table.
func itemToRecord(item map[string]types.AttributeValue) (domain.HistoryRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	createdRaw, err := strAttr(item, "createdAt")
	if err != nil {
		return domain.HistoryRecord{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("repository: parse attribute %q: %w", "createdAt", err)
	}
	userID, _ := strAttr(item, "userId") // allow empty
	prompt, _ := strAttr(item, "prompt") // allow empty
	condition, _ := strAttr(item, "condition")
	level, _ := strAttr(item, "level")
	ttl, _ := intAttr(item, "ttl")

	return domain.HistoryRecord{
		PK:     pk,
		SK:     sk,
		ID:     id,
		UserID: userID,
		Prompt: prompt,
		Verdict: domain.Verdict{
			Condition: condition,
			Level:     triage.ResolveLevel(level),
			Dangerous: boolAttr(item, "dangerous"),
			Advice:    listAttr(item, "advice"),
		},
		CreatedAt: createdAt,
		TTL:       int64(ttl),
	}, nil
}

func historyItem(rec domain.HistoryRecord) map[string]types.AttributeValue {
	advice := make([]types.AttributeValue, 0, len(rec.Verdict.Advice))
	for _, a := range rec.Verdict.Advice {
		advice = append(advice, &types.AttributeValueMemberS{Value: a})
	}
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: rec.PK},
		"SK":        &types.AttributeValueMemberS{Value: rec.SK},
		"id":        &types.AttributeValueMemberS{Value: rec.ID},
		"userId":    &types.AttributeValueMemberS{Value: rec.UserID},
		"prompt":    &types.AttributeValueMemberS{Value: rec.Prompt},
		"condition": &types.AttributeValueMemberS{Value: rec.Verdict.Condition},
		"level":     &types.AttributeValueMemberS{Value: string(rec.Verdict.Level)},
		"dangerous": &types.AttributeValueMemberBOOL{Value: rec.Verdict.Dangerous},
		"advice":    &types.AttributeValueMemberL{Value: advice},
		"createdAt": &types.AttributeValueMemberS{Value: rec.CreatedAt.UTC().Format(time.RFC3339Nano)},
		"ttl":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", rec.TTL)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) bool {
	b, ok := item[key].(*types.AttributeValueMemberBOOL)
	return ok && b.Value
}

// listAttr reads a list of strings, skipping non-string members.
func listAttr(item map[string]types.AttributeValue, key string) []string {
	l, ok := item[key].(*types.AttributeValueMemberL)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l.Value))
	for _, v := range l.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}
