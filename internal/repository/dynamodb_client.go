package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"asha-agent/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	skProfile    = "PROFILE#"

	// turnSKLayout is fixed-width so lexicographic sort key order matches
	// chronological order (RFC3339Nano drops trailing zeros and breaks it).
	turnSKLayout = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding session turn logs, rolling summaries
// and user profiles.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// sessionPK returns the partition key for a session's turn log and summary.
func sessionPK(sessionKey string) string {
	return "SESSION#" + sessionKey
}

// userPK returns the partition key for a user profile.
func userPK(email string) string {
	return "USER#" + email
}

// turnSK returns the sort key for the i-th turn written at ts. The index
// suffix keeps the two halves of a pair ordered within one timestamp.
func turnSK(ts time.Time, i int) string {
	return fmt.Sprintf("%s%s#%02d", skPrefixTurn, ts.UTC().Format(turnSKLayout), i)
}

// GetTurns returns every turn for a session in chronological order. An
// unknown session yields an empty slice, never an error.
func (c *Client) GetTurns(ctx context.Context, sessionKey string) ([]domain.Turn, error) {
	pk := sessionPK(sessionKey)

	var turns []domain.Turn
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pk},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: GetTurns query: %w", err)
		}
		for _, item := range out.Items {
			turn, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: GetTurns unmarshal: %w", err)
			}
			turns = append(turns, turn)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return turns, nil
}

// GetSummary returns the rolling summary for a session, or "" when no
// summary has been recorded yet.
func (c *Client) GetSummary(ctx context.Context, sessionKey string) (string, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionKey)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("repository: GetSummary get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return "", nil
	}
	summary, err := strAttr(out.Item, "summary")
	if err != nil {
		return "", fmt.Errorf("repository: GetSummary decode: %w", err)
	}
	return summary, nil
}

// ReplaceSummary overwrites the session's rolling summary wholesale. The
// session record is created if absent. A concurrent turn append may race
// with this write; last writer wins on the summary field only.
func (c *Client) ReplaceSummary(ctx context.Context, sessionKey, summary string) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: sessionPK(sessionKey)},
			"SK":        &types.AttributeValueMemberS{Value: skMeta},
			"summary":   &types.AttributeValueMemberS{Value: summary},
			"updatedAt": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: ReplaceSummary: %w", err)
	}
	return nil
}

// AppendTurnPair writes the user turn and its paired assistant turn in one
// transaction so no reader ever observes a half-written pair. The session is
// created implicitly on first append.
func (c *Client) AppendTurnPair(ctx context.Context, sessionKey, userContent, assistantContent string) error {
	if strings.TrimSpace(sessionKey) == "" {
		return errors.New("repository: AppendTurnPair: session key is required")
	}

	now := time.Now()
	pk := sessionPK(sessionKey)
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(pk, turnSK(now, 0), domain.RoleUser, userContent),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(pk, turnSK(now, 1), domain.RoleAssistant, assistantContent),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: AppendTurnPair: %w", err)
	}
	return nil
}

// GetProfile returns the user profile for an email, or nil when unknown.
func (c *Client) GetProfile(ctx context.Context, email string) (*domain.UserProfile, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(email)},
			"SK": &types.AttributeValueMemberS{Value: skProfile},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetProfile get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	profile := &domain.UserProfile{Email: email}
	profile.Name, _ = strAttr(out.Item, "name")     // allow empty
	profile.Domain, _ = strAttr(out.Item, "domain") // allow empty
	profile.Age, _ = strAttr(out.Item, "age")       // allow empty
	return profile, nil
}

// UpsertProfile writes or replaces a user profile record.
func (c *Client) UpsertProfile(ctx context.Context, profile domain.UserProfile) error {
	if strings.TrimSpace(profile.Email) == "" {
		return errors.New("repository: UpsertProfile: email is required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":     &types.AttributeValueMemberS{Value: userPK(profile.Email)},
			"SK":     &types.AttributeValueMemberS{Value: skProfile},
			"name":   &types.AttributeValueMemberS{Value: profile.Name},
			"domain": &types.AttributeValueMemberS{Value: profile.Domain},
			"age":    &types.AttributeValueMemberS{Value: profile.Age},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: UpsertProfile: %w", err)
	}
	return nil
}

func turnItem(pk, sk, role, content string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: pk},
		"SK":      &types.AttributeValueMemberS{Value: sk},
		"role":    &types.AttributeValueMemberS{Value: role},
		"content": &types.AttributeValueMemberS{Value: content},
	}
}

// itemToTurn converts a DynamoDB attribute map to a Turn. Historical items
// with unexpected roles are returned as-is; the prompt assembler tolerates
// them.
func itemToTurn(item map[string]types.AttributeValue) (domain.Turn, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Turn{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.Turn{}, err
	}
	return domain.Turn{Role: role, Content: content}, nil
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
