package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/go-classroom-api/internal/domain"
)

// GroupRepo provides typed DynamoDB operations for the groups table.
type GroupRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewGroupRepo(client *dynamodb.Client, tableName string) *GroupRepo {
	return &GroupRepo{client: client, tableName: tableName}
}

func (r *GroupRepo) Put(ctx context.Context, g *domain.Group) error {
	item, err := attributevalue.MarshalMap(g)
	if err != nil {
		return fmt.Errorf("marshal group: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *GroupRepo) Get(ctx context.Context, groupID string) (*domain.Group, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("group_id", groupID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("group %s: %w", groupID, domain.ErrNotFound)
	}
	var g domain.Group
	if err := attributevalue.UnmarshalMap(out.Item, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepo) GetByName(ctx context.Context, name string) (*domain.Group, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("name-index"),
		KeyConditionExpression: aws.String("#n = :n"),
		ExpressionAttributeNames: map[string]string{
			"#n": "name",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":n": &types.AttributeValueMemberS{Value: name},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("group %s: %w", name, domain.ErrNotFound)
	}
	var g domain.Group
	if err := attributevalue.UnmarshalMap(out.Items[0], &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepo) List(ctx context.Context) ([]domain.Group, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, err
	}
	var groups []domain.Group
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// AppendMessageID appends a message id to the group's ordered message list.
// list_append + if_not_exists makes concurrent appends commute.
func (r *GroupRepo) AppendMessageID(ctx context.Context, groupID, messageID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("group_id", groupID),
		UpdateExpression: aws.String(
			"SET #m = list_append(if_not_exists(#m, :empty), :mid), #u = :now"),
		ExpressionAttributeNames: map[string]string{
			"#m": fieldMessageIDs,
			"#u": fieldUpdatedAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":mid": &types.AttributeValueMemberL{
				Value: []types.AttributeValue{&types.AttributeValueMemberS{Value: messageID}},
			},
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ConditionExpression: aws.String("attribute_exists(group_id)"),
	})
	if err != nil {
		return fmt.Errorf("append message to group %s: %w", groupID, err)
	}
	return nil
}

func (r *GroupRepo) Update(ctx context.Context, groupID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("group_id", groupID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
