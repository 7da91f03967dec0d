package dynamo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/undeadops/snip/internal/store"
)

// Implements the store.Store interface

func (c *Client) FindByFull(ctx context.Context, full string) (store.ShortURL, error) {
	keyCond := expression.Key("full_hash").Equal(expression.Value(hashFull(full)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to build key condition: %w", err)
	}

	result, err := c.DDB.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(c.Table),
		IndexName:                 aws.String(fullIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to query by full url: %w", err)
	}

	for _, item := range result.Items {
		rec, err := unmarshalRecord(item)
		if err != nil {
			return store.ShortURL{}, err
		}
		if rec.Full == full {
			return rec, nil
		}
	}

	return store.ShortURL{}, store.ErrNotFound
}

func (c *Client) FindByShort(ctx context.Context, short string) (store.ShortURL, error) {
	result, err := c.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.Table),
		Key:            key(short),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return store.ShortURL{}, store.ErrNotFound
	}

	return unmarshalRecord(result.Item)
}

func (c *Client) Create(ctx context.Context, full, short string) (store.ShortURL, error) {
	now := c.now()
	item := URLItem{
		Short:     short,
		ID:        uuid.NewString(),
		Full:      full,
		FullHash:  hashFull(full),
		Clicks:    0,
		Kind:      itemKind,
		CreatedAt: now.UnixNano(),
		UpdatedAt: now.UnixNano(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to marshal item: %w", err)
	}

	// never overwrite an existing token
	cond := expression.AttributeNotExists(expression.Name("short"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = c.DDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.Table),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return store.ShortURL{}, store.ErrShortExists
		}
		return store.ShortURL{}, fmt.Errorf("failed to put item: %w", err)
	}

	return item.record(), nil
}

func (c *Client) IncrementClicks(ctx context.Context, short string) (store.ShortURL, error) {
	update := expression.Add(expression.Name("clicks"), expression.Value(1)).
		Set(expression.Name("updated_at"), expression.Value(c.now().UnixNano()))
	cond := expression.AttributeExists(expression.Name("short"))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to build update expression: %w", err)
	}

	result, err := c.DDB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(c.Table),
		Key:                       key(short),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return store.ShortURL{}, store.ErrNotFound
		}
		return store.ShortURL{}, fmt.Errorf("failed to increment clicks: %w", err)
	}

	return unmarshalRecord(result.Attributes)
}

func (c *Client) DeleteByShort(ctx context.Context, short string) (bool, error) {
	result, err := c.DDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(c.Table),
		Key:          key(short),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}

	return len(result.Attributes) > 0, nil
}

func (c *Client) ListRecent(ctx context.Context, limit, skip int) ([]store.ShortURL, error) {
	if limit <= 0 {
		return []store.ShortURL{}, nil
	}

	keyCond := expression.Key("kind").Equal(expression.Value(itemKind))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(c.DDB, &dynamodb.QueryInput{
		TableName:                 aws.String(c.Table),
		IndexName:                 aws.String(createdIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(skip + limit)),
	})

	records := make([]store.ShortURL, 0, limit)
	seen := 0
	for paginator.HasMorePages() && len(records) < limit {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query recent items: %w", err)
		}

		for _, item := range page.Items {
			seen++
			if seen <= skip {
				continue
			}

			rec, err := unmarshalRecord(item)
			if err != nil {
				// Skip items that can't be unmarshaled
				c.Logger.Warn().Err(err).Msg("failed to unmarshal item")
				continue
			}

			records = append(records, rec)
			if len(records) == limit {
				break
			}
		}
	}

	return records, nil
}

func (c *Client) Count(ctx context.Context) (int64, error) {
	paginator := dynamodb.NewScanPaginator(c.DDB, &dynamodb.ScanInput{
		TableName: aws.String(c.Table),
		Select:    types.SelectCount,
	})

	var total int64
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to scan table: %w", err)
		}
		total += int64(page.Count)
	}

	return total, nil
}

func hashFull(full string) string {
	sum := sha256.Sum256([]byte(full))
	return hex.EncodeToString(sum[:])
}

func key(short string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"short": &types.AttributeValueMemberS{Value: short},
	}
}

func unmarshalRecord(av map[string]types.AttributeValue) (store.ShortURL, error) {
	var item URLItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return store.ShortURL{}, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return item.record(), nil
}

func (i URLItem) record() store.ShortURL {
	return store.ShortURL{
		ID:        i.ID,
		Full:      i.Full,
		Short:     i.Short,
		Clicks:    i.Clicks,
		CreatedAt: time.Unix(0, i.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, i.UpdatedAt).UTC(),
	}
}
