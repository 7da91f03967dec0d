package dynamo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/undeadops/snip/internal/store"
)

var _ store.Store = (*Client)(nil)

// fakeAPI answers each call with the matching function, if set.
type fakeAPI struct {
	getItem       func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem       func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem    func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem    func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query         func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	scan          func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	describeTable func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(in)
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return f.deleteItem(in)
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}

func (f *fakeAPI) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	return f.scan(in)
}

func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return f.describeTable(in)
}

func (f *fakeAPI) CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return nil, errors.New("not implemented")
}

func testClient(api API) *Client {
	c := newClient(api, "snip-test", zerolog.Nop())
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	return c
}

func marshalItem(t *testing.T, item URLItem) map[string]types.AttributeValue {
	t.Helper()
	av, err := attributevalue.MarshalMap(item)
	require.NoError(t, err)
	return av
}

func TestCreate_WritesConditionalItem(t *testing.T) {
	var got *dynamodb.PutItemInput
	c := testClient(&fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			got = in
			return &dynamodb.PutItemOutput{}, nil
		},
	})

	rec, err := c.Create(context.Background(), "https://example.com", "abc1234567")
	require.NoError(t, err)

	assert.Equal(t, "abc1234567", rec.Short)
	assert.Equal(t, "https://example.com", rec.Full)
	assert.Equal(t, int64(0), rec.Clicks)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC), rec.CreatedAt)

	require.NotNil(t, got)
	assert.Equal(t, "snip-test", aws.ToString(got.TableName))
	assert.Contains(t, aws.ToString(got.ConditionExpression), "attribute_not_exists")

	var item URLItem
	require.NoError(t, attributevalue.UnmarshalMap(got.Item, &item))
	assert.Equal(t, itemKind, item.Kind)
	assert.Equal(t, rec.ID, item.ID)
	assert.Equal(t, hashFull("https://example.com"), item.FullHash)
}

func TestCreate_CollisionReturnsErrShortExists(t *testing.T) {
	c := testClient(&fakeAPI{
		putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		},
	})

	_, err := c.Create(context.Background(), "https://example.com", "abc1234567")
	assert.ErrorIs(t, err, store.ErrShortExists)
}

func TestFindByShort(t *testing.T) {
	stored := URLItem{
		Short:     "abc1234567",
		ID:        "id-1",
		Full:      "https://example.com",
		Clicks:    7,
		Kind:      itemKind,
		CreatedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC).UnixNano(),
		UpdatedAt: time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC).UnixNano(),
	}
	c := testClient(&fakeAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			short := in.Key["short"].(*types.AttributeValueMemberS).Value
			if short != stored.Short {
				return &dynamodb.GetItemOutput{}, nil
			}
			return &dynamodb.GetItemOutput{Item: marshalItem(t, stored)}, nil
		},
	})

	rec, err := c.FindByShort(context.Background(), "abc1234567")
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Clicks)
	assert.Equal(t, "https://example.com", rec.Full)
	assert.Equal(t, time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), rec.UpdatedAt)

	_, err = c.FindByShort(context.Background(), "missing000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFindByFull_QueriesHashIndex(t *testing.T) {
	full := "https://example.com/" + strings.Repeat("é", 2000)
	require.Greater(t, len(full), 2048)

	var got *dynamodb.QueryInput
	c := testClient(&fakeAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			got = in
			return &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{
				marshalItem(t, URLItem{Short: "other00000", Full: "https://other.example.com", FullHash: hashFull(full)}),
				marshalItem(t, URLItem{Short: "abc1234567", Full: full, FullHash: hashFull(full)}),
			}}, nil
		},
	})

	rec, err := c.FindByFull(context.Background(), full)
	require.NoError(t, err)
	assert.Equal(t, "abc1234567", rec.Short)

	require.NotNil(t, got)
	assert.Equal(t, fullIndex, aws.ToString(got.IndexName))
	for _, v := range got.ExpressionAttributeValues {
		s, ok := v.(*types.AttributeValueMemberS)
		require.True(t, ok)
		assert.Len(t, s.Value, 64)
	}
}

func TestFindByFull_NotFound(t *testing.T) {
	c := testClient(&fakeAPI{
		query: func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			return &dynamodb.QueryOutput{}, nil
		},
	})

	_, err := c.FindByFull(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestIncrementClicks(t *testing.T) {
	c := testClient(&fakeAPI{
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			assert.Contains(t, aws.ToString(in.UpdateExpression), "ADD")
			assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
			return &dynamodb.UpdateItemOutput{Attributes: marshalItem(t, URLItem{
				Short:  "abc1234567",
				Full:   "https://example.com",
				Clicks: 3,
			})}, nil
		},
	})

	rec, err := c.IncrementClicks(context.Background(), "abc1234567")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Clicks)
}

func TestIncrementClicks_Missing(t *testing.T) {
	c := testClient(&fakeAPI{
		updateItem: func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
		},
	})

	_, err := c.IncrementClicks(context.Background(), "missing000")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteByShort(t *testing.T) {
	c := testClient(&fakeAPI{
		deleteItem: func(in *dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error) {
			short := in.Key["short"].(*types.AttributeValueMemberS).Value
			if short == "abc1234567" {
				return &dynamodb.DeleteItemOutput{Attributes: marshalItem(t, URLItem{Short: short})}, nil
			}
			return &dynamodb.DeleteItemOutput{}, nil
		},
	})

	deleted, err := c.DeleteByShort(context.Background(), "abc1234567")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.DeleteByShort(context.Background(), "missing000")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListRecent_SkipsAndLimits(t *testing.T) {
	items := make([]map[string]types.AttributeValue, 0, 6)
	for i := 5; i >= 0; i-- {
		items = append(items, marshalItem(t, URLItem{
			Short:     string(rune('a'+i)) + "000000000",
			Kind:      itemKind,
			CreatedAt: int64(i),
		}))
	}

	var got *dynamodb.QueryInput
	c := testClient(&fakeAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			got = in
			return &dynamodb.QueryOutput{Items: items}, nil
		},
	})

	recs, err := c.ListRecent(context.Background(), 2, 3)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c000000000", recs[0].Short)
	assert.Equal(t, "b000000000", recs[1].Short)

	assert.Equal(t, createdIndex, aws.ToString(got.IndexName))
	assert.False(t, aws.ToBool(got.ScanIndexForward))
}

func TestCount_SumsPages(t *testing.T) {
	calls := 0
	c := testClient(&fakeAPI{
		scan: func(in *dynamodb.ScanInput) (*dynamodb.ScanOutput, error) {
			calls++
			assert.Equal(t, types.SelectCount, in.Select)
			if calls == 1 {
				return &dynamodb.ScanOutput{
					Count:            10,
					LastEvaluatedKey: key("abc1234567"),
				}, nil
			}
			return &dynamodb.ScanOutput{Count: 2}, nil
		},
	})

	total, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Equal(t, 2, calls)
}

func TestPing_PropagatesError(t *testing.T) {
	c := testClient(&fakeAPI{
		describeTable: func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
			return nil, errors.New("connection refused")
		},
	})

	assert.Error(t, c.Ping(context.Background()))
}
