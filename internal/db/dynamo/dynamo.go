// Package dynamo implements store.Store on a DynamoDB table.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

const (
	fullIndex    = "full-hash-index"
	createdIndex = "created-index"

	// itemKind is the constant partition of createdIndex, giving a single
	// sorted view over every record.
	itemKind = "url"

	tableWaitTimeout = 2 * time.Minute
)

// API is the subset of the DynamoDB client used by the store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// Config selects the table and how to reach it.
type Config struct {
	Region    string
	Table     string
	Endpoint  string
	DebugMode bool
}

type Client struct {
	DDB    API
	Table  string
	Logger zerolog.Logger
	debug  bool
	now    func() time.Time
}

// URLItem represents a shortened URL entry in DynamoDB
type URLItem struct {
	Short     string `dynamodbav:"short"`      // short token (partition key)
	ID        string `dynamodbav:"id"`         // record id
	Full      string `dynamodbav:"full"`       // target URL
	FullHash  string `dynamodbav:"full_hash"`  // hex sha256 of Full, hash key of full-hash-index
	Clicks    int64  `dynamodbav:"clicks"`     // redirect counter
	Kind      string `dynamodbav:"kind"`       // constant, hash key of created-index
	CreatedAt int64  `dynamodbav:"created_at"` // unix nanoseconds, range key of created-index
	UpdatedAt int64  `dynamodbav:"updated_at"` // unix nanoseconds
}

// New connects to DynamoDB and makes sure the table and its indexes exist.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		// local DynamoDB accepts any credentials
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("dummy1", "dummy2", "dummy3"),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var ddb *dynamodb.Client
	if cfg.Endpoint != "" {
		ddb = dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
		logger.Info().Str("endpoint", cfg.Endpoint).Msg("Using custom DynamoDB endpoint")
	} else {
		ddb = dynamodb.NewFromConfig(awsCfg)
	}

	c := newClient(ddb, cfg.Table, logger)
	c.debug = cfg.DebugMode

	if err := c.setupTable(ctx, ddb); err != nil {
		return nil, err
	}

	return c, nil
}

func newClient(api API, table string, logger zerolog.Logger) *Client {
	return &Client{
		DDB:    api,
		Table:  table,
		Logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (c *Client) setupTable(ctx context.Context, waiterClient dynamodb.DescribeTableAPIClient) error {
	_, err := c.DDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.Table),
	})
	if err == nil {
		c.Logger.Info().Str("table", c.Table).Msg("Connected to DynamoDB table")
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table: %w", err)
	}

	if c.debug {
		c.Logger.Debug().Str("table", c.Table).Msg("Table doesn't exist, creating")
	}

	// Key attributes only:
	// - short (S): partition key
	// - full_hash (S): full-hash-index hash key. Index keys are capped at
	//   2048 bytes, which a 2048 character URL can exceed.
	// - kind (S) + created_at (N): created-index, newest first listing
	_, err = c.DDB.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(c.Table),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("short"), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("short"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("full"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("kind"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("created_at"), AttributeType: types.ScalarAttributeTypeN},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String(fullIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("full"), KeyType: types.KeyTypeHash},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
			{
				IndexName: aws.String(createdIndex),
				KeySchema: []types.KeySchemaElement{
					{AttributeName: aws.String("kind"), KeyType: types.KeyTypeHash},
					{AttributeName: aws.String("created_at"), KeyType: types.KeyTypeRange},
				},
				Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	waiter := dynamodb.NewTableExistsWaiter(waiterClient)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(c.Table)}, tableWaitTimeout); err != nil {
		return fmt.Errorf("failed waiting for table: %w", err)
	}

	c.Logger.Info().Str("table", c.Table).Msg("Table created successfully")
	return nil
}

// Ping checks the table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.DDB.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(c.Table),
	})
	if err != nil {
		return fmt.Errorf("failed to describe table: %w", err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no connections that need releasing.
func (c *Client) Close() error {
	return nil
}
