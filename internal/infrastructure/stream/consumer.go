package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/transfer-notifier/internal/config"
	"github.com/transfer-notifier/internal/domain"
	"github.com/transfer-notifier/internal/infrastructure/awsconf"
	"github.com/transfer-notifier/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stream record results reported to metrics.
const (
	resultHandled = "handled"
	resultFailed  = "failed"
	resultIgnored = "ignored"
	resultInvalid = "invalid"
)

// API is the subset of the DynamoDB Streams client the consumer needs.
type API interface {
	DescribeStream(ctx context.Context, in *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, in *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, in *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// Handler is invoked once per newly inserted notification record.
type Handler func(ctx context.Context, rec domain.NotificationRecord) error

type Options struct {
	StreamARN    string
	IteratorType string
	PollInterval time.Duration
	ShardRefresh time.Duration
	Attempts     int
	Logger       *zap.Logger
	Metrics      *observability.Metrics
}

// Consumer tails every shard of a table stream and feeds INSERT images to a Handler.
type Consumer struct {
	api     API
	handler Handler
	opts    Options
	logger  *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewClient(ctx context.Context, cfg *config.Config) (*dynamodbstreams.Client, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}
	return dynamodbstreams.NewFromConfig(awsCfg, func(o *dynamodbstreams.Options) {
		o.BaseEndpoint = awsconf.Endpoint(cfg)
	}), nil
}

func NewConsumer(api API, handler Handler, opts Options) *Consumer {
	if opts.IteratorType == "" {
		opts.IteratorType = string(types.ShardIteratorTypeLatest)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.ShardRefresh <= 0 {
		opts.ShardRefresh = time.Minute
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		api:     api,
		handler: handler,
		opts:    opts,
		logger:  logger.With(zap.String("component", "stream")),
		seen:    make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled. Shards present at startup begin at the
// configured iterator type; shards discovered later are read from their start.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := c.discover(gctx, g, types.ShardIteratorType(c.opts.IteratorType)); err != nil {
		return err
	}

	g.Go(func() error {
		ticker := time.NewTicker(c.opts.ShardRefresh)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := c.discover(gctx, g, types.ShardIteratorTypeTrimHorizon); err != nil && gctx.Err() == nil {
					c.logger.Warn("shard discovery failed", zap.Error(err))
				}
			}
		}
	})

	return g.Wait()
}

func (c *Consumer) discover(ctx context.Context, g *errgroup.Group, iteratorType types.ShardIteratorType) error {
	shards, err := c.listShards(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, shardID := range shards {
		if _, ok := c.seen[shardID]; ok {
			continue
		}
		c.seen[shardID] = struct{}{}
		c.logger.Info("consuming shard", zap.String("shardId", shardID), zap.String("iterator", string(iteratorType)))
		g.Go(func() error {
			return c.consumeShard(ctx, shardID, iteratorType)
		})
	}
	return nil
}

func (c *Consumer) listShards(ctx context.Context) ([]string, error) {
	var (
		ids   []string
		start *string
	)
	for {
		out, err := c.api.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(c.opts.StreamARN),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return nil, fmt.Errorf("describe stream: %w", err)
		}
		if out.StreamDescription == nil {
			return ids, nil
		}
		for _, shard := range out.StreamDescription.Shards {
			if shard.ShardId != nil {
				ids = append(ids, *shard.ShardId)
			}
		}
		start = out.StreamDescription.LastEvaluatedShardId
		if start == nil {
			return ids, nil
		}
	}
}

func (c *Consumer) consumeShard(ctx context.Context, shardID string, iteratorType types.ShardIteratorType) error {
	log := c.logger.With(zap.String("shardId", shardID))

	iterator, ok := c.openIterator(ctx, shardID, iteratorType, nil, log)
	if !ok {
		return nil
	}

	var lastSequence *string
	for iterator != nil {
		out, err := c.api.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: iterator})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var expired *types.ExpiredIteratorException
			if errors.As(err, &expired) {
				// Nothing read yet: the original position is gone, so start
				// from the oldest retained record instead of skipping ahead.
				if lastSequence == nil {
					iteratorType = types.ShardIteratorTypeTrimHorizon
				}
				if iterator, ok = c.openIterator(ctx, shardID, iteratorType, lastSequence, log); !ok {
					return nil
				}
				continue
			}
			log.Warn("get records failed", zap.Error(err))
			if !sleep(ctx, c.opts.PollInterval) {
				return nil
			}
			continue
		}

		for _, record := range out.Records {
			c.handleRecord(ctx, record, log)
			if record.Dynamodb != nil && record.Dynamodb.SequenceNumber != nil {
				lastSequence = record.Dynamodb.SequenceNumber
			}
		}
		iterator = out.NextShardIterator

		if len(out.Records) == 0 && !sleep(ctx, c.opts.PollInterval) {
			return nil
		}
	}

	log.Info("shard closed")
	return nil
}

// openIterator retries until an iterator is obtained. It gives up only when
// ctx ends or the shard no longer exists.
func (c *Consumer) openIterator(ctx context.Context, shardID string, iteratorType types.ShardIteratorType, after *string, log *zap.Logger) (*string, bool) {
	for {
		iterator, err := c.iterator(ctx, shardID, iteratorType, after)
		if err == nil {
			return iterator, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
		var gone *types.ResourceNotFoundException
		if errors.As(err, &gone) {
			log.Error("shard no longer exists", zap.Error(err))
			return nil, false
		}
		log.Warn("get shard iterator failed", zap.Error(err))
		if !sleep(ctx, c.opts.PollInterval) {
			return nil, false
		}
	}
}

func (c *Consumer) iterator(ctx context.Context, shardID string, iteratorType types.ShardIteratorType, after *string) (*string, error) {
	in := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(c.opts.StreamARN),
		ShardId:           aws.String(shardID),
		ShardIteratorType: iteratorType,
	}
	if after != nil {
		in.ShardIteratorType = types.ShardIteratorTypeAfterSequenceNumber
		in.SequenceNumber = after
	}
	out, err := c.api.GetShardIterator(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("get shard iterator: %w", err)
	}
	return out.ShardIterator, nil
}

func (c *Consumer) handleRecord(ctx context.Context, record types.Record, log *zap.Logger) {
	event := string(record.EventName)
	if record.EventName != types.OperationTypeInsert {
		c.opts.Metrics.IncStreamRecord(event, resultIgnored)
		return
	}
	if record.Dynamodb == nil || len(record.Dynamodb.NewImage) == 0 {
		c.opts.Metrics.IncStreamRecord(event, resultInvalid)
		log.Warn("insert record without new image")
		return
	}

	rec, err := decodeImage(record.Dynamodb.NewImage)
	if err != nil {
		c.opts.Metrics.IncStreamRecord(event, resultInvalid)
		log.Warn("decode stream image failed", zap.Error(err))
		return
	}

	if record.EventID != nil {
		ctx = observability.WithCorrelationID(ctx, *record.EventID)
	}

	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		if err = c.handler(ctx, rec); err == nil {
			c.opts.Metrics.IncStreamRecord(event, resultHandled)
			return
		}
		if ctx.Err() != nil {
			break
		}
		log.Warn("stream handler failed",
			zap.String("notificationId", rec.NotificationID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	c.opts.Metrics.IncStreamRecord(event, resultFailed)
}

func decodeImage(image map[string]types.AttributeValue) (domain.NotificationRecord, error) {
	var rec domain.NotificationRecord
	item, err := attributevalue.FromDynamoDBStreamsMap(image)
	if err != nil {
		return rec, err
	}
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
