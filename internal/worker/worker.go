package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-formula/internal/batch"
	"github.com/aescanero/dago-node-formula/internal/config"
	"github.com/aescanero/dago-node-formula/internal/store"
)

// stopTimeout bounds how long Stop waits for the in-flight message.
const stopTimeout = 10 * time.Second

// Request is the payload of a work message's "data" field.
type Request struct {
	RequestID string       `json:"request_id"`
	Cases     []batch.Case `json:"cases"`
}

// Worker consumes formula batches from a Redis stream
type Worker struct {
	id            string
	config        *config.Config
	redisClient   redis.Cmdable
	service       *batch.Service
	results       *store.ResultStore
	logger        *zap.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	streamKey     string
	consumerGroup string
	resultStream  string
}

// NewWorker creates a new worker
func NewWorker(
	cfg *config.Config,
	redisClient redis.Cmdable,
	service *batch.Service,
	results *store.ResultStore,
	logger *zap.Logger,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		id:            cfg.WorkerID,
		config:        cfg,
		redisClient:   redisClient,
		service:       service,
		results:       results,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		streamKey:     cfg.StreamKey,
		consumerGroup: cfg.ConsumerGroup,
		resultStream:  cfg.ResultStream,
	}
}

// Start starts the worker
func (w *Worker) Start() error {
	w.logger.Info("starting formula worker",
		zap.String("worker_id", w.id),
		zap.String("stream_key", w.streamKey),
		zap.String("consumer_group", w.consumerGroup),
	)

	// Create consumer group if it doesn't exist
	if err := w.ensureConsumerGroup(); err != nil {
		return fmt.Errorf("failed to ensure consumer group: %w", err)
	}

	go w.processWork()

	w.logger.Info("formula worker started", zap.String("worker_id", w.id))
	return nil
}

// Stop stops the worker and waits for the message being handled
func (w *Worker) Stop() error {
	w.logger.Info("stopping formula worker", zap.String("worker_id", w.id))

	w.cancel()

	select {
	case <-w.done:
	case <-time.After(stopTimeout):
		return fmt.Errorf("worker %s did not stop within %s", w.id, stopTimeout)
	}

	w.logger.Info("formula worker stopped", zap.String("worker_id", w.id))
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist
func (w *Worker) ensureConsumerGroup() error {
	err := w.redisClient.XGroupCreateMkStream(w.ctx, w.streamKey, w.consumerGroup, "0").Err()
	if err != nil {
		// BUSYGROUP error means the group already exists, which is fine
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			w.logger.Debug("consumer group already exists",
				zap.String("group", w.consumerGroup),
			)
			return nil
		}
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	w.logger.Info("created consumer group",
		zap.String("group", w.consumerGroup),
		zap.String("stream", w.streamKey),
	)
	return nil
}

// processWork processes work from the Redis stream
func (w *Worker) processWork() {
	defer close(w.done)
	w.logger.Info("starting work processing loop")

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("work processing loop stopped")
			return
		default:
			streams, err := w.redisClient.XReadGroup(w.ctx, &redis.XReadGroupArgs{
				Group:    w.consumerGroup,
				Consumer: w.id,
				Streams:  []string{w.streamKey, ">"},
				Count:    1,
				Block:    w.config.BlockTime,
			}).Result()

			if err != nil {
				if errors.Is(err, redis.Nil) || w.ctx.Err() != nil {
					continue
				}
				w.logger.Error("failed to read from stream",
					zap.Error(err),
				)
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
				continue
			}

			for _, stream := range streams {
				for _, message := range stream.Messages {
					w.handleMessage(message)
				}
			}
		}
	}
}

// handleMessage evaluates one batch request. The message is always
// acknowledged; failures go to the errors stream. A message already read
// is finished even if Stop is called meanwhile.
func (w *Worker) handleMessage(message redis.XMessage) {
	ctx := context.WithoutCancel(w.ctx)
	messageID := message.ID
	w.logger.Info("processing formula request",
		zap.String("message_id", messageID),
	)
	defer w.acknowledgeMessage(ctx, messageID)

	request, err := w.parseRequest(message.Values)
	if err != nil {
		w.logger.Error("failed to parse formula request",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		w.publishError(ctx, messageID, "", err)
		return
	}

	if err := w.processRequest(ctx, request); err != nil {
		w.logger.Error("failed to process formula request",
			zap.String("message_id", messageID),
			zap.String("request_id", request.RequestID),
			zap.Error(err),
		)
		w.publishError(ctx, messageID, request.RequestID, err)
	}
}

// parseRequest parses a formula request from a Redis message
func (w *Worker) parseRequest(values map[string]interface{}) (*Request, error) {
	dataStr, ok := values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'data' field")
	}

	var request Request
	if err := json.Unmarshal([]byte(dataStr), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal formula request: %w", err)
	}

	if request.RequestID == "" {
		request.RequestID = uuid.NewString()
	}

	return &request, nil
}

// processRequest evaluates, stores and publishes a request
func (w *Worker) processRequest(ctx context.Context, request *Request) error {
	result := &store.Result{
		RequestID:   request.RequestID,
		Outcomes:    w.service.EvaluateAll(ctx, request.Cases),
		EvaluatedAt: time.Now().UTC(),
	}

	if w.results != nil {
		if err := w.results.Save(ctx, result); err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
	}

	if err := w.publishResult(ctx, result); err != nil {
		return fmt.Errorf("failed to publish result: %w", err)
	}

	return nil
}

// publishResult publishes the evaluated batch
func (w *Worker) publishResult(ctx context.Context, result *store.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	_, err = w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	w.logger.Info("published formula result",
		zap.String("request_id", result.RequestID),
		zap.Int("outcomes", len(result.Outcomes)),
	)

	return nil
}

// publishError publishes an error event
func (w *Worker) publishError(ctx context.Context, messageID, requestID string, err error) {
	errorEvent := map[string]interface{}{
		"message_id": messageID,
		"request_id": requestID,
		"error":      err.Error(),
		"timestamp":  time.Now().UTC(),
	}

	data, marshalErr := json.Marshal(errorEvent)
	if marshalErr != nil {
		w.logger.Error("failed to marshal error event", zap.Error(marshalErr))
		return
	}

	// Publish error to a separate stream
	_, publishErr := w.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: w.resultStream + ".errors",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if publishErr != nil {
		w.logger.Error("failed to publish error event", zap.Error(publishErr))
	}
}

// acknowledgeMessage acknowledges a message from the stream
func (w *Worker) acknowledgeMessage(ctx context.Context, messageID string) {
	err := w.redisClient.XAck(ctx, w.streamKey, w.consumerGroup, messageID).Err()
	if err != nil {
		w.logger.Error("failed to acknowledge message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}
