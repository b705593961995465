package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-formula/internal/batch"
)

// keyPrefix namespaces stored results.
const keyPrefix = "formula:result:"

// ErrNotFound is returned by Load when no result is stored for an id.
var ErrNotFound = errors.New("result not found")

// Result is the evaluated form of one stream request.
type Result struct {
	RequestID   string          `json:"request_id"`
	Outcomes    []batch.Outcome `json:"outcomes"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// ResultStore keeps results in Redis as JSON strings.
type ResultStore struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultStore creates a result store. A zero ttl keeps results forever.
func NewResultStore(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *ResultStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func key(requestID string) string {
	return keyPrefix + requestID
}

// Save stores result under its request id with the store's TTL
func (s *ResultStore) Save(ctx context.Context, result *Result) error {
	if result.RequestID == "" {
		return fmt.Errorf("result has no request id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := s.client.Set(ctx, key(result.RequestID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	s.logger.Debug("saved result",
		zap.String("request_id", result.RequestID),
		zap.Int("outcomes", len(result.Outcomes)),
	)
	return nil
}

// Load loads a stored result
func (s *ResultStore) Load(ctx context.Context, requestID string) (*Result, error) {
	data, err := s.client.Get(ctx, key(requestID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &result, nil
}

// Delete deletes a stored result
func (s *ResultStore) Delete(ctx context.Context, requestID string) error {
	if err := s.client.Del(ctx, key(requestID)).Err(); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	return nil
}

// Exists checks if a result is stored for a request
func (s *ResultStore) Exists(ctx context.Context, requestID string) (bool, error) {
	n, err := s.client.Exists(ctx, key(requestID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}
	return n > 0, nil
}
