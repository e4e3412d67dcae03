package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// DefaultHistory is the number of runs kept when the caller does not say
const DefaultHistory = 50

// Run is one recorded start-all invocation.
type Run struct {
	ID         string                  `json:"id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Outcome    domain.ReadinessOutcome `json:"outcome"`
	Error      string                  `json:"error,omitempty"`
}

// NewRun builds a run record with a fresh id.
func NewRun(started, finished time.Time, outcome domain.ReadinessOutcome, err error) Run {
	run := Run{
		ID:         uuid.NewString(),
		StartedAt:  started.UTC(),
		FinishedAt: finished.UTC(),
		Outcome:    outcome,
	}
	if err != nil {
		run.Error = err.Error()
	}
	return run
}

// RunStore keeps a bounded history of start-all runs in a redis list.
type RunStore struct {
	client redis.Cmdable
	max    int64
}

// NewRunStore creates a run store keeping at most max runs
func NewRunStore(client redis.Cmdable, max int) *RunStore {
	if max <= 0 {
		max = DefaultHistory
	}
	return &RunStore{client: client, max: int64(max)}
}

// Record prepends run to the history and trims the tail
func (s *RunStore) Record(ctx context.Context, run Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, RunsKey(), data)
		pipe.LTrim(ctx, RunsKey(), 0, s.max-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns up to n runs, newest first. Entries that fail to decode are skipped.
func (s *RunStore) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 || int64(n) > s.max {
		n = int(s.max)
	}

	raw, err := s.client.LRange(ctx, RunsKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}

	runs := make([]Run, 0, len(raw))
	for _, item := range raw {
		var run Run
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Ping checks that redis answers
func (s *RunStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
