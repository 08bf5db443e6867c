package projector

import (
	"context"
	"hash/fnv"
	"strings"

	"golang.org/x/sync/errgroup"

	"pairScope/internal/model"
)

const defaultShardQueue = 256

// ShardedApplier fans decoded events across worker shards keyed by pool
// address. Events for the same pool always land on the same shard, so the
// per-pool order of the input stream is preserved while unrelated pools apply
// in parallel.
type ShardedApplier struct {
	dispatcher *Dispatcher
	shards     int
}

func NewShardedApplier(dispatcher *Dispatcher, shards int) *ShardedApplier {
	if shards < 1 {
		shards = 1
	}
	return &ShardedApplier{dispatcher: dispatcher, shards: shards}
}

// Run consumes events until the channel closes or an apply fails. The first
// fatal error cancels every shard and is returned.
func (s *ShardedApplier) Run(ctx context.Context, events <-chan *model.TypedEvent) error {
	group, ctx := errgroup.WithContext(ctx)

	queues := make([]chan *model.TypedEvent, s.shards)
	for i := range queues {
		queues[i] = make(chan *model.TypedEvent, defaultShardQueue)
		queue := queues[i]
		group.Go(func() error {
			for event := range queue {
				if err := s.dispatcher.Apply(ctx, event); err != nil {
					return err
				}
			}
			return nil
		})
	}

	group.Go(func() error {
		defer func() {
			for _, queue := range queues {
				close(queue)
			}
		}()
		for event := range events {
			select {
			case queues[s.shardFor(event.PoolAddress)] <- event:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	return group.Wait()
}

func (s *ShardedApplier) shardFor(pool string) int {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(pool)))
	return int(h.Sum32() % uint32(s.shards))
}
