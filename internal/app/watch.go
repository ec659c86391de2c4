package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
	"github.com/yungbote/vocabdrill-backend/internal/platform/redisx"
	"github.com/yungbote/vocabdrill-backend/internal/realtime/bus"
)

// Watch writes the newest history events (oldest first) and then every
// live drill event to out as JSON lines until ctx ends.
func Watch(ctx context.Context, log *logger.Logger, history int, out io.Writer) error {
	rdb, err := redisx.NewClient(log, redisx.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	defer rdb.Close()

	b, err := bus.NewRedisBus(log, rdb, bus.RedisConfigFromEnv())
	if err != nil {
		return err
	}
	return watchBus(ctx, b, history, out)
}

func watchBus(ctx context.Context, b bus.Bus, history int, out io.Writer) error {
	var mu sync.Mutex
	enc := json.NewEncoder(out)
	write := func(ev bus.Event) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(ev)
	}

	if history > 0 {
		events, err := b.History(ctx, history)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		for i := len(events) - 1; i >= 0; i-- {
			write(events[i])
		}
	}

	if err := b.StartForwarder(ctx, write); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}
