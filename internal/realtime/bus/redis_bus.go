package bus

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

const (
	DefaultChannel    = "drills:live"
	DefaultHistoryKey = "drills:history"
	DefaultHistoryCap = 100
)

type RedisConfig struct {
	Channel    string
	HistoryKey string
	HistoryCap int
}

func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Channel:    envutil.String("DRILL_STREAM_CHANNEL", DefaultChannel),
		HistoryKey: envutil.String("DRILL_STREAM_HISTORY_KEY", DefaultHistoryKey),
		HistoryCap: envutil.Int("DRILL_STREAM_HISTORY_CAP", DefaultHistoryCap),
	}
}

type redisBus struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	cfg RedisConfig
}

func NewRedisBus(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.HistoryKey == "" {
		cfg.HistoryKey = DefaultHistoryKey
	}
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = DefaultHistoryCap
	}
	return &redisBus{
		log: log.With("service", "RedisDrillBus"),
		rdb: rdb,
		cfg: cfg,
	}, nil
}

// Publish fans the event out live and appends it to the capped history list.
func (b *redisBus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis drill bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pipe := b.rdb.TxPipeline()
	pipe.Publish(ctx, b.cfg.Channel, raw)
	pipe.LPush(ctx, b.cfg.HistoryKey, raw)
	pipe.LTrim(ctx, b.cfg.HistoryKey, 0, int64(b.cfg.HistoryCap-1))
	_, err = pipe.Exec(ctx)
	return err
}

// History returns up to limit events, newest first.
func (b *redisBus) History(ctx context.Context, limit int) ([]Event, error) {
	if b == nil || b.rdb == nil {
		return nil, fmt.Errorf("redis drill bus not initialized")
	}
	if limit <= 0 || limit > b.cfg.HistoryCap {
		limit = b.cfg.HistoryCap
	}
	raws, err := b.rdb.LRange(ctx, b.cfg.HistoryKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Event, 0, len(raws))
	for _, raw := range raws {
		var ev Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			b.log.Warn("bad drill history entry", "error", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (b *redisBus) StartForwarder(ctx context.Context, onEvent func(ev Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis drill bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.cfg.Channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad drill stream payload", "error", err)
					continue
				}
				onEvent(ev)
			}
		}
	}()

	return nil
}

// Close is a no-op; the redis client is owned by the caller.
func (b *redisBus) Close() error { return nil }
