package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/vocabdrill-backend/internal/domain/learning"
	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
	"github.com/yungbote/vocabdrill-backend/internal/platform/logger"
)

var (
	ErrEmpty        = errors.New("inventory empty")
	ErrCapacityFull = errors.New("inventory at capacity")
)

// Capacity bounds one (user, mode) inventory: Words distinct words with ready
// content, each holding at most Depth queued items.
type Capacity struct {
	Words int
	Depth int
}

var defaultCapacity = [learning.ModeCount]Capacity{
	learning.ModeSyntax:  {Words: 30, Depth: 3},
	learning.ModeBlitz:   {Words: 40, Depth: 3},
	learning.ModePhrase:  {Words: 20, Depth: 2},
	learning.ModeAudio:   {Words: 30, Depth: 3},
	learning.ModeContext: {Words: 20, Depth: 2},
}

type Config struct {
	Capacity [learning.ModeCount]Capacity
	TTL      time.Duration
	LowWater int
	Strict   bool
}

func DefaultConfig() Config {
	return Config{
		Capacity: defaultCapacity,
		TTL:      7 * 24 * time.Hour,
		LowWater: 1,
	}
}

// ConfigFromEnv reads INVENTORY_* overrides. Per-mode capacity uses
// INVENTORY_<MODE>_WORDS and INVENTORY_<MODE>_DEPTH.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	for _, m := range learning.AllModes() {
		prefix := "INVENTORY_" + strings.ToUpper(m.String())
		cfg.Capacity[m].Words = envutil.Int(prefix+"_WORDS", cfg.Capacity[m].Words)
		cfg.Capacity[m].Depth = envutil.Int(prefix+"_DEPTH", cfg.Capacity[m].Depth)
	}
	cfg.TTL = envutil.Duration("INVENTORY_TTL", cfg.TTL)
	cfg.LowWater = envutil.Int("INVENTORY_LOW_WATER", cfg.LowWater)
	cfg.Strict = envutil.Bool("INVENTORY_STRICT_CAPACITY", false)
	return cfg
}

// Item is one ready-to-serve drill as stored in the cache.
type Item struct {
	VocabID     uuid.UUID       `json:"vocab_id"`
	Word        string          `json:"word"`
	Mode        learning.Mode   `json:"mode"`
	Family      string          `json:"family"`
	Pivot       bool            `json:"pivot"`
	Payload     json.RawMessage `json:"item"`
	GeneratedAt time.Time       `json:"generated_at"`
	Provider    string          `json:"provider,omitempty"`
}

type Cache struct {
	log *logger.Logger
	rdb goredis.UniversalClient
	cfg Config
}

func New(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Cache{log: log.With("component", "InventoryCache"), rdb: rdb, cfg: cfg}
}

func (c *Cache) Config() Config { return c.cfg }

func (c *Cache) CapacityFor(mode learning.Mode) Capacity {
	if !mode.Valid() {
		return Capacity{}
	}
	return c.cfg.Capacity[mode]
}

func itemKey(userID uuid.UUID, mode learning.Mode, word string) string {
	return fmt.Sprintf("inv:%s:%s:%s", userID, mode, strings.ToLower(strings.TrimSpace(word)))
}

func indexKey(userID uuid.UUID, mode learning.Mode) string {
	return fmt.Sprintf("invidx:%s:%s", userID, mode)
}

func normWord(word string) string { return strings.ToLower(strings.TrimSpace(word)) }

// Count is the number of queued items for one word.
func (c *Cache) Count(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) (int, error) {
	n, err := c.rdb.LLen(ctx, itemKey(userID, mode, word)).Result()
	if err != nil {
		return 0, fmt.Errorf("inventory count: %w", err)
	}
	return int(n), nil
}

// Words lists the words that currently have an index entry.
func (c *Cache) Words(ctx context.Context, userID uuid.UUID, mode learning.Mode) ([]string, error) {
	words, err := c.rdb.SMembers(ctx, indexKey(userID, mode)).Result()
	if err != nil {
		return nil, fmt.Errorf("inventory words: %w", err)
	}
	return words, nil
}

// Remaining is how many more distinct words fit before IsFull reports true.
func (c *Cache) Remaining(ctx context.Context, userID uuid.UUID, mode learning.Mode) (int, error) {
	n, err := c.rdb.SCard(ctx, indexKey(userID, mode)).Result()
	if err != nil {
		return 0, fmt.Errorf("inventory remaining: %w", err)
	}
	rem := c.CapacityFor(mode).Words - int(n)
	if rem < 0 {
		rem = 0
	}
	return rem, nil
}

func (c *Cache) IsFull(ctx context.Context, userID uuid.UUID, mode learning.Mode) (bool, error) {
	rem, err := c.Remaining(ctx, userID, mode)
	if err != nil {
		return false, err
	}
	return rem == 0, nil
}

// Push appends item to the word's queue. In strict mode the push is rejected
// with ErrCapacityFull instead of growing past capacity.
func (c *Cache) Push(ctx context.Context, userID uuid.UUID, mode learning.Mode, item Item) error {
	word := normWord(item.Word)
	if word == "" {
		return fmt.Errorf("inventory push: empty word")
	}
	item.Mode = mode
	if item.GeneratedAt.IsZero() {
		item.GeneratedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	ik := itemKey(userID, mode, word)
	xk := indexKey(userID, mode)

	if c.cfg.Strict {
		capac := c.CapacityFor(mode)
		res, err := pushBoundedScript.Run(ctx, c.rdb, []string{ik, xk},
			raw, word, capac.Depth, capac.Words, int64(c.cfg.TTL/time.Second)).Int()
		if err != nil {
			return fmt.Errorf("inventory push bounded: %w", err)
		}
		if res == 0 {
			return ErrCapacityFull
		}
		return nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, ik, raw)
	pipe.Expire(ctx, ik, c.cfg.TTL)
	pipe.SAdd(ctx, xk, word)
	pipe.Expire(ctx, xk, c.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("inventory push: %w", err)
	}
	return nil
}

// Pop removes the oldest item for word. The word leaves the index when its
// queue empties. Returns ErrEmpty when nothing is queued.
func (c *Cache) Pop(ctx context.Context, userID uuid.UUID, mode learning.Mode, word string) (*Item, int, error) {
	word = normWord(word)
	res, err := popScript.Run(ctx, c.rdb, []string{itemKey(userID, mode, word), indexKey(userID, mode)}, word).Slice()
	if errors.Is(err, goredis.Nil) {
		return nil, 0, ErrEmpty
	}
	if err != nil {
		return nil, 0, fmt.Errorf("inventory pop: %w", err)
	}
	if len(res) != 2 {
		return nil, 0, ErrEmpty
	}
	raw, _ := res[0].(string)
	left, _ := res[1].(int64)
	var it Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return nil, int(left), fmt.Errorf("inventory decode: %w", err)
	}
	return &it, int(left), nil
}

// RandomWord returns any indexed word, or "" when the inventory is empty.
func (c *Cache) RandomWord(ctx context.Context, userID uuid.UUID, mode learning.Mode) (string, error) {
	w, err := c.rdb.SRandMember(ctx, indexKey(userID, mode)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("inventory random word: %w", err)
	}
	return w, nil
}

// Clear drops every queue and the index for (user, mode).
func (c *Cache) Clear(ctx context.Context, userID uuid.UUID, mode learning.Mode) (int, error) {
	words, err := c.Words(ctx, userID, mode)
	if err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(words)+1)
	for _, w := range words {
		keys = append(keys, itemKey(userID, mode, w))
	}
	keys = append(keys, indexKey(userID, mode))
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("inventory clear: %w", err)
	}
	c.log.Info("Inventory cleared", "user_id", userID.String(), "mode", mode.String(), "words", len(words))
	return len(words), nil
}
