package enrichment

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
)

// Tier is a named throughput preset for a provider account.
type Tier struct {
	Name            string
	BatchSize       int
	ChunkSize       int
	Parallelism     int
	RequestsPerHour int
	Interval        time.Duration
}

var (
	TierFree = Tier{
		Name:            "free",
		BatchSize:       20,
		ChunkSize:       10,
		Parallelism:     1,
		RequestsPerHour: 60,
		Interval:        time.Minute,
	}
	TierPaid = Tier{
		Name:            "paid",
		BatchSize:       200,
		ChunkSize:       25,
		Parallelism:     4,
		RequestsPerHour: 3000,
		Interval:        5 * time.Second,
	}
)

func TierByName(name string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "free":
		return TierFree, nil
	case "paid":
		return TierPaid, nil
	}
	return Tier{}, fmt.Errorf("unknown etl tier %q", name)
}

// TierFromEnv picks ETL_TIER and applies ETL_* overrides on top of it.
func TierFromEnv() (Tier, error) {
	t, err := TierByName(envutil.String("ETL_TIER", "free"))
	if err != nil {
		return Tier{}, err
	}
	t.BatchSize = envutil.Int("ETL_BATCH_SIZE", t.BatchSize)
	t.ChunkSize = envutil.Int("ETL_CHUNK_SIZE", t.ChunkSize)
	t.Parallelism = envutil.Int("ETL_PARALLELISM", t.Parallelism)
	t.RequestsPerHour = envutil.Int("ETL_REQUESTS_PER_HOUR", t.RequestsPerHour)
	t.Interval = envutil.Duration("ETL_INTERVAL", t.Interval)
	return t.normalized(), nil
}

func (t Tier) normalized() Tier {
	if t.BatchSize < 1 {
		t.BatchSize = 1
	}
	if t.ChunkSize < 1 || t.ChunkSize > t.BatchSize {
		t.ChunkSize = t.BatchSize
	}
	if t.Parallelism < 1 {
		t.Parallelism = 1
	}
	if t.Interval < 0 {
		t.Interval = 0
	}
	return t
}
