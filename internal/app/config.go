package app

import (
	"time"

	"github.com/yungbote/vocabdrill-backend/internal/platform/envutil"
)

type Config struct {
	Addr            string
	LogMode         string
	ServiceName     string
	Environment     string
	Version         string
	EventBuffer     int
	WorkerEnabled   bool
	ScheduleEnabled bool
	ShutdownTimeout time.Duration
	// LatencyGrading swaps the identity grader for the response-time one.
	LatencyGrading bool
	SlowAnswerMs   int
	FastAnswerMs   int
}

func LoadConfig() Config {
	return Config{
		Addr:            envutil.String("HTTP_ADDR", ":8080"),
		LogMode:         envutil.String("LOG_MODE", "development"),
		ServiceName:     envutil.String("SERVICE_NAME", "vocabdrill"),
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", "dev"),
		EventBuffer:     envutil.Int("DRILL_STREAM_BUFFER", 256),
		WorkerEnabled:   envutil.Bool("WORKER_ENABLED", true),
		ScheduleEnabled: envutil.Bool("SCHEDULE_ENABLED", true),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
		LatencyGrading:  envutil.Bool("SRS_LATENCY_GRADING", false),
		SlowAnswerMs:    envutil.Int("SRS_SLOW_ANSWER_MS", 8000),
		FastAnswerMs:    envutil.Int("SRS_FAST_ANSWER_MS", 1500),
	}
}
