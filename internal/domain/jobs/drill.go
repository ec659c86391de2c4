package jobs

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	JobTypeDrillReplenishWords    = "drill_replenish_words"
	JobTypeDrillGenerateScheduled = "drill_generate_scheduled"

	EntityTypeDrillInventory = "drill_inventory"
)

var drillEntityNamespace = uuid.MustParse("6f1c2b9e-4d8a-4c57-9a3e-2f0b7d51c8aa")

// DrillJobPayload is the job_run.payload shape for both drill job types.
type DrillJobPayload struct {
	UserID          uuid.UUID   `json:"user_id"`
	Mode            string      `json:"mode"`
	ExplicitWordIDs []uuid.UUID `json:"explicit_word_ids,omitempty"`
	ForceLimit      int         `json:"force_limit,omitempty"`
	TraceID         string      `json:"trace_id,omitempty"`
	RequestID       string      `json:"request_id,omitempty"`
}

// DrillJobType picks the job type for a request: explicit words mean a
// targeted replenish, anything else is a scheduled fill.
func DrillJobType(explicitWordIDs []uuid.UUID) string {
	if len(explicitWordIDs) > 0 {
		return JobTypeDrillReplenishWords
	}
	return JobTypeDrillGenerateScheduled
}

// DrillEntityID is the stable entity key for one (user, mode) inventory.
func DrillEntityID(userID uuid.UUID, mode string) uuid.UUID {
	return uuid.NewSHA1(drillEntityNamespace, []byte(userID.String()+":"+strings.ToLower(mode)))
}

// SortedWordIDs returns a sorted copy without duplicates or nil ids.
func SortedWordIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
