package worker

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/vocabdrill-backend/internal/data/repos"
	"github.com/yungbote/vocabdrill-backend/internal/data/repos/testutil"
	types "github.com/yungbote/vocabdrill-backend/internal/domain"
	"github.com/yungbote/vocabdrill-backend/internal/jobs/runtime"
	"github.com/yungbote/vocabdrill-backend/internal/platform/dbctx"
)

type funcHandler struct {
	typ string
	run func(jc *runtime.Context) error
}

func (h funcHandler) Type() string                  { return h.typ }
func (h funcHandler) Run(jc *runtime.Context) error { return h.run(jc) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Concurrency = 1
	cfg.RatePerMinute = 0
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryDelay = time.Hour
	cfg.Heartbeat = 0
	return cfg
}

func waitForStatus(t *testing.T, repo repos.JobRunRepo, id uuid.UUID, status string) *types.JobRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
		if err != nil {
			t.Fatalf("GetByIDs: %v", err)
		}
		if len(rows) == 1 && rows[0].Status == status {
			return rows[0]
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, status)
	return nil
}

func TestWorkerDispatchesAndRecordsOutcomes(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.New(db, log).JobRun

	var sawTrace atomic.Bool
	reg := runtime.NewRegistry()
	_ = reg.Register(funcHandler{typ: "ok", run: func(jc *runtime.Context) error {
		if jc.Payload()["trace_id"] == "tr-9" {
			sawTrace.Store(true)
		}
		jc.Progress("work", 50, "halfway")
		jc.Succeed("done", map[string]any{"n": 1})
		return nil
	}})
	_ = reg.Register(funcHandler{typ: "boom", run: func(jc *runtime.Context) error { panic("kaboom") }})
	_ = reg.Register(funcHandler{typ: "err", run: func(jc *runtime.Context) error { return errors.New("handler said no") }})

	user := uuid.New()
	mk := func(typ string) *types.JobRun {
		return &types.JobRun{OwnerUserID: user, JobType: typ, Payload: []byte(`{"trace_id":"tr-9"}`)}
	}
	jobs, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{mk("ok"), mk("boom"), mk("err"), mk("unknown")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(db, log, repo, reg, nil, testConfig())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	ok := waitForStatus(t, repo, jobs[0].ID, types.StatusSucceededJob)
	if ok.Progress != 100 || ok.Stage != "done" || !strings.Contains(string(ok.Result), `"n":1`) {
		t.Fatalf("unexpected success row %+v", ok)
	}
	if !sawTrace.Load() {
		t.Fatalf("handler did not see payload trace id")
	}

	boom := waitForStatus(t, repo, jobs[1].ID, types.StatusFailedJob)
	if boom.Stage != "panic" || !strings.Contains(boom.Error, "kaboom") {
		t.Fatalf("unexpected panic row %+v", boom)
	}
	e := waitForStatus(t, repo, jobs[2].ID, types.StatusFailedJob)
	if e.Stage != "run" || e.Error != "handler said no" || e.Attempts != 1 {
		t.Fatalf("unexpected error row %+v", e)
	}
	u := waitForStatus(t, repo, jobs[3].ID, types.StatusFailedJob)
	if u.Stage != "dispatch" || !strings.Contains(u.Error, "job_type=unknown") {
		t.Fatalf("unexpected dispatch row %+v", u)
	}
}

func TestCanceledRunIsNotOverwritten(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.New(db, log).JobRun

	reg := runtime.NewRegistry()
	_ = reg.Register(funcHandler{typ: "slow", run: func(jc *runtime.Context) error {
		// owner cancels while the handler is still working
		_ = jc.Repo.UpdateFields(dbctx.Context{Ctx: jc.Ctx}, jc.Job.ID, map[string]interface{}{"status": types.StatusCanceledJob})
		jc.Succeed("done", nil)
		return nil
	}})
	jobs, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{{OwnerUserID: uuid.New(), JobType: "slow"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(db, log, repo, reg, nil, testConfig())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Wait()
	}()

	got := waitForStatus(t, repo, jobs[0].ID, types.StatusCanceledJob)
	time.Sleep(50 * time.Millisecond)
	rows, _ := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{got.ID})
	if rows[0].Status != types.StatusCanceledJob || rows[0].Progress == 100 {
		t.Fatalf("canceled run was overwritten: %+v", rows[0])
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := runtime.NewRegistry()
	h := funcHandler{typ: "a", run: func(*runtime.Context) error { return nil }}
	if err := reg.Register(h); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(h); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if got := reg.Types(); len(got) != 1 || got[0] != "a" {
		t.Fatalf("Types() = %v", got)
	}
}
