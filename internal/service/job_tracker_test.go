package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/model"
	"github.com/mathieu-neron/TubePulse/tubepulse-go/internal/store/memstore"
)

func TestJobTracker_HappyPath(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(memstore.New())

	job, err := tr.Create(ctx, model.KindChannel, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != model.JobPending {
		t.Errorf("new job status = %s, want pending", job.Status)
	}

	if ok, err := tr.Start(ctx, job.ID, "snap-1"); err != nil || !ok {
		t.Fatalf("Start = %v, %v", ok, err)
	}
	if ok, err := tr.Complete(ctx, job.ID); err != nil || !ok {
		t.Fatalf("Complete = %v, %v", ok, err)
	}

	got, err := tr.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.JobReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
	if got.CorrelationKey == nil || *got.CorrelationKey != "snap-1" {
		t.Errorf("correlation key = %v, want snap-1", got.CorrelationKey)
	}
}

func TestJobTracker_TerminalStatesAreSticky(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(memstore.New())

	job, _ := tr.Create(ctx, model.KindVideo, nil)
	tr.Start(ctx, job.ID, "")
	tr.Fail(ctx, job.ID, "boom")

	// A late delivery must not resurrect the job.
	ok, err := tr.Complete(ctx, job.ID)
	if err != nil {
		t.Fatalf("late transition returned error: %v", err)
	}
	if ok {
		t.Error("ready applied on a failed job")
	}
	if ok, _ := tr.Fail(ctx, job.ID, "again"); ok {
		t.Error("failed applied twice")
	}

	got, _ := tr.Get(ctx, job.ID)
	if got.Status != model.JobFailed || got.Error == nil || *got.Error != "boom" {
		t.Errorf("job = %+v, want failed with first reason", got)
	}
}

func TestJobTracker_IllegalTransitions(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(memstore.New())
	job, _ := tr.Create(ctx, model.KindChannel, nil)

	if ok, _ := tr.Complete(ctx, job.ID); ok {
		t.Error("pending -> ready should not apply")
	}
	if ok, _ := tr.Transition(ctx, job.ID, model.JobPending, model.JobPatch{}); ok {
		t.Error("transition into pending should not apply")
	}
	if ok, _ := tr.Fail(ctx, job.ID, "dispatch failed"); !ok {
		t.Error("pending -> failed should apply")
	}
}

func TestJobTracker_GetMissing(t *testing.T) {
	tr := newTracker(memstore.New())
	_, err := tr.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestJobTracker_Resolve(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(memstore.New())

	byKey, _ := tr.Create(ctx, model.KindVideo, nil)
	tr.Start(ctx, byKey.ID, "snap-42")
	byID, _ := tr.Create(ctx, model.KindChannel, nil)
	tr.Start(ctx, byID.ID, "")

	tests := []struct {
		name     string
		explicit string
		kind     model.RecordKind
		wantID   string
	}{
		{"correlation key", "snap-42", model.KindChannel, byKey.ID},
		{"job id", byID.ID, model.KindVideo, byID.ID},
		{"newest running of kind", "", model.KindVideo, byKey.ID},
		{"unknown explicit id", "snap-missing", model.KindVideo, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := tr.Resolve(ctx, tt.explicit, tt.kind)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			switch {
			case tt.wantID == "" && job != nil:
				t.Errorf("got job %s, want none", job.ID)
			case tt.wantID != "" && (job == nil || job.ID != tt.wantID):
				t.Errorf("got %v, want %s", job, tt.wantID)
			}
		})
	}
}

func TestJobTracker_ResolveNoRunningJob(t *testing.T) {
	tr := newTracker(memstore.New())
	job, err := tr.Resolve(context.Background(), "", model.KindChannel)
	if err != nil || job != nil {
		t.Errorf("Resolve = %v, %v; want nil, nil", job, err)
	}
}

// pollingStore flips the job to ready after a number of reads.
type pollingStore struct {
	*memstore.Store
	readsUntilReady int
	reads           int
}

func (p *pollingStore) FindJobByID(ctx context.Context, id string) (*model.Job, error) {
	p.reads++
	if p.reads == p.readsUntilReady {
		p.Store.TransitionJob(ctx, id, []model.JobStatus{model.JobRunning}, model.JobReady, model.JobPatch{})
	}
	return p.Store.FindJobByID(ctx, id)
}

func TestJobTracker_AwaitReady(t *testing.T) {
	ctx := context.Background()
	store := &pollingStore{Store: memstore.New(), readsUntilReady: 2}
	tr := newTracker(store)

	job, _ := tr.Create(ctx, model.KindChannel, nil)
	tr.Start(ctx, job.ID, "snap")

	got, err := tr.Await(ctx, job.ID)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if got.Status != model.JobReady {
		t.Errorf("status = %s, want ready", got.Status)
	}
}

func TestJobTracker_AwaitFailedStopsImmediately(t *testing.T) {
	ctx := context.Background()
	store := &pollingStore{Store: memstore.New()}
	tr := newTracker(store)

	job, _ := tr.Create(ctx, model.KindChannel, nil)
	tr.Start(ctx, job.ID, "")
	tr.Fail(ctx, job.ID, "no rows")
	store.reads = 0

	_, err := tr.Await(ctx, job.ID)
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("err = %v, want ErrJobFailed", err)
	}
	if store.reads != 1 {
		t.Errorf("polled %d times, want 1", store.reads)
	}
}

func TestJobTracker_AwaitTimeoutMarksFailed(t *testing.T) {
	ctx := context.Background()
	store := &pollingStore{Store: memstore.New()}
	tr := newTracker(store) // 3 attempts

	job, _ := tr.Create(ctx, model.KindVideo, nil)
	tr.Start(ctx, job.ID, "")
	store.reads = 0

	got, err := tr.Await(ctx, job.ID)
	if !errors.Is(err, ErrJobTimeout) {
		t.Fatalf("err = %v, want ErrJobTimeout", err)
	}
	if got == nil || got.Status != model.JobFailed {
		t.Errorf("job = %+v, want failed", got)
	}
	// 3 polls plus the read-back after failing the job.
	if store.reads != 4 {
		t.Errorf("reads = %d, want 4", store.reads)
	}
}
