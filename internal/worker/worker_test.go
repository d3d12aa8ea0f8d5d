package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/compute"
	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
)

// --- Fakes ---

type fakeSnapshots struct {
	snaps map[uuid.UUID]*domain.Snapshot
}

func (f *fakeSnapshots) GetByID(_ context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	snap, ok := f.snaps[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	copied := *snap
	return &copied, nil
}

// fakeDispatcher — dispatcher с программируемой последовательностью ошибок.
type fakeDispatcher struct {
	mu       sync.Mutex
	calls    int
	failures int   // первые failures вызовов возвращают err
	err      error // ошибка для падающих вызовов
	result   *compute.Result
}

func (d *fakeDispatcher) Dispatch(_ context.Context, _ *domain.Snapshot) (*compute.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.failures {
		return nil, d.err
	}
	return d.result, nil
}

type fakeResults struct {
	mu       sync.Mutex
	payloads []mq.ComputeResultPayload
}

func (f *fakeResults) PublishComputeResult(_ context.Context, payload mq.ComputeResultPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

// --- Fixtures ---

func testRegistry() *registry.Registry {
	return registry.New([]domain.AlgorithmDefinition{
		{Key: "activity_decay", Version: "2.0.0", Runtime: domain.RuntimeTypescript, Idempotent: true},
		{Key: "one_shot", Version: "1.0.0", Runtime: domain.RuntimeTypescript, Idempotent: false},
	})
}

func invokedSnapshot(key, version string, invocationID uuid.UUID) *domain.Snapshot {
	now := time.Now()
	return &domain.Snapshot{
		ID:     uuid.New(),
		Status: domain.SnapshotRunning,
		Preset: domain.FrozenPreset{Key: key, Version: version},
		ExecutionRef: &domain.ExecutionRef{
			InvocationID: invocationID,
			Queue:        "compute.typescript",
			Attempt:      1,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testWorker(snaps *fakeSnapshots, disp *fakeDispatcher, results *fakeResults) *Worker {
	return New(Config{
		Snapshots:  snaps,
		Registry:   testRegistry(),
		Dispatcher: disp,
		Publisher:  results,
	})
}

func fastLongRunPolicy(t *testing.T) {
	t.Helper()
	old := domain.LongRunPolicy
	domain.LongRunPolicy = domain.RetryPolicy{
		MaxAttempts:  3,
		Backoff:      "fixed",
		InitialDelay: time.Millisecond,
		Timeout:      time.Second,
	}
	t.Cleanup(func() { domain.LongRunPolicy = old })
}

// --- Tests ---

func TestProcessInvoke_Success(t *testing.T) {
	fastLongRunPolicy(t)

	invocationID := uuid.New()
	snap := invokedSnapshot("activity_decay", "2.0.0", invocationID)
	disp := &fakeDispatcher{result: &compute.Result{Outputs: map[string]any{
		"activity_decay": "s3://reputa/results/x.json",
		"record_count":   42,
	}}}
	results := &fakeResults{}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, results)

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
		Attempt:      1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results.payloads) != 1 {
		t.Fatalf("expected one result, got %d", len(results.payloads))
	}
	got := results.payloads[0]
	if got.Status != mq.ResultStatusSucceeded {
		t.Errorf("expected succeeded, got %s", got.Status)
	}
	if got.InvocationID != invocationID {
		t.Error("result must carry the invocation id")
	}
	if got.Outputs["record_count"] != 42 {
		t.Errorf("outputs not propagated: %+v", got.Outputs)
	}
}

func TestProcessInvoke_StaleTerminalSnapshot(t *testing.T) {
	invocationID := uuid.New()
	snap := invokedSnapshot("activity_decay", "2.0.0", invocationID)
	snap.Status = domain.SnapshotCancelled
	disp := &fakeDispatcher{}
	results := &fakeResults{}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, results)

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
	})
	if !errors.Is(err, ErrStaleInvocation) {
		t.Fatalf("expected ErrStaleInvocation, got %v", err)
	}
	if disp.calls != 0 {
		t.Error("stale invocation must not be executed")
	}
	if len(results.payloads) != 0 {
		t.Error("stale invocation must not publish a result")
	}
}

func TestProcessInvoke_InvocationMismatch(t *testing.T) {
	snap := invokedSnapshot("activity_decay", "2.0.0", uuid.New())
	disp := &fakeDispatcher{}
	results := &fakeResults{}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, results)

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: uuid.New(), // чужой вызов
	})
	if !errors.Is(err, ErrStaleInvocation) {
		t.Fatalf("expected ErrStaleInvocation, got %v", err)
	}
	if disp.calls != 0 {
		t.Error("mismatched invocation must not be executed")
	}
}

func TestProcessInvoke_SnapshotNotFound(t *testing.T) {
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{}}, &fakeDispatcher{}, &fakeResults{})

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   uuid.New(),
		InvocationID: uuid.New(),
	})
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestExecuteWithRetry_IdempotentRecovers(t *testing.T) {
	fastLongRunPolicy(t)

	invocationID := uuid.New()
	snap := invokedSnapshot("activity_decay", "2.0.0", invocationID)
	disp := &fakeDispatcher{
		failures: 2,
		err:      fmt.Errorf("%w: transient", compute.ErrComputeFailed),
		result:   &compute.Result{Outputs: map[string]any{"ok": true}},
	}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, &fakeResults{})

	result, err := w.executeWithRetry(context.Background(), snap)
	if err != nil {
		t.Fatalf("retry should have recovered: %v", err)
	}
	if disp.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", disp.calls)
	}
	if result.Outputs["ok"] != true {
		t.Errorf("unexpected result: %+v", result.Outputs)
	}
}

func TestExecuteWithRetry_NonIdempotentSingleAttempt(t *testing.T) {
	fastLongRunPolicy(t)

	snap := invokedSnapshot("one_shot", "1.0.0", uuid.New())
	disp := &fakeDispatcher{
		failures: 100,
		err:      fmt.Errorf("%w: boom", compute.ErrComputeFailed),
	}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, &fakeResults{})

	_, err := w.executeWithRetry(context.Background(), snap)
	if err == nil {
		t.Fatal("expected error")
	}
	// Неидемпотентная реализация — ровно одна попытка
	if disp.calls != 1 {
		t.Errorf("expected single attempt, got %d", disp.calls)
	}
}

func TestExecuteWithRetry_DefinitionalErrorNotRetried(t *testing.T) {
	fastLongRunPolicy(t)

	snap := invokedSnapshot("activity_decay", "2.0.0", uuid.New())
	disp := &fakeDispatcher{
		failures: 100,
		err:      fmt.Errorf("%w: half_life_days", compute.ErrMissingInput),
	}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, &fakeResults{})

	_, err := w.executeWithRetry(context.Background(), snap)
	if !errors.Is(err, compute.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
	// Дефиниционная ошибка терминальна даже для идемпотентного алгоритма
	if disp.calls != 1 {
		t.Errorf("expected single attempt, got %d", disp.calls)
	}
}

func TestProcessInvoke_RegistrySkewClassified(t *testing.T) {
	fastLongRunPolicy(t)

	// Registry воркера отстал: определение резолвится оркестратором,
	// но не этим процессом. Ошибка дефиниционная — без retry, с
	// различимым kind вместо общего ComputeFailed.
	invocationID := uuid.New()
	snap := invokedSnapshot("activity_decay", "2.0.0", invocationID)
	disp := &fakeDispatcher{
		failures: 100,
		err:      fmt.Errorf("resolve definition: %w", registry.ErrVersionNotFound),
	}
	results := &fakeResults{}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, results)

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if disp.calls != 1 {
		t.Errorf("registry miss must not be retried, got %d attempts", disp.calls)
	}

	if len(results.payloads) != 1 {
		t.Fatalf("expected one result, got %d", len(results.payloads))
	}
	got := results.payloads[0]
	if got.Status != mq.ResultStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure == nil || got.Failure.Kind != domain.FailureVersionNotFound {
		t.Errorf("expected VersionNotFound failure, got %+v", got.Failure)
	}
	if got.Failure.Context["algorithm_version"] != "2.0.0" {
		t.Errorf("failure should name the version: %+v", got.Failure.Context)
	}
}

func TestProcessInvoke_FailureClassified(t *testing.T) {
	fastLongRunPolicy(t)

	invocationID := uuid.New()
	snap := invokedSnapshot("activity_decay", "2.0.0", invocationID)
	disp := &fakeDispatcher{
		failures: 100,
		err:      fmt.Errorf("%w: activity_decay", compute.ErrUnsupportedAlgorithm),
	}
	results := &fakeResults{}
	w := testWorker(&fakeSnapshots{snaps: map[uuid.UUID]*domain.Snapshot{snap.ID: snap}}, disp, results)

	err := w.processInvoke(context.Background(), mq.ComputeInvokePayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results.payloads) != 1 {
		t.Fatalf("expected one result, got %d", len(results.payloads))
	}
	got := results.payloads[0]
	if got.Status != mq.ResultStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure == nil || got.Failure.Kind != domain.FailureUnsupportedAlgorithm {
		t.Errorf("expected UnsupportedAlgorithm failure, got %+v", got.Failure)
	}
}
