package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/deps"
	"github.com/savichev/reputa/internal/domain"
	"github.com/savichev/reputa/internal/mq"
	"github.com/savichev/reputa/internal/registry"
	"github.com/savichev/reputa/internal/repo"
)

// --- Fakes ---

// fakeStore — in-memory snapshotStore с guarded-переходами как у
// repo.SnapshotRepo.
type fakeStore struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]*domain.Snapshot
}

func newFakeStore(snaps ...*domain.Snapshot) *fakeStore {
	s := &fakeStore{snaps: make(map[uuid.UUID]*domain.Snapshot)}
	for _, snap := range snaps {
		s.snaps[snap.ID] = snap
	}
	return s
}

func (s *fakeStore) get(id uuid.UUID) (*domain.Snapshot, error) {
	snap, ok := s.snaps[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return snap, nil
}

func (s *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return nil, err
	}
	copied := *snap
	return &copied, nil
}

func (s *fakeStore) ListQueued(_ context.Context, limit int) ([]domain.Snapshot, error) {
	return s.listByStatus(domain.SnapshotQueued, limit), nil
}

func (s *fakeStore) ListRunning(_ context.Context, limit int) ([]domain.Snapshot, error) {
	return s.listByStatus(domain.SnapshotRunning, limit), nil
}

func (s *fakeStore) listByStatus(status domain.SnapshotStatus, limit int) []domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Snapshot
	for _, snap := range s.snaps {
		if snap.Status == status && len(out) < limit {
			out = append(out, *snap)
		}
	}
	return out
}

func (s *fakeStore) MarkRunning(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return err
	}
	if snap.Status != domain.SnapshotQueued {
		return repo.ErrInvalidState
	}
	snap.Status = domain.SnapshotRunning
	return nil
}

func (s *fakeStore) SetExecutionRef(_ context.Context, id uuid.UUID, ref domain.ExecutionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return err
	}
	if snap.Status != domain.SnapshotRunning {
		return repo.ErrInvalidState
	}
	snap.ExecutionRef = &ref
	return nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, id uuid.UUID, outputs map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return err
	}
	if snap.Status != domain.SnapshotRunning {
		return repo.ErrInvalidState
	}
	snap.Status = domain.SnapshotCompleted
	snap.Outputs = outputs
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id uuid.UUID, failure domain.Failure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return err
	}
	if snap.Status.IsTerminal() {
		return repo.ErrInvalidState
	}
	snap.Status = domain.SnapshotFailed
	snap.Failure = &failure
	return nil
}

func (s *fakeStore) MarkCancelled(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.get(id)
	if err != nil {
		return err
	}
	if !snap.Status.CanCancel() {
		return repo.ErrInvalidState
	}
	snap.Status = domain.SnapshotCancelled
	return nil
}

// fakeDeps — dependencySet с программируемым числом отказов.
type fakeDeps struct {
	mu       sync.Mutex
	resolved []string
	failures int   // первые failures вызовов падают
	err      error // если задана — каждый вызов возвращает её
	calls    int
}

func (d *fakeDeps) Resolve(_ context.Context, key, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return d.err
	}
	if d.calls <= d.failures {
		return fmt.Errorf("transient fetch error")
	}
	d.resolved = append(d.resolved, key)
	return nil
}

// fakePublisher — computePublisher, записывающий отправленные вызовы.
type fakePublisher struct {
	mu      sync.Mutex
	invokes []struct {
		Queue   string
		Payload mq.ComputeInvokePayload
	}
}

func (p *fakePublisher) PublishComputeInvoke(_ context.Context, queue string, payload mq.ComputeInvokePayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invokes = append(p.invokes, struct {
		Queue   string
		Payload mq.ComputeInvokePayload
	}{queue, payload})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.invokes)
}

// --- Fixtures ---

func testRegistry() *registry.Registry {
	return registry.New([]domain.AlgorithmDefinition{
		{
			Key:          "voting_engagement",
			Version:      "1.2.0",
			Runtime:      domain.RuntimePython,
			Dependencies: []string{"community_votes", "member_activity"},
			Idempotent:   true,
		},
		{
			Key:          "weird_runtime",
			Version:      "1.0.0",
			Runtime:      domain.Runtime("go"),
			Dependencies: []string{"community_votes"},
		},
	})
}

func queuedSnapshot(key, version string) *domain.Snapshot {
	now := time.Now()
	return &domain.Snapshot{
		ID:        uuid.New(),
		Status:    domain.SnapshotQueued,
		Preset:    domain.FrozenPreset{Key: key, Version: version},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func testOrchestrator(store *fakeStore, deps *fakeDeps, pub *fakePublisher) *Orchestrator {
	return New(Config{
		Snapshots: store,
		Registry:  testRegistry(),
		Deps:      deps,
		Publisher: pub,
	})
}

// fastPolicies ускоряет retry-политики на время теста.
func fastPolicies(t *testing.T) {
	t.Helper()
	oldLong, oldPersist := domain.LongRunPolicy, domain.PersistPolicy
	domain.LongRunPolicy = domain.RetryPolicy{
		MaxAttempts:  3,
		Backoff:      "fixed",
		InitialDelay: time.Millisecond,
		Timeout:      time.Second,
	}
	domain.PersistPolicy = domain.RetryPolicy{
		MaxAttempts:  2,
		Backoff:      "fixed",
		InitialDelay: time.Millisecond,
		Timeout:      time.Second,
	}
	t.Cleanup(func() {
		domain.LongRunPolicy, domain.PersistPolicy = oldLong, oldPersist
	})
}

// --- Tests ---

func TestProcessSnapshot_HappyPath(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	store := newFakeStore(snap)
	deps := &fakeDeps{}
	pub := &fakePublisher{}
	orch := testOrchestrator(store, deps, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotRunning {
		t.Errorf("expected running, got %s", got.Status)
	}
	if got.ExecutionRef == nil {
		t.Fatal("execution ref should be persisted before dispatch")
	}
	if got.ExecutionRef.Queue != "compute.python" {
		t.Errorf("python runtime should route to compute.python, got %s", got.ExecutionRef.Queue)
	}

	// Зависимости в порядке объявления
	if len(deps.resolved) != 2 || deps.resolved[0] != "community_votes" || deps.resolved[1] != "member_activity" {
		t.Errorf("unexpected dependency order: %v", deps.resolved)
	}

	if pub.count() != 1 {
		t.Fatalf("expected exactly one invocation, got %d", pub.count())
	}
	if pub.invokes[0].Payload.InvocationID != got.ExecutionRef.InvocationID {
		t.Error("published invocation must match persisted execution ref")
	}
}

func TestProcessSnapshot_TerminalNoop(t *testing.T) {
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotCompleted
	store := newFakeStore(snap)
	pub := &fakePublisher{}
	orch := testOrchestrator(store, &fakeDeps{}, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("terminal snapshot must be a no-op: %v", err)
	}
	if pub.count() != 0 {
		t.Error("no invocation expected for terminal snapshot")
	}
}

func TestProcessSnapshot_KeyNotFound(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("nonexistent", "1.0.0")
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure == nil || got.Failure.Kind != domain.FailureKeyNotFound {
		t.Errorf("expected KeyNotFound failure, got %+v", got.Failure)
	}
}

func TestProcessSnapshot_VersionNotFound(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "9.9.9")
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Failure == nil || got.Failure.Kind != domain.FailureVersionNotFound {
		t.Errorf("expected VersionNotFound failure, got %+v", got.Failure)
	}
}

func TestProcessSnapshot_UnsupportedRuntime(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("weird_runtime", "1.0.0")
	store := newFakeStore(snap)
	pub := &fakePublisher{}
	orch := testOrchestrator(store, &fakeDeps{}, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure.Kind != domain.FailureUnsupportedRuntime {
		t.Errorf("expected UnsupportedRuntime, got %s", got.Failure.Kind)
	}
	if pub.count() != 0 {
		t.Error("no invocation expected for unroutable runtime")
	}
}

func TestProcessSnapshot_DependencyRetryThenSuccess(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	store := newFakeStore(snap)
	deps := &fakeDeps{failures: 2} // первая зависимость падает дважды
	pub := &fakePublisher{}
	orch := testOrchestrator(store, deps, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotRunning {
		t.Errorf("retry should have recovered, got %s", got.Status)
	}
	if pub.count() != 1 {
		t.Errorf("expected one invocation after retries, got %d", pub.count())
	}
}

func TestProcessSnapshot_DependencyExhausted(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	store := newFakeStore(snap)
	deps := &fakeDeps{failures: 100} // падает всегда
	pub := &fakePublisher{}
	orch := testOrchestrator(store, deps, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotFailed {
		t.Fatalf("expected failed after retry exhaustion, got %s", got.Status)
	}
	if got.Failure.Kind != domain.FailureDependency {
		t.Errorf("expected DependencyFailed, got %s", got.Failure.Kind)
	}
	if got.Failure.Context["dependency"] != "community_votes" {
		t.Errorf("failure should name the dependency: %+v", got.Failure.Context)
	}
	if pub.count() != 0 {
		t.Error("no invocation expected after dependency failure")
	}
}

func TestProcessSnapshot_UnknownDependencyFailsFast(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	store := newFakeStore(snap)
	resolvers := &fakeDeps{err: fmt.Errorf("%w: community_votes", deps.ErrUnknownDependency)}
	pub := &fakePublisher{}
	orch := testOrchestrator(store, resolvers, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Неизвестный ключ — дефект определения, не транзиентный сбой:
	// ровно одна попытка, без retry
	if resolvers.calls != 1 {
		t.Errorf("expected exactly 1 resolver call, got %d", resolvers.calls)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure.Kind != domain.FailureDependency {
		t.Errorf("expected DependencyFailed, got %s", got.Failure.Kind)
	}
	if pub.count() != 0 {
		t.Error("no invocation expected after dependency failure")
	}
}

func TestProcessSnapshot_QueueOverrideRouted(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.QueueOverrides = &domain.QueueOverrides{Python: "compute.python-highmem"}
	store := newFakeStore(snap)
	pub := &fakePublisher{}
	orch := testOrchestrator(store, &fakeDeps{}, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.ExecutionRef == nil || got.ExecutionRef.Queue != "compute.python-highmem" {
		t.Fatalf("override queue must be used, got %+v", got.ExecutionRef)
	}
	if pub.count() != 1 || pub.invokes[0].Queue != "compute.python-highmem" {
		t.Errorf("invocation must be published to the override queue: %+v", pub.invokes)
	}
}

func TestProcessSnapshot_DependenciesResolvedBeforeRouting(t *testing.T) {
	fastPolicies(t)

	// Немаршрутизируемый runtime падает на шаге маршрутизации, но
	// зависимости к этому моменту уже материализованы
	snap := queuedSnapshot("weird_runtime", "1.0.0")
	store := newFakeStore(snap)
	resolvers := &fakeDeps{}
	orch := testOrchestrator(store, resolvers, &fakePublisher{})

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Failure == nil || got.Failure.Kind != domain.FailureUnsupportedRuntime {
		t.Fatalf("expected UnsupportedRuntime failure, got %+v", got.Failure)
	}
	if len(resolvers.resolved) != 1 || resolvers.resolved[0] != "community_votes" {
		t.Errorf("dependencies must be materialized before routing: %v", resolvers.resolved)
	}
}

func TestProcessSnapshot_CancelRequested(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.CancelRequested = true
	store := newFakeStore(snap)
	pub := &fakePublisher{}
	orch := testOrchestrator(store, &fakeDeps{}, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if pub.count() != 0 {
		t.Error("no invocation expected for cancelled snapshot")
	}
}

func TestProcessSnapshot_ResumeIdempotent(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	store := newFakeStore(snap)
	deps := &fakeDeps{}
	pub := &fakePublisher{}
	orch := testOrchestrator(store, deps, pub)

	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Повторная обработка (дубликат события, рестарт): вызов уже в полёте
	if err := orch.processSnapshot(context.Background(), snap.ID); err != nil {
		t.Fatalf("resume must be idempotent: %v", err)
	}

	if pub.count() != 1 {
		t.Errorf("duplicate processing must not re-dispatch, got %d invocations", pub.count())
	}
}

func TestResume_RestartBeforeDispatch(t *testing.T) {
	fastPolicies(t)

	// Рестарт застал snapshot в running без отправленного вызова
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	store := newFakeStore(snap)
	deps := &fakeDeps{}
	pub := &fakePublisher{}
	orch := testOrchestrator(store, deps, pub)

	orch.resume(context.Background())

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.ExecutionRef == nil {
		t.Fatal("resumed pipeline should have dispatched the invocation")
	}
	if pub.count() != 1 {
		t.Errorf("expected one invocation, got %d", pub.count())
	}
}

func TestResume_InFlightInvocationUntouched(t *testing.T) {
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	snap.ExecutionRef = &domain.ExecutionRef{
		InvocationID: uuid.New(),
		Queue:        "compute.python",
		Attempt:      1,
	}
	store := newFakeStore(snap)
	pub := &fakePublisher{}
	orch := testOrchestrator(store, &fakeDeps{}, pub)

	orch.resume(context.Background())

	if pub.count() != 0 {
		t.Error("in-flight invocation must not be re-dispatched")
	}
}

func resultDelivery(payload mq.ComputeResultPayload) *mq.Delivery {
	return &mq.Delivery{Message: mq.Message{
		ID:      uuid.New().String(),
		Type:    mq.MessageTypeComputeResult,
		Payload: payload,
	}}
}

func TestHandleComputeResult_Succeeded(t *testing.T) {
	fastPolicies(t)

	invocationID := uuid.New()
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	snap.ExecutionRef = &domain.ExecutionRef{InvocationID: invocationID, Queue: "compute.python", Attempt: 1}
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	outputs := map[string]any{"voting_engagement": "s3://reputa/results/x.json"}
	err := orch.handleComputeResult(context.Background(), resultDelivery(mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
		Status:       mq.ResultStatusSucceeded,
		Outputs:      outputs,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Outputs["voting_engagement"] != outputs["voting_engagement"] {
		t.Errorf("outputs not persisted: %+v", got.Outputs)
	}
}

func TestHandleComputeResult_Failed(t *testing.T) {
	fastPolicies(t)

	invocationID := uuid.New()
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	snap.ExecutionRef = &domain.ExecutionRef{InvocationID: invocationID, Queue: "compute.python", Attempt: 1}
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	failure := domain.NewFailure(domain.FailureCompute, "boom")
	err := orch.handleComputeResult(context.Background(), resultDelivery(mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
		Status:       mq.ResultStatusFailed,
		Failure:      &failure,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Failure.Message != "boom" {
		t.Errorf("worker failure should be persisted verbatim, got %+v", got.Failure)
	}
}

func TestHandleComputeResult_LateResultDiscarded(t *testing.T) {
	invocationID := uuid.New()
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotCancelled
	snap.ExecutionRef = &domain.ExecutionRef{InvocationID: invocationID, Queue: "compute.python", Attempt: 1}
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.handleComputeResult(context.Background(), resultDelivery(mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
		Status:       mq.ResultStatusSucceeded,
		Outputs:      map[string]any{"k": "v"},
	}))
	if err != nil {
		t.Fatalf("late result must be dropped silently: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotCancelled {
		t.Errorf("terminal status must not change, got %s", got.Status)
	}
	if got.Outputs != nil {
		t.Errorf("outputs of discarded result must not be persisted: %+v", got.Outputs)
	}
}

func TestHandleComputeResult_InvocationMismatch(t *testing.T) {
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	snap.ExecutionRef = &domain.ExecutionRef{InvocationID: uuid.New(), Queue: "compute.python", Attempt: 1}
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.handleComputeResult(context.Background(), resultDelivery(mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: uuid.New(), // чужой invocation
		Status:       mq.ResultStatusSucceeded,
	}))
	if err != nil {
		t.Fatalf("mismatched result must be dropped silently: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotRunning {
		t.Errorf("snapshot must keep waiting for its own result, got %s", got.Status)
	}
}

func TestApplyComputeResult_StaleSentinel(t *testing.T) {
	invocationID := uuid.New()
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotCancelled
	snap.ExecutionRef = &domain.ExecutionRef{InvocationID: invocationID, Queue: "compute.python", Attempt: 1}
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.applyComputeResult(context.Background(), mq.ComputeResultPayload{
		SnapshotID:   snap.ID,
		InvocationID: invocationID,
		Status:       mq.ResultStatusSucceeded,
	})
	if !errors.Is(err, ErrStaleResult) {
		t.Fatalf("result for terminal snapshot must be ErrStaleResult, got %v", err)
	}

	// Чужой invocation_id — тоже stale
	snap2 := queuedSnapshot("voting_engagement", "1.2.0")
	snap2.Status = domain.SnapshotRunning
	snap2.ExecutionRef = &domain.ExecutionRef{InvocationID: uuid.New(), Queue: "compute.python", Attempt: 1}
	store2 := newFakeStore(snap2)
	orch2 := testOrchestrator(store2, &fakeDeps{}, &fakePublisher{})

	err = orch2.applyComputeResult(context.Background(), mq.ComputeResultPayload{
		SnapshotID:   snap2.ID,
		InvocationID: uuid.New(),
		Status:       mq.ResultStatusSucceeded,
	})
	if !errors.Is(err, ErrStaleResult) {
		t.Fatalf("mismatched invocation must be ErrStaleResult, got %v", err)
	}
}

func TestHandleSnapshotCancel_Running(t *testing.T) {
	fastPolicies(t)

	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotRunning
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.handleSnapshotCancel(context.Background(), &mq.Delivery{Message: mq.Message{
		Type:    mq.MessageTypeSnapshotCancel,
		Payload: mq.SnapshotCancelPayload{SnapshotID: snap.ID},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
}

func TestHandleSnapshotCancel_TerminalNoop(t *testing.T) {
	snap := queuedSnapshot("voting_engagement", "1.2.0")
	snap.Status = domain.SnapshotCompleted
	store := newFakeStore(snap)
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.handleSnapshotCancel(context.Background(), &mq.Delivery{Message: mq.Message{
		Type:    mq.MessageTypeSnapshotCancel,
		Payload: mq.SnapshotCancelPayload{SnapshotID: snap.ID},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.GetByID(context.Background(), snap.ID)
	if got.Status != domain.SnapshotCompleted {
		t.Errorf("terminal snapshot must not be cancelled, got %s", got.Status)
	}
}

func TestProcessSnapshot_NotFound(t *testing.T) {
	store := newFakeStore()
	orch := testOrchestrator(store, &fakeDeps{}, &fakePublisher{})

	err := orch.processSnapshot(context.Background(), uuid.New())
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
}
