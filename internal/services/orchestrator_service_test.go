package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/osvaldoandrade/pixelq/internal/polling"
	"github.com/osvaldoandrade/pixelq/pkg/domain"
	"github.com/osvaldoandrade/pixelq/pkg/persistence"
	"github.com/osvaldoandrade/pixelq/pkg/persistence/memory"
)

// fakeVendor hands out task ids and answers status queries from a script
// keyed by task id.
type fakeVendor struct {
	mu        sync.Mutex
	createErr error
	statuses  map[string][]domain.TaskStatus
	polls     map[string]int
	nextID    int
	text      string
	textErr   error
	created   []domain.TaskRequest
}

func newFakeVendor() *fakeVendor {
	return &fakeVendor{statuses: map[string][]domain.TaskStatus{}, polls: map[string]int{}}
}

func (v *fakeVendor) script(taskID string, states ...domain.TaskStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses[taskID] = states
}

func (v *fakeVendor) CreateTask(_ context.Context, spec domain.FeatureSpec, req domain.TaskRequest) (domain.TaskHandle, error) {
	if err := req.Validate(); err != nil {
		return domain.TaskHandle{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.createErr != nil {
		return domain.TaskHandle{}, v.createErr
	}
	v.nextID++
	v.created = append(v.created, req)
	return domain.TaskHandle{TaskID: fmt.Sprintf("t-%d", v.nextID), Feature: spec.Feature}, nil
}

func (v *fakeVendor) FetchStatus(_ context.Context, _ domain.FeatureSpec, h domain.TaskHandle) (domain.TaskStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	states, ok := v.statuses[h.TaskID]
	if !ok {
		states = v.statuses["*"]
	}
	i := v.polls[h.TaskID]
	v.polls[h.TaskID]++
	if len(states) == 0 {
		return domain.TaskStatus{State: domain.StatePending, RawState: "0"}, nil
	}
	if i >= len(states) {
		i = len(states) - 1
	}
	return states[i], nil
}

func (v *fakeVendor) Download(context.Context, string) ([]byte, error) {
	if v.textErr != nil {
		return nil, v.textErr
	}
	return []byte(v.text), nil
}

// failingStore rejects every append.
type failingStore struct{ persistence.CreationStorage }

func (failingStore) Append(context.Context, domain.Creation) error {
	return errors.New("disk full")
}

func testSpecs() map[domain.Feature]domain.FeatureSpec {
	base := func(f domain.Feature, artifactPath string, max int, persist, fetch bool, prompt string) domain.FeatureSpec {
		return domain.FeatureSpec{
			Feature: f, CreatePath: "/api/tasks/x", FileField: "image_file",
			TaskIDPath: "data.task_id", StatePath: "data.state", DoneState: "1",
			ArtifactPath: artifactPath, MaxAttempts: max, Interval: time.Second,
			Persist: persist, FetchText: fetch, Prompt: prompt,
		}
	}
	return map[domain.Feature]domain.FeatureSpec{
		domain.FeatureOCR:      base(domain.FeatureOCR, "data.file", 60, false, true, "Extract text from image"),
		domain.FeatureColorize: base(domain.FeatureColorize, "data.image", 30, true, false, "Colorize image"),
		domain.FeatureEnhance:  base(domain.FeatureEnhance, "data.image", 20, true, false, "Enhance image"),
	}
}

func pending() domain.TaskStatus { return domain.TaskStatus{State: domain.StatePending, RawState: "0"} }

func done(artifact string) domain.TaskStatus {
	return domain.TaskStatus{State: domain.StateDone, RawState: "1", Artifact: artifact}
}

func image() domain.TaskRequest {
	return domain.TaskRequest{Payload: []byte{0x89, 'P', 'N', 'G'}, FileName: "a.png", MIMEType: "image/png"}
}

func newTestOrchestrator(t *testing.T, v *fakeVendor, store persistence.CreationStorage) Orchestrator {
	t.Helper()
	noSleep := func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	poller := polling.NewPoller(v, nil, polling.WithSleep(noSleep))
	return NewOrchestrator(v, poller, testSpecs(), NewCreationWriter(store, nil, nil), nil, nil)
}

func memoryStore(t *testing.T) persistence.CreationStorage {
	t.Helper()
	p, err := memory.NewPlugin(persistence.PluginConfig{})
	if err != nil {
		t.Fatal(err)
	}
	return p.CreationStorage()
}

func countAll(t *testing.T, store persistence.CreationStorage) int64 {
	t.Helper()
	n, err := store.Count(context.Background(), domain.CreationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestRunOCRFetchesTextAndDoesNotPersist(t *testing.T) {
	v := newFakeVendor()
	v.text = "hello world"
	v.script("*", pending(), pending(), pending(), pending(), pending(), done("https://x/out.txt"))
	store := memoryStore(t)

	out := newTestOrchestrator(t, v, store).Run(context.Background(), domain.FeatureOCR, image())
	if !out.Success || out.Artifact != "https://x/out.txt" || out.Text != "hello world" {
		t.Fatalf("outcome = %+v", out)
	}
	if !out.Valid() {
		t.Error("outcome violates the success invariant")
	}
	if v.polls["t-1"] != 6 {
		t.Errorf("polls = %d, want 6", v.polls["t-1"])
	}
	if n := countAll(t, store); n != 0 {
		t.Errorf("ocr persisted %d creations", n)
	}
}

func TestRunOCRTextDownloadFailureKeepsSuccess(t *testing.T) {
	v := newFakeVendor()
	v.textErr = domain.ErrVendorUnreachable
	v.script("*", done("https://x/out.txt"))

	out := newTestOrchestrator(t, v, nil).Run(context.Background(), domain.FeatureOCR, image())
	if !out.Success || out.Text != "" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunColorizePersistsExactlyOnce(t *testing.T) {
	v := newFakeVendor()
	v.script("*", pending(), pending(), done("https://x/c.png"))
	store := memoryStore(t)

	out := newTestOrchestrator(t, v, store).Run(context.Background(), domain.FeatureColorize, image(), WithPublish(true), WithOwner("u-1"))
	if !out.Success || out.Artifact != "https://x/c.png" {
		t.Fatalf("outcome = %+v", out)
	}
	list, err := store.List(context.Background(), domain.CreationFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("creations = %d, want 1", len(list))
	}
	c := list[0]
	if c.UserID != "u-1" || c.Prompt != "Colorize image" || c.Content != "https://x/c.png" || !c.Publish || c.Type != domain.CreationImage {
		t.Errorf("creation = %+v", c)
	}
}

func TestRunPromptOverride(t *testing.T) {
	v := newFakeVendor()
	v.script("*", done("https://x/e.png"))
	store := memoryStore(t)

	newTestOrchestrator(t, v, store).Run(context.Background(), domain.FeatureEnhance, image(), WithPrompt("sharper please"))
	list, _ := store.List(context.Background(), domain.CreationFilter{})
	if len(list) != 1 || list[0].Prompt != "sharper please" {
		t.Fatalf("creations = %+v", list)
	}
}

func TestRunFailuresNeverPersist(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(v *fakeVendor)
		feature  domain.Feature
		req      domain.TaskRequest
		wantKind domain.ErrorKind
	}{
		{"enhance never done", func(v *fakeVendor) { v.script("*", pending()) }, domain.FeatureEnhance, image(), domain.KindPollTimeout},
		{"create rejected", func(v *fakeVendor) { v.createErr = domain.ErrTaskCreationRejected }, domain.FeatureColorize, image(), domain.KindTaskCreationRejected},
		{"vendor down", func(v *fakeVendor) { v.createErr = domain.ErrVendorUnreachable }, domain.FeatureColorize, image(), domain.KindVendorUnreachable},
		{"done without artifact", func(v *fakeVendor) {
			v.script("*", domain.TaskStatus{State: domain.StateDone, RawState: "1", Raw: []byte(`{"data":{"state":1}}`)})
		}, domain.FeatureColorize, image(), domain.KindArtifactMissing},
		{"vendor failed", func(v *fakeVendor) {
			v.script("*", pending(), domain.TaskStatus{State: domain.StateFailed, RawState: "-1"})
		}, domain.FeatureEnhance, image(), domain.KindVendorFailed},
		{"empty image", func(v *fakeVendor) {}, domain.FeatureColorize, domain.TaskRequest{FileName: "a.png", MIMEType: "image/png"}, domain.KindInvalidRequest},
		{"unconfigured feature", func(v *fakeVendor) {}, domain.Feature("SHARPEN"), image(), domain.KindInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newFakeVendor()
			tt.setup(v)
			store := memoryStore(t)

			out := newTestOrchestrator(t, v, store).Run(context.Background(), tt.feature, tt.req)
			if out.Success || out.ErrorKind != tt.wantKind {
				t.Fatalf("outcome = %+v, want kind %s", out, tt.wantKind)
			}
			if !out.Valid() || out.Message == "" {
				t.Errorf("invalid failure outcome %+v", out)
			}
			if n := countAll(t, store); n != 0 {
				t.Errorf("failure persisted %d creations", n)
			}
		})
	}
}

func TestRunEnhanceTimeoutUsesFullBudget(t *testing.T) {
	v := newFakeVendor()
	v.script("*", pending())

	out := newTestOrchestrator(t, v, nil).Run(context.Background(), domain.FeatureEnhance, image())
	if out.ErrorKind != domain.KindPollTimeout {
		t.Fatalf("outcome = %+v", out)
	}
	if v.polls["t-1"] != 20 {
		t.Errorf("polls = %d, want 20", v.polls["t-1"])
	}
}

func TestRunPersistFailureKeepsSuccess(t *testing.T) {
	v := newFakeVendor()
	v.script("*", done("https://x/c.png"))

	out := newTestOrchestrator(t, v, failingStore{}).Run(context.Background(), domain.FeatureColorize, image())
	if !out.Success || out.Artifact != "https://x/c.png" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunCanceledContext(t *testing.T) {
	v := newFakeVendor()
	v.script("*", pending())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestOrchestrator(t, v, nil).Run(ctx, domain.FeatureColorize, image())
	if out.ErrorKind != domain.KindCanceled {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunConcurrentInvocationsAreIsolated(t *testing.T) {
	v := newFakeVendor()
	for i := 1; i <= 8; i++ {
		v.script(fmt.Sprintf("t-%d", i), pending(), done(fmt.Sprintf("https://x/%d.png", i)))
	}
	store := memoryStore(t)
	o := newTestOrchestrator(t, v, store)

	var wg sync.WaitGroup
	outs := make([]domain.Outcome, 8)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i] = o.Run(context.Background(), domain.FeatureColorize, image())
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, out := range outs {
		if !out.Success {
			t.Fatalf("outcome = %+v", out)
		}
		if seen[out.Artifact] {
			t.Errorf("artifact %s returned twice", out.Artifact)
		}
		seen[out.Artifact] = true
	}
	if n := countAll(t, store); n != 8 {
		t.Errorf("creations = %d, want 8", n)
	}
}
