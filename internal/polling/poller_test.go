package polling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/osvaldoandrade/pixelq/pkg/domain"
)

// scriptedFetcher answers from states in order, repeating the last one.
type scriptedFetcher struct {
	mu      sync.Mutex
	states  []domain.TaskStatus
	err     error
	calls   int
	handles []string
	onCall  func(n int)
}

func (f *scriptedFetcher) FetchStatus(_ context.Context, _ domain.FeatureSpec, h domain.TaskHandle) (domain.TaskStatus, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.handles = append(f.handles, h.TaskID)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	if f.err != nil {
		return domain.TaskStatus{}, f.err
	}
	i := n - 1
	if i >= len(f.states) {
		i = len(f.states) - 1
	}
	return f.states[i], nil
}

func (f *scriptedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func pending() domain.TaskStatus { return domain.TaskStatus{State: domain.StatePending, RawState: "0"} }

func done(artifact string) domain.TaskStatus {
	return domain.TaskStatus{State: domain.StateDone, RawState: "1", Artifact: artifact}
}

func spec(feature domain.Feature, max int, interval time.Duration) domain.FeatureSpec {
	return domain.FeatureSpec{Feature: feature, MaxAttempts: max, Interval: interval, DoneState: "1", ArtifactPath: "data.image"}
}

func TestPollNeverDoneQueriesExactlyMax(t *testing.T) {
	for _, max := range []int{1, 2, 30} {
		f := &scriptedFetcher{states: []domain.TaskStatus{pending()}}
		rec := &sleepRecorder{}
		p := NewPoller(f, nil, WithSleep(rec.sleep))

		res, err := p.Poll(context.Background(), spec(domain.FeatureColorize, max, time.Second), domain.TaskHandle{TaskID: "c-1"})
		if !errors.Is(err, domain.ErrPollTimeout) {
			t.Fatalf("max=%d: err = %v, want ErrPollTimeout", max, err)
		}
		if f.Calls() != max || res.Attempts != max {
			t.Errorf("max=%d: calls=%d attempts=%d", max, f.Calls(), res.Attempts)
		}
		if len(rec.delays) != max-1 {
			t.Errorf("max=%d: sleeps=%d, want %d", max, len(rec.delays), max-1)
		}
		if res.State != StateTimedOut {
			t.Errorf("state = %s", res.State)
		}
	}
}

func TestPollOCRScenarioFivePendingThenDone(t *testing.T) {
	states := []domain.TaskStatus{pending(), pending(), pending(), pending(), pending(), done("https://x/out.txt")}
	f := &scriptedFetcher{states: states}
	rec := &sleepRecorder{}
	p := NewPoller(f, nil, WithSleep(rec.sleep))

	res, err := p.Poll(context.Background(), spec(domain.FeatureOCR, 60, time.Second), domain.TaskHandle{TaskID: "o-1"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.State != StateDone || res.Status.Artifact != "https://x/out.txt" {
		t.Errorf("result = %+v", res)
	}
	if len(rec.delays) != 5 {
		t.Fatalf("sleeps = %d, want 5", len(rec.delays))
	}
	for _, d := range rec.delays {
		if d != time.Second {
			t.Errorf("delay = %v, want fixed 1s", d)
		}
	}
	if f.Calls() != 6 {
		t.Errorf("calls = %d, want 6 (done is never polled again)", f.Calls())
	}
}

func TestPollUnknownStateIsTreatedAsPending(t *testing.T) {
	f := &scriptedFetcher{states: []domain.TaskStatus{{State: domain.StateUnknown}, {State: domain.StateUnknown}, done("https://x/a.png")}}
	p := NewPoller(f, nil, WithSleep((&sleepRecorder{}).sleep))

	res, err := p.Poll(context.Background(), spec(domain.FeatureEnhance, 20, 2*time.Second), domain.TaskHandle{TaskID: "e"})
	if err != nil || res.State != StateDone || res.Attempts != 3 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestPollFetchErrorIsNotRetried(t *testing.T) {
	f := &scriptedFetcher{err: domain.ErrMalformedResponse}
	p := NewPoller(f, nil, WithSleep((&sleepRecorder{}).sleep))

	res, err := p.Poll(context.Background(), spec(domain.FeatureOCR, 60, time.Second), domain.TaskHandle{TaskID: "o"})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("err = %v", err)
	}
	if f.Calls() != 1 || res.State != StateFailed {
		t.Errorf("calls = %d, state = %s", f.Calls(), res.State)
	}
}

func TestPollVendorFailedState(t *testing.T) {
	f := &scriptedFetcher{states: []domain.TaskStatus{pending(), {State: domain.StateFailed, RawState: "-1"}}}
	p := NewPoller(f, nil, WithSleep((&sleepRecorder{}).sleep))

	res, err := p.Poll(context.Background(), spec(domain.FeatureColorize, 30, time.Second), domain.TaskHandle{TaskID: "c"})
	if !errors.Is(err, domain.ErrVendorFailed) || res.State != StateFailed || res.Attempts != 2 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestPollCancellationStopsAtPollBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := &scriptedFetcher{states: []domain.TaskStatus{pending()}, onCall: func(n int) {
		if n == 3 {
			cancel()
		}
	}}
	p := NewPoller(f, nil, WithSleep(sleepOrDone))

	_, err := p.Poll(ctx, spec(domain.FeatureOCR, 60, time.Millisecond), domain.TaskHandle{TaskID: "o"})
	if !errors.Is(err, domain.ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
	if f.Calls() != 3 {
		t.Errorf("calls = %d, want 3", f.Calls())
	}
}

func TestPollAlreadyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &scriptedFetcher{states: []domain.TaskStatus{pending()}}

	_, err := NewPoller(f, nil).Poll(ctx, spec(domain.FeatureOCR, 60, time.Second), domain.TaskHandle{TaskID: "o"})
	if !errors.Is(err, domain.ErrCanceled) || f.Calls() != 0 {
		t.Fatalf("err = %v, calls = %d", err, f.Calls())
	}
}

func TestPollRealSleepUsesInterval(t *testing.T) {
	f := &scriptedFetcher{states: []domain.TaskStatus{pending(), pending(), done("https://x/a")}}
	start := time.Now()
	_, err := NewPoller(f, nil).Poll(context.Background(), spec(domain.FeatureOCR, 10, 5*time.Millisecond), domain.TaskHandle{TaskID: "o"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("elapsed %v, want at least two intervals", elapsed)
	}
}

func TestPollConcurrentInvocationsAreIndependent(t *testing.T) {
	a := &scriptedFetcher{states: []domain.TaskStatus{pending(), pending(), done("https://x/a.txt")}}
	b := &scriptedFetcher{states: []domain.TaskStatus{pending(), done("https://x/b.txt")}}
	sleep := func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	var wg sync.WaitGroup
	var failures atomic.Int32
	results := make([]Result, 2)
	for i, f := range []*scriptedFetcher{a, b} {
		wg.Add(1)
		go func(i int, f *scriptedFetcher) {
			defer wg.Done()
			res, err := NewPoller(f, nil, WithSleep(sleep)).Poll(context.Background(), spec(domain.FeatureOCR, 60, time.Second), domain.TaskHandle{TaskID: string(rune('a' + i))})
			if err != nil {
				failures.Add(1)
			}
			results[i] = res
		}(i, f)
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatal("unexpected failure")
	}
	if results[0].Attempts != 3 || results[0].Status.Artifact != "https://x/a.txt" {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].Attempts != 2 || results[1].Status.Artifact != "https://x/b.txt" {
		t.Errorf("second = %+v", results[1])
	}
	for _, id := range b.handles {
		if id != "b" {
			t.Errorf("handle cross-contamination: %v", b.handles)
		}
	}
}

func TestPollSharedPollerConcurrent(t *testing.T) {
	f := &scriptedFetcher{states: []domain.TaskStatus{pending()}}
	p := NewPoller(f, nil, WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))

	var wg sync.WaitGroup
	attempts := make([]int, 4)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, _ := p.Poll(context.Background(), spec(domain.FeatureOCR, 5, time.Second), domain.TaskHandle{TaskID: "t"})
			attempts[i] = res.Attempts
		}(i)
	}
	wg.Wait()

	for i, n := range attempts {
		if n != 5 {
			t.Errorf("invocation %d attempts = %d, want 5", i, n)
		}
	}
	if f.Calls() != 20 {
		t.Errorf("total calls = %d, want 20", f.Calls())
	}
}
