package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pagewatch/internal/fetch"
	"pagewatch/pkg/logx"
)

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Notify(_ context.Context, text string) {
	f.mu.Lock()
	f.msgs = append(f.msgs, text)
	f.mu.Unlock()
}

func (f *fakeNotifier) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type fakeState struct {
	initial map[string]Observation
	saves   int
	last    map[string]Observation
}

func (f *fakeState) Load() map[string]Observation {
	if f.initial == nil {
		return map[string]Observation{}
	}
	return f.initial
}

func (f *fakeState) Save(m map[string]Observation) error {
	f.saves++
	f.last = make(map[string]Observation, len(m))
	for k, v := range m {
		f.last[k] = v
	}
	return nil
}

type fakeEvidence struct {
	calls int
	err   error
}

func (f *fakeEvidence) Take(context.Context, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/evidence.png", nil
}

type fakeHistory struct {
	records int
	alerts  int
}

func (f *fakeHistory) Record(_ context.Context, _ string, _ Observation, alerted bool) error {
	f.records++
	if alerted {
		f.alerts++
	}
	return nil
}

type fakeHeartbeat struct{ beats int }

func (f *fakeHeartbeat) Beat() error {
	f.beats++
	return nil
}

// scriptedFetcher returns the snapshot text for the Nth fetch of each URL.
func scriptedFetcher(script map[string][]string) fetch.Fetcher {
	var mu sync.Mutex
	counts := map[string]int{}
	return fetch.FetcherFunc(func(_ context.Context, url string) (fetch.Snapshot, error) {
		mu.Lock()
		defer mu.Unlock()
		texts := script[url]
		i := counts[url]
		counts[url]++
		if i >= len(texts) {
			i = len(texts) - 1
		}
		return fetch.Snapshot{Text: texts[i], FetchedAt: time.Now().UTC()}, nil
	})
}

type testRig struct {
	sched     *Scheduler
	notifier  *fakeNotifier
	state     *fakeState
	evidence  *fakeEvidence
	history   *fakeHistory
	heartbeat *fakeHeartbeat
}

func newTestRig(targets []Target, fetcher fetch.Fetcher, ticks int) *testRig {
	rig := &testRig{
		notifier:  &fakeNotifier{},
		state:     &fakeState{},
		evidence:  &fakeEvidence{},
		history:   &fakeHistory{},
		heartbeat: &fakeHeartbeat{},
	}
	rig.sched = NewScheduler(SchedulerConfig{
		Targets:        targets,
		PollInterval:   time.Minute,
		DigestInterval: 12 * time.Hour,
		Fetcher:        fetcher,
		Notifier:       rig.notifier,
		Evidence:       rig.evidence,
		State:          rig.state,
		History:        rig.history,
		Heartbeat:      rig.heartbeat,
		Logger:         logx.Nop(),
	})

	n := 0
	rig.sched.sleep = func(context.Context, time.Duration) error {
		n++
		if n >= ticks {
			return context.Canceled
		}
		return nil
	}
	return rig
}

func TestSchedulerBaselineThenAlert(t *testing.T) {
	target := Target{URL: "https://shop.test", DisappearTexts: []string{"sold out"}, Note: "Shop"}
	fetcher := scriptedFetcher(map[string][]string{
		"https://shop.test": {"everything sold out today", "tickets on sale"},
	})
	rig := newTestRig([]Target{target}, fetcher, 2)

	err := rig.sched.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	msgs := rig.notifier.messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d notifications, want startup + alert: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "started") {
		t.Fatalf("first notification should be the startup message, got %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "'sold out' gone") {
		t.Fatalf("alert message = %q", msgs[1])
	}
	if rig.evidence.calls != 1 {
		t.Fatalf("evidence calls = %d, want 1", rig.evidence.calls)
	}
	if rig.state.saves != 2 {
		t.Fatalf("state saves = %d, want one per successful evaluation", rig.state.saves)
	}
	if rig.history.alerts != 1 {
		t.Fatalf("history alerts = %d, want 1", rig.history.alerts)
	}
	if got := rig.state.last["https://shop.test"]; len(got.FoundDisappear) != 0 {
		t.Fatalf("persisted observation = %+v, want empty found_disappear", got)
	}
}

func TestSchedulerFirstObservationNeverAlerts(t *testing.T) {
	target := Target{URL: "https://a.test", AppearTexts: []string{"Buy now"}}
	fetcher := scriptedFetcher(map[string][]string{
		"https://a.test": {"Buy now while stocks last"},
	})
	rig := newTestRig([]Target{target}, fetcher, 1)

	_ = rig.sched.Run(context.Background())

	if rig.evidence.calls != 0 {
		t.Fatalf("baseline must not capture evidence")
	}
	if msgs := rig.notifier.messages(); len(msgs) != 1 {
		t.Fatalf("baseline must not alert, notifications: %q", msgs)
	}
	if rig.state.saves != 1 {
		t.Fatalf("baseline must persist, saves = %d", rig.state.saves)
	}
}

func TestSchedulerFetchFailureSkipsTarget(t *testing.T) {
	ok := Target{URL: "https://ok.test", DisappearTexts: []string{"gone"}}
	bad := Target{URL: "https://bad.test", DisappearTexts: []string{"gone"}}

	fetcher := fetch.FetcherFunc(func(_ context.Context, url string) (fetch.Snapshot, error) {
		if url == "https://bad.test" {
			return fetch.Snapshot{}, &fetch.Failure{Class: fetch.ClassTransport, Err: errors.New("connection refused")}
		}
		return fetch.Snapshot{Text: "gone", FetchedAt: time.Now()}, nil
	})
	rig := newTestRig([]Target{bad, ok}, fetcher, 1)

	err := rig.sched.Run(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}

	// The failing target must not abort the pass: the healthy one persisted.
	if rig.state.saves != 1 {
		t.Fatalf("saves = %d, want 1 (healthy target only)", rig.state.saves)
	}
	if _, exists := rig.state.last["https://bad.test"]; exists {
		t.Fatalf("failed target's state must not advance")
	}
	if rig.heartbeat.beats != 1 {
		t.Fatalf("heartbeat must still refresh after the pass, beats = %d", rig.heartbeat.beats)
	}
}

func TestSchedulerEvidenceFailureDoesNotSuppressAlert(t *testing.T) {
	target := Target{URL: "https://shop.test", DisappearTexts: []string{"sold out"}}
	fetcher := scriptedFetcher(map[string][]string{
		"https://shop.test": {"sold out", "available"},
	})
	rig := newTestRig([]Target{target}, fetcher, 2)
	rig.evidence.err = errors.New("screenshot failed")

	_ = rig.sched.Run(context.Background())

	msgs := rig.notifier.messages()
	if len(msgs) != 2 {
		t.Fatalf("alert must still be sent when evidence fails, got %q", msgs)
	}
}

func TestSchedulerDigest(t *testing.T) {
	target := Target{URL: "https://a.test", AppearTexts: []string{"x"}}
	fetcher := scriptedFetcher(map[string][]string{"https://a.test": {""}})
	rig := newTestRig([]Target{target}, fetcher, 2)

	// Pin time so the second pass crosses the digest interval.
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	calls := 0
	rig.sched.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 7 * time.Hour)
	}

	_ = rig.sched.Run(context.Background())

	var digests int
	for _, m := range rig.notifier.messages() {
		if strings.Contains(m, "Monitor status: running") {
			digests++
		}
	}
	if digests == 0 {
		t.Fatalf("expected a periodic digest, notifications: %q", rig.notifier.messages())
	}
}

func TestSchedulerAppliesTargetUpdates(t *testing.T) {
	first := Target{URL: "https://a.test", AppearTexts: []string{"x"}}
	second := Target{URL: "https://b.test", AppearTexts: []string{"y"}}

	var mu sync.Mutex
	fetched := map[string]int{}
	fetcher := fetch.FetcherFunc(func(_ context.Context, url string) (fetch.Snapshot, error) {
		mu.Lock()
		fetched[url]++
		mu.Unlock()
		return fetch.Snapshot{Text: "", FetchedAt: time.Now()}, nil
	})

	updates := make(chan []Target, 1)
	rig := newTestRig([]Target{first}, fetcher, 2)
	rig.sched.cfg.TargetUpdates = updates

	// Swap the list after the first pass.
	n := 0
	rig.sched.sleep = func(context.Context, time.Duration) error {
		n++
		if n == 1 {
			updates <- []Target{second}
			return nil
		}
		return context.Canceled
	}

	_ = rig.sched.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if fetched["https://a.test"] != 1 || fetched["https://b.test"] != 1 {
		t.Fatalf("fetch counts = %v, want a.test once then b.test once", fetched)
	}
}

func TestSchedulerStateCarriesAcrossRestart(t *testing.T) {
	target := Target{URL: "https://shop.test", DisappearTexts: []string{"sold out"}}

	prev := Observation{
		Timestamp:      time.Now().Add(-time.Hour),
		FoundDisappear: []string{"sold out"},
		FoundAppear:    []string{},
	}
	fetcher := scriptedFetcher(map[string][]string{"https://shop.test": {"available"}})
	rig := newTestRig([]Target{target}, fetcher, 1)
	rig.state.initial = map[string]Observation{"https://shop.test": prev}

	_ = rig.sched.Run(context.Background())

	// Loaded state means the very first pass can alert.
	msgs := rig.notifier.messages()
	if len(msgs) != 2 {
		t.Fatalf("expected startup + alert from persisted previous state, got %q", msgs)
	}
}
