package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"mempool-sentinel/internal/domain"
	"mempool-sentinel/internal/notify"
	"mempool-sentinel/internal/storage/memory"
)

// recordingNotifier counts deliveries and optionally fails.
type recordingNotifier struct {
	name string
	err  error

	mu    sync.Mutex
	seen  []*domain.Alert
	calls sync.WaitGroup
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Send(_ context.Context, a *domain.Alert) error {
	n.mu.Lock()
	n.seen = append(n.seen, a)
	n.mu.Unlock()
	n.calls.Done()
	return n.err
}

func (n *recordingNotifier) expect(count int) { n.calls.Add(count) }

func (n *recordingNotifier) wait(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		n.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notifier dispatches")
	}
}

// failingAlertStore always refuses inserts.
type failingAlertStore struct {
	memory.AlertStore
}

func (s *failingAlertStore) Insert(_ context.Context, _ *domain.Alert) error {
	return errors.New("disk full")
}

func samplePayload() Payload {
	return Payload{
		EventType:  domain.EventPendingLargeSwap,
		Severity:   70,
		USDValue:   60000,
		TxHash:     "0xfeed",
		RawContext: map[string]any{"kind": "swap_native_in"},
		IsWatched:  false,
		Summary:    "swap_native_in: 0xsender swaps in 30.0000 ETH (~$60000.00)",
	}
}

func TestPublish_PersistsAndDispatches(t *testing.T) {
	store := memory.NewAlertStore()
	archive := memory.NewAlertArchiveStore()
	notifier := &recordingNotifier{name: "test"}
	notifier.expect(1)

	s := New(Options{
		Chain:        "ethereum",
		AlertStore:   store,
		ArchiveStore: archive,
		Notifiers:    []notify.Notifier{notifier},
	})

	alert, err := s.Publish(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if alert.ID != 1 {
		t.Errorf("expected id 1, got %d", alert.ID)
	}
	if alert.Chain != "ethereum" {
		t.Errorf("expected chain stamped, got %q", alert.Chain)
	}
	if alert.RawContext["summary"] == "" || alert.RawContext["is_watched"] != false {
		t.Errorf("raw context not enriched: %+v", alert.RawContext)
	}

	notifier.wait(t)
	if len(notifier.seen) != 1 || notifier.seen[0].ID != alert.ID {
		t.Errorf("notifier did not receive the alert: %+v", notifier.seen)
	}

	count, err := store.Count(context.Background())
	if err != nil || count != 1 {
		t.Errorf("expected 1 stored alert, got %d (err %v)", count, err)
	}
}

func TestPublish_NotifierFailureIsSwallowed(t *testing.T) {
	store := memory.NewAlertStore()
	failing := &recordingNotifier{name: "broken", err: errors.New("channel down")}
	healthy := &recordingNotifier{name: "ok"}
	failing.expect(1)
	healthy.expect(1)

	s := New(Options{
		AlertStore: store,
		Notifiers:  []notify.Notifier{failing, healthy},
	})

	if _, err := s.Publish(context.Background(), samplePayload()); err != nil {
		t.Fatalf("Publish must not surface notifier errors: %v", err)
	}

	// The broken channel never blocks the healthy one.
	failing.wait(t)
	healthy.wait(t)
	if len(healthy.seen) != 1 {
		t.Errorf("healthy channel starved: %d deliveries", len(healthy.seen))
	}
}

func TestPublish_PersistenceFailureSurfaced(t *testing.T) {
	notifier := &recordingNotifier{name: "test"}

	s := New(Options{
		AlertStore: &failingAlertStore{},
		Notifiers:  []notify.Notifier{notifier},
	})

	if _, err := s.Publish(context.Background(), samplePayload()); err == nil {
		t.Fatal("expected persistence error")
	}

	// No fan-out happens for an alert that was never persisted.
	time.Sleep(50 * time.Millisecond)
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.seen) != 0 {
		t.Errorf("fan-out ran despite persistence failure: %+v", notifier.seen)
	}
}

func TestPublish_ConcurrentIDsStrictlyIncreasing(t *testing.T) {
	const runs = 50

	store := memory.NewAlertStore()
	s := New(Options{AlertStore: store})

	var mu sync.Mutex
	ids := make([]int64, 0, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := samplePayload()
			p.TxHash = fmt.Sprintf("0x%04x", i)
			alert, err := s.Publish(context.Background(), p)
			if err != nil {
				t.Errorf("Publish %d: %v", i, err)
				return
			}
			mu.Lock()
			ids = append(ids, alert.ID)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(ids) != runs {
		t.Fatalf("expected %d alerts, got %d", runs, len(ids))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			t.Fatalf("duplicate alert id %d", ids[i])
		}
	}
}
