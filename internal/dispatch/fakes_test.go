package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type fakeTransport struct {
	mu     sync.Mutex
	failOn map[string]error
	sent   []Envelope
	delay  time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, env Envelope) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[env.To]; ok {
		return "", err
	}
	f.sent = append(f.sent, env)
	return fmt.Sprintf("msg-%s", env.To), nil
}

func (f *fakeTransport) envelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.sent...)
}

type fakeStore struct {
	mu        sync.Mutex
	records   []TrackingRecord
	stats     map[string]CampaignStats
	recordErr error
	statsErr  error
}

func (f *fakeStore) CreateTrackingRecord(ctx context.Context, rec TrackingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStore) UpdateCampaignStats(ctx context.Context, campaignID string, st CampaignStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return f.statsErr
	}
	if f.stats == nil {
		f.stats = map[string]CampaignStats{}
	}
	f.stats[campaignID] = st
	return nil
}

type noLimit struct{}

func (noLimit) Wait(ctx context.Context) error { return ctx.Err() }

var errProvider = errors.New("provider rejected recipient")

func sequentialID() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("trk-%d", n)
	}
}

func newTestInstrumenter(store TrackingStore) *Instrumenter {
	in := NewInstrumenter("https://site.example/", store, zap.NewNop().Sugar())
	in.newID = sequentialID()
	in.now = func() time.Time { return time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC) }
	return in
}
