package driftpoll

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

type fakeSource struct {
	caseIDs   []string
	baselines map[string]models.CaseBaseline
	appended  []models.RescanRecord
}

func (f *fakeSource) ListCaseIDs(ctx context.Context) ([]string, error) {
	return f.caseIDs, nil
}

func (f *fakeSource) GetCaseBaseline(ctx context.Context, caseID string) (models.CaseBaseline, error) {
	b, ok := f.baselines[caseID]
	if !ok {
		return models.CaseBaseline{}, models.ErrNotFound
	}
	return b, nil
}

func (f *fakeSource) AppendRescan(ctx context.Context, record models.RescanRecord) error {
	f.appended = append(f.appended, record)
	return nil
}

type fakeRescanner struct{}

func (fakeRescanner) RescanCase(ctx context.Context, baseline models.CaseBaseline) (models.RescanRecord, error) {
	return models.RescanRecord{CaseID: baseline.CaseID, Verdict: models.RescanStillSimilar}, nil
}

type fakeBroadcaster struct {
	messages [][]byte
}

func (f *fakeBroadcaster) Broadcast(payload []byte) {
	f.messages = append(f.messages, payload)
}

func TestPollOnceAppendsAndBroadcastsForEveryCase(t *testing.T) {
	source := &fakeSource{
		caseIDs: []string{"case-1", "case-2"},
		baselines: map[string]models.CaseBaseline{
			"case-1": {CaseID: "case-1"},
			"case-2": {CaseID: "case-2"},
		},
	}
	broadcaster := &fakeBroadcaster{}
	p := New(source, fakeRescanner{}, broadcaster, zap.NewNop(), time.Hour)

	p.pollOnce(context.Background())

	if len(source.appended) != 2 {
		t.Fatalf("expected 2 rescans appended, got %d", len(source.appended))
	}
	if len(broadcaster.messages) != 2 {
		t.Fatalf("expected 2 broadcast messages, got %d", len(broadcaster.messages))
	}
}

func TestPollOnceSkipsCaseWithMissingBaseline(t *testing.T) {
	source := &fakeSource{caseIDs: []string{"missing"}, baselines: map[string]models.CaseBaseline{}}
	broadcaster := &fakeBroadcaster{}
	p := New(source, fakeRescanner{}, broadcaster, zap.NewNop(), time.Hour)

	p.pollOnce(context.Background())

	if len(source.appended) != 0 {
		t.Fatalf("expected no rescans appended for missing baseline, got %d", len(source.appended))
	}
}

func TestPollOnceNilBroadcasterDoesNotPanic(t *testing.T) {
	source := &fakeSource{
		caseIDs:   []string{"case-1"},
		baselines: map[string]models.CaseBaseline{"case-1": {CaseID: "case-1"}},
	}
	p := New(source, fakeRescanner{}, nil, zap.NewNop(), time.Hour)
	p.pollOnce(context.Background())

	if len(source.appended) != 1 {
		t.Fatalf("expected rescan to be appended even without a broadcaster, got %d", len(source.appended))
	}
}
