package costs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database/models"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/telephony"
)

// fakeFetcher returns a sequence of cost results, one per call.
type fakeFetcher struct {
	mu      sync.Mutex
	results []telephony.CallCost
	errs    []error
	calls   int
}

func (f *fakeFetcher) GetCallCost(_ context.Context, _ string) (telephony.CallCost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.results[i], err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// costCallRepo implements just enough of CallRepository for reconciliation.
type costCallRepo struct {
	mu   sync.Mutex
	call *models.Call
}

func (r *costCallRepo) Create(_ context.Context, _ *models.Call) error {
	return errors.New("not implemented")
}

func (r *costCallRepo) GetByID(_ context.Context, _ int64) (*models.Call, error) {
	return nil, errors.New("not implemented")
}

func (r *costCallRepo) GetByPublicID(_ context.Context, _ string) (*models.Call, error) {
	return nil, errors.New("not implemented")
}

func (r *costCallRepo) GetByProviderCallID(_ context.Context, providerCallID string) (*models.Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.call != nil && r.call.ProviderCallID == providerCallID {
		return r.call, nil
	}
	return nil, nil
}

func (r *costCallRepo) List(_ context.Context, _ database.CallListFilter) ([]models.Call, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (r *costCallRepo) UpdateRoutingStatus(_ context.Context, _ int64, _ string) error {
	return errors.New("not implemented")
}

func (r *costCallRepo) UpdateData(_ context.Context, id int64, data string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.call == nil || r.call.ID != id {
		return errors.New("call not found")
	}
	r.call.Data = data
	return nil
}

func (r *costCallRepo) CountByRoutingStatus(_ context.Context) (map[string]int64, error) {
	return nil, errors.New("not implemented")
}

func (r *costCallRepo) AppendEvent(_ context.Context, _ *models.CallEvent) error {
	return errors.New("not implemented")
}

func (r *costCallRepo) ListEvents(_ context.Context, _ int64) ([]models.CallEvent, error) {
	return nil, errors.New("not implemented")
}

func (r *costCallRepo) HasEvent(_ context.Context, _ int64, _ string) (bool, error) {
	return false, errors.New("not implemented")
}

func (r *costCallRepo) data() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.call.Data
}

func newTestReconciler(repo *costCallRepo, fetcher *fakeFetcher) *Reconciler {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewReconciler(repo, fetcher, logger)
	r.retryDelay = 10 * time.Millisecond
	return r
}

func TestReconcileSettledCost(t *testing.T) {
	repo := &costCallRepo{call: &models.Call{ID: 1, ProviderCallID: "CA100", Data: "{}"}}
	fetcher := &fakeFetcher{results: []telephony.CallCost{{Price: "-0.0085", PriceUnit: "USD"}}}

	r := newTestReconciler(repo, fetcher)
	r.RecordCompletedCall("CA100")
	r.Wait()

	if fetcher.callCount() != 1 {
		t.Errorf("fetch count = %d, want 1", fetcher.callCount())
	}

	var payload struct {
		Costs []struct {
			Type     string  `json:"type"`
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
		} `json:"costs"`
	}
	if err := json.Unmarshal([]byte(repo.data()), &payload); err != nil {
		t.Fatalf("merged data is not valid JSON: %v", err)
	}
	if len(payload.Costs) != 1 {
		t.Fatalf("costs = %+v, want one entry", payload.Costs)
	}
	if payload.Costs[0].Type != "twilio" || payload.Costs[0].Amount != -0.0085 || payload.Costs[0].Currency != "USD" {
		t.Errorf("unexpected cost entry: %+v", payload.Costs[0])
	}
}

func TestReconcilePendingBillingRetriesOnce(t *testing.T) {
	repo := &costCallRepo{call: &models.Call{ID: 1, ProviderCallID: "CA101", Data: "{}"}}
	fetcher := &fakeFetcher{results: []telephony.CallCost{
		{Price: "", PriceUnit: "USD"},
		{Price: "-0.0100", PriceUnit: "USD"},
	}}

	r := newTestReconciler(repo, fetcher)
	r.RecordCompletedCall("CA101")
	r.Wait()

	if fetcher.callCount() != 2 {
		t.Errorf("fetch count = %d, want 2", fetcher.callCount())
	}
	if !strings.Contains(repo.data(), `"costs"`) {
		t.Errorf("expected merged costs after retry, data = %s", repo.data())
	}
}

func TestReconcileGivesUpAfterSecondPending(t *testing.T) {
	repo := &costCallRepo{call: &models.Call{ID: 1, ProviderCallID: "CA102", Data: "{}"}}
	fetcher := &fakeFetcher{results: []telephony.CallCost{{Price: ""}}}

	r := newTestReconciler(repo, fetcher)
	r.RecordCompletedCall("CA102")
	r.Wait()

	if fetcher.callCount() != 2 {
		t.Errorf("fetch count = %d, want 2", fetcher.callCount())
	}
	if repo.data() != "{}" {
		t.Errorf("data should be untouched when billing never settles, got %s", repo.data())
	}
}

func TestReconcileFetchErrorLeavesDataUntouched(t *testing.T) {
	repo := &costCallRepo{call: &models.Call{ID: 1, ProviderCallID: "CA103", Data: "{}"}}
	fetcher := &fakeFetcher{
		results: []telephony.CallCost{{}},
		errs:    []error{errors.New("provider returned status 500")},
	}

	r := newTestReconciler(repo, fetcher)
	r.RecordCompletedCall("CA103")
	r.Wait()

	if repo.data() != "{}" {
		t.Errorf("data should be untouched on fetch error, got %s", repo.data())
	}
}

func TestMergeCost(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		cost        telephony.CallCost
		wantChanged bool
		wantErr     bool
		contains    []string
	}{
		{
			name:        "empty data",
			data:        "",
			cost:        telephony.CallCost{Price: "-0.0085", PriceUnit: "USD"},
			wantChanged: true,
			contains:    []string{`"type":"twilio"`, `"amount":-0.0085`, `"currency":"USD"`},
		},
		{
			name:        "preserves vendor fields",
			data:        `{"transcript":"hello","costs":[{"type":"vendor","amount":0.02,"currency":"USD"}]}`,
			cost:        telephony.CallCost{Price: "-0.0085", PriceUnit: "USD"},
			wantChanged: true,
			contains:    []string{`"transcript":"hello"`, `"type":"vendor"`, `"type":"twilio"`},
		},
		{
			name:        "dedupes by type",
			data:        `{"costs":[{"type":"twilio","amount":-0.0085,"currency":"USD"}]}`,
			cost:        telephony.CallCost{Price: "-0.0085", PriceUnit: "USD"},
			wantChanged: false,
		},
		{
			name:    "unparseable price",
			data:    "{}",
			cost:    telephony.CallCost{Price: "not-a-number", PriceUnit: "USD"},
			wantErr: true,
		},
		{
			name:    "corrupt data",
			data:    "not json",
			cost:    telephony.CallCost{Price: "-0.0085", PriceUnit: "USD"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, changed, err := MergeCost(tt.data, tt.cost)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MergeCost() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if changed != tt.wantChanged {
				t.Errorf("MergeCost() changed = %v, want %v", changed, tt.wantChanged)
			}
			for _, want := range tt.contains {
				if !strings.Contains(merged, want) {
					t.Errorf("merged data missing %q:\n%s", want, merged)
				}
			}
		})
	}
}
