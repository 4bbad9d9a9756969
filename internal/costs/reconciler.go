// Package costs reconciles the telephony provider's billed cost for finished
// calls into the call record, outside the webhook request/response lifecycle.
package costs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/liam123-dot/clearskyai-prod-sub001/internal/database"
	"github.com/liam123-dot/clearskyai-prod-sub001/internal/telephony"
)

// costEntryType identifies provider-billed entries in the call's costs array.
const costEntryType = "twilio"

// CostFetcher fetches the provider's billed price for a call.
type CostFetcher interface {
	GetCallCost(ctx context.Context, callSID string) (telephony.CallCost, error)
}

// Reconciler fetches call costs in the background and merges them into the
// call's opaque data payload. Failures are logged only; reconciliation never
// affects the webhook response that triggered it.
type Reconciler struct {
	calls   database.CallRepository
	fetcher CostFetcher
	logger  *slog.Logger

	// retryDelay is how long to wait before the single retry when the
	// provider has not settled billing yet. Overridable for tests.
	retryDelay time.Duration

	wg sync.WaitGroup
}

// NewReconciler creates a cost reconciler.
func NewReconciler(calls database.CallRepository, fetcher CostFetcher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		calls:      calls,
		fetcher:    fetcher,
		logger:     logger.With("component", "cost_reconciler"),
		retryDelay: 30 * time.Second,
	}
}

// RecordCompletedCall schedules cost reconciliation for the call and returns
// immediately. Satisfies routing.CostRecorder.
func (r *Reconciler) RecordCompletedCall(providerCallID string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconcile(providerCallID)
	}()
}

// Wait blocks until all in-flight reconciliations finish. Used on shutdown.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) reconcile(providerCallID string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.retryDelay+time.Minute)
	defer cancel()

	log := r.logger.With("provider_call_id", providerCallID)

	cost, err := r.fetcher.GetCallCost(ctx, providerCallID)
	if err != nil {
		log.Error("cost fetch failed", "error", err)
		return
	}

	// Billing often settles a little after the call ends; wait once and retry.
	if cost.Price == "" {
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return
		}
		cost, err = r.fetcher.GetCallCost(ctx, providerCallID)
		if err != nil {
			log.Error("cost fetch retry failed", "error", err)
			return
		}
		if cost.Price == "" {
			log.Warn("call cost not available after retry, giving up")
			return
		}
	}

	call, err := r.calls.GetByProviderCallID(ctx, providerCallID)
	if err != nil {
		log.Error("call lookup failed", "error", err)
		return
	}
	if call == nil {
		log.Warn("call record not found for cost reconciliation")
		return
	}

	merged, changed, err := MergeCost(call.Data, cost)
	if err != nil {
		log.Error("cost merge failed", "error", err)
		return
	}
	if !changed {
		log.Debug("provider cost already recorded")
		return
	}

	if err := r.calls.UpdateData(ctx, call.ID, merged); err != nil {
		log.Error("call data update failed", "error", err)
		return
	}

	log.Info("call cost reconciled", "price", cost.Price, "currency", cost.PriceUnit)
}

// MergeCost merges the provider cost into the call's data JSON, appending to
// the costs array and deduplicating by entry type. Returns the merged JSON
// and whether anything changed.
func MergeCost(data string, cost telephony.CallCost) (string, bool, error) {
	if data == "" {
		data = "{}"
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return "", false, err
	}

	type costEntry struct {
		Type     string  `json:"type"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	}

	var entries []costEntry
	if raw, ok := payload["costs"]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return "", false, err
		}
	}

	for _, e := range entries {
		if e.Type == costEntryType {
			return data, false, nil
		}
	}

	amount, err := strconv.ParseFloat(cost.Price, 64)
	if err != nil {
		return "", false, err
	}

	entries = append(entries, costEntry{
		Type:     costEntryType,
		Amount:   amount,
		Currency: cost.PriceUnit,
	})

	rawEntries, err := json.Marshal(entries)
	if err != nil {
		return "", false, err
	}
	payload["costs"] = rawEntries

	merged, err := json.Marshal(payload)
	if err != nil {
		return "", false, err
	}
	return string(merged), true, nil
}
