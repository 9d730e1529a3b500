// Package audit records execute and analyze decisions in the run journal.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/fentz26/ccgateway/internal/logging"
	"github.com/fentz26/ccgateway/internal/models"
	"github.com/fentz26/ccgateway/internal/store"
)

// Recorder writes Process Decision Records and run entries. A nil Recorder,
// or one built without a store, records nothing.
type Recorder struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRecorder creates a recorder backed by s. s may be nil.
func NewRecorder(s *store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, logger: logging.Component(logger, "audit")}
}

// Enabled reports whether entries are persisted.
func (r *Recorder) Enabled() bool {
	return r != nil && r.store != nil
}

// Record writes a PDR entry for a decision. Failures are logged, not returned,
// so the journal never affects request outcomes.
func (r *Recorder) Record(action string, inputs interface{}, outcome, taskID, details string) *models.PDREntry {
	if !r.Enabled() {
		return nil
	}
	entry, err := r.store.WritePDR(action, hashInputs(inputs), outcome, taskID, details)
	if err != nil {
		r.logger.Error("write pdr failed", "action", action, "error", err)
		return nil
	}
	return entry
}

// RecordRun appends a finished invocation of the external binary.
func (r *Recorder) RecordRun(ctx context.Context, run *models.Run) {
	if !r.Enabled() {
		return
	}
	if err := r.store.InsertRun(ctx, run); err != nil {
		r.logger.Error("write run failed", "command", run.Command, "error", err)
	}
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
