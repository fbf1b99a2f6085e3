// Package audit keeps the most recent invocation rationale per subject.
//
// The trail answers "why did the agent just do that" for an observer panel
// without paying full transcript retrieval cost. It is written only by the
// orchestration loop, as the last step of a turn, so the stored rationale
// always reflects what actually happened rather than the raw plan.
package audit

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// MemoryTrail is the in-process trail. Records are created on a subject's
// first turn, overwritten every turn, and never evicted within the process
// lifetime.
type MemoryTrail struct {
	mu     sync.RWMutex
	latest map[string]contractx.AuditRecord
}

func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{latest: make(map[string]contractx.AuditRecord)}
}

func (t *MemoryTrail) Record(_ context.Context, rec contractx.AuditRecord) error {
	if rec.SubjectID == "" {
		return fmt.Errorf("%w: subject id is empty", contractx.ErrValidation)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest[rec.SubjectID] = rec
	return nil
}

func (t *MemoryTrail) Latest(_ context.Context, subjectID string) (contractx.AuditRecord, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.latest[subjectID]
	return rec, ok, nil
}

var _ contractx.Trail = (*MemoryTrail)(nil)
