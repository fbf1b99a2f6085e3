// Package transcript persists the append-only dual-stream turn history.
//
// Every completed turn appends one ordered batch of entries: the light
// stream keeps user/assistant messages for cheap UI replay, the complete
// stream adds tool-call, tool-result and rationale entries for audit. An
// appended batch is atomic per stream per turn; entries are never mutated.
package transcript

import (
	"context"
	"fmt"
	"sync"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

func streamKey(role contractx.Role, subjectID string, stream contractx.Stream) string {
	return string(role) + "\x00" + subjectID + "\x00" + string(stream)
}

// filterForStream drops entries that do not belong in the given stream.
func filterForStream(entries []contractx.TranscriptEntry, stream contractx.Stream) []contractx.TranscriptEntry {
	if stream == contractx.StreamComplete {
		return entries
	}
	out := make([]contractx.TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind.InLightStream() {
			out = append(out, e)
		}
	}
	return out
}

func validateBatch(subjectID string, entries []contractx.TranscriptEntry) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is empty", contractx.ErrValidation)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: empty entry batch", contractx.ErrValidation)
	}
	for _, e := range entries {
		if e.SubjectID != subjectID {
			return fmt.Errorf("%w: entry subject %q does not match %q", contractx.ErrValidation, e.SubjectID, subjectID)
		}
	}
	return nil
}

// MemoryStore keeps streams in process memory. Used by tests and as a
// fallback when no durable backend is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]contractx.TranscriptEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]contractx.TranscriptEntry)}
}

func (s *MemoryStore) Append(_ context.Context, role contractx.Role, subjectID string, entries []contractx.TranscriptEntry) error {
	if err := validateBatch(subjectID, entries); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stream := range []contractx.Stream{contractx.StreamLight, contractx.StreamComplete} {
		key := streamKey(role, subjectID, stream)
		s.streams[key] = append(s.streams[key], filterForStream(entries, stream)...)
	}
	return nil
}

func (s *MemoryStore) ReadAll(_ context.Context, role contractx.Role, subjectID string, stream contractx.Stream) ([]contractx.TranscriptEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.streams[streamKey(role, subjectID, stream)]
	out := make([]contractx.TranscriptEntry, len(src))
	copy(out, src)
	return out, nil
}

var _ contractx.TranscriptStore = (*MemoryStore)(nil)
