// Package orchestrator runs the conversation loop: one HandleTurn call per
// user message, serialised per subject, with the capability gate between the
// reasoning engine and anything that executes.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/finsight-labs/finsight/agent/contract"
	gatex "github.com/finsight-labs/finsight/agent/gate"
	nodex "github.com/finsight-labs/finsight/agent/nodes/turn"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidMessage = nodex.ErrInvalidMessage
	ErrInvalidSubject = nodex.ErrInvalidSubject
	ErrInvalidRole    = nodex.ErrInvalidRole
	ErrInvalidTier    = nodex.ErrInvalidTier
)

const (
	defaultReasoningTimeout  = 30 * time.Second
	defaultCapabilityTimeout = 10 * time.Second
)

type Config struct {
	ReasoningTimeout  time.Duration
	CapabilityTimeout time.Duration
}

type Service struct {
	gate     *gatex.Gate
	engine   contractx.ReasoningEngine
	executor contractx.Executor
	trail    contractx.Trail
	store    contractx.TranscriptStore
	log      zerolog.Logger

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	reasoningTimeout  time.Duration
	capabilityTimeout time.Duration

	mu       sync.Mutex
	subjects map[string]*subjectState

	now        func() time.Time
	newTraceID func() string
}

// subjectState serialises turns per subject. Concurrent HandleTurn calls for
// the same subject queue; different subjects proceed in parallel.
type subjectState struct {
	mu  sync.Mutex
	seq int
}

func New(
	gate *gatex.Gate,
	engine contractx.ReasoningEngine,
	executor contractx.Executor,
	trail contractx.Trail,
	store contractx.TranscriptStore,
	log zerolog.Logger,
	cfg Config,
) (*Service, error) {
	if gate == nil {
		return nil, errors.New("capability gate is required")
	}
	if engine == nil {
		return nil, errors.New("reasoning engine is required")
	}
	if executor == nil {
		return nil, errors.New("capability executor is required")
	}
	if trail == nil {
		return nil, errors.New("rationale trail is required")
	}
	if store == nil {
		return nil, errors.New("transcript store is required")
	}

	reasoningTimeout := cfg.ReasoningTimeout
	if reasoningTimeout <= 0 {
		reasoningTimeout = defaultReasoningTimeout
	}
	capabilityTimeout := cfg.CapabilityTimeout
	if capabilityTimeout <= 0 {
		capabilityTimeout = defaultCapabilityTimeout
	}

	s := &Service{
		gate:              gate,
		engine:            engine,
		executor:          executor,
		trail:             trail,
		store:             store,
		log:               log,
		reasoningTimeout:  reasoningTimeout,
		capabilityTimeout: capabilityTimeout,
		subjects:          make(map[string]*subjectState),
		now:               time.Now,
		newTraceID:        uuid.NewString,
	}

	graphRunner, err := s.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	s.graphRunner = graphRunner

	return s, nil
}

// HandleTurn processes one user message end to end and returns the reply.
// Turn sequence numbers are only consumed by turns that complete.
func (s *Service) HandleTurn(ctx context.Context, identity contractx.IdentityContext, text string) (contractx.TurnResult, error) {
	subject := s.subject(identity.SubjectID)
	subject.mu.Lock()
	defer subject.mu.Unlock()

	seq := subject.seq + 1
	traceID := s.newTraceID()
	started := s.now()

	out, err := s.graphRunner.Invoke(ctx, nodex.GraphInput{
		Identity: identity,
		Text:     text,
		TurnSeq:  seq,
		TraceID:  traceID,
	})
	if err != nil {
		s.log.Error().
			Err(err).
			Str("subject_id", identity.SubjectID).
			Str("trace_id", traceID).
			Msg("turn failed")
		return contractx.TurnResult{}, err
	}
	subject.seq = seq

	s.log.Info().
		Str("subject_id", identity.SubjectID).
		Str("role", string(identity.Role)).
		Str("trace_id", traceID).
		Int("turn_seq", out.Result.TurnSeq).
		Str("capability", out.Result.Capability).
		Bool("persisted", out.Result.Persisted).
		Dur("elapsed", s.now().Sub(started)).
		Msg("turn completed")

	return out.Result, nil
}

// LatestRationale exposes the most recent capability rationale for a subject.
func (s *Service) LatestRationale(ctx context.Context, subjectID string) (contractx.AuditRecord, bool, error) {
	return s.trail.Latest(ctx, subjectID)
}

// History reads one of the two transcript streams for an identity.
func (s *Service) History(ctx context.Context, identity contractx.IdentityContext, stream contractx.Stream) ([]contractx.TranscriptEntry, error) {
	return s.store.ReadAll(ctx, identity.Role, identity.SubjectID, stream)
}

// Manifest lists the capabilities the identity is allowed to use.
func (s *Service) Manifest(identity contractx.IdentityContext) []contractx.CapabilityDescriptor {
	return s.gate.Allowed(identity)
}

func (s *Service) subject(subjectID string) *subjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.subjects[subjectID]
	if !ok {
		st = &subjectState{}
		s.subjects[subjectID] = st
	}
	return st
}
