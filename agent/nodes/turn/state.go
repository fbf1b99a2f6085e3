// Package turnnode holds the graph nodes of the conversation turn pipeline.
// Each node is a plain function over GraphState so the orchestrator graph
// stays a thin wiring layer and every step is testable on its own.
package turnnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidSubject = errors.New("subject id is empty")
	ErrInvalidRole    = errors.New("role is not recognised")
	ErrInvalidTier    = errors.New("tier is not recognised")
)

type GraphInput struct {
	Identity contractx.IdentityContext
	Text     string
	TurnSeq  int
	TraceID  string
}

type GraphOutput struct {
	Result contractx.TurnResult
}

type GraphState struct {
	Identity contractx.IdentityContext
	Text     string
	Now      time.Time
	TurnSeq  int
	TraceID  string

	Manifest []contractx.CapabilityDescriptor
	History  []contractx.TranscriptEntry

	Decision   contractx.Decision
	ToolResult *contractx.CapabilityResult
	Executed   bool

	Reply        string
	FallbackUsed bool
	Persisted    bool
}

// ValidateRequest normalises and checks one incoming turn. Executives carry
// no tier; a client may present no tier at all, which scopes them to the
// base capability set.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	subjectID := strings.TrimSpace(in.Identity.SubjectID)
	if subjectID == "" {
		return nil, ErrInvalidSubject
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	identity := in.Identity
	identity.SubjectID = subjectID

	switch identity.Role {
	case contractx.RoleExecutive:
		identity.Tier = contractx.TierNone
	case contractx.RoleClient:
		switch identity.Tier {
		case contractx.TierNone, contractx.TierNormal, contractx.TierPremium:
		default:
			return nil, ErrInvalidTier
		}
	default:
		return nil, ErrInvalidRole
	}

	return &GraphState{
		Identity:  identity,
		Text:      text,
		Now:       nowFn().UTC(),
		TurnSeq:   in.TurnSeq,
		TraceID:   in.TraceID,
		Persisted: true,
	}, nil
}
