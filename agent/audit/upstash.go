package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

const (
	defaultTrailKeyPrefix = "finsight:why:"
	maxResponseSizeBytes  = 1 << 20
)

// UpstashTrail stores the latest rationale per subject in Upstash Redis via
// its REST endpoint, for deployments where the WHY panel is served by a
// different process than the orchestrator.
type UpstashTrail struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
}

type UpstashConfig struct {
	URL     string        `envconfig:"URL" split_words:"true" required:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true" required:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

type TrailOption func(*UpstashTrail)

func WithKeyPrefix(prefix string) TrailOption {
	return func(t *UpstashTrail) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			t.keyPrefix = trimmed
		}
	}
}

func WithHTTPClient(client *http.Client) TrailOption {
	return func(t *UpstashTrail) {
		if client != nil {
			t.httpClient = client
		}
	}
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashTrail(cfg UpstashConfig, opts ...TrailOption) (*UpstashTrail, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	trail := &UpstashTrail{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultTrailKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(trail)
		}
	}
	return trail, nil
}

func (t *UpstashTrail) Record(ctx context.Context, rec contractx.AuditRecord) error {
	if strings.TrimSpace(rec.SubjectID) == "" {
		return errors.New("audit: subject id is empty")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := t.exec(ctx, []any{"SET", t.key(rec.SubjectID), string(payload)}); err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrPersistence, err)
	}
	return nil
}

func (t *UpstashTrail) Latest(ctx context.Context, subjectID string) (contractx.AuditRecord, bool, error) {
	resp, err := t.exec(ctx, []any{"GET", t.key(subjectID)})
	if err != nil {
		return contractx.AuditRecord{}, false, fmt.Errorf("%w: %v", contractx.ErrPersistence, err)
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return contractx.AuditRecord{}, false, nil
	}

	var encoded string
	if err := json.Unmarshal(result, &encoded); err != nil {
		return contractx.AuditRecord{}, false, fmt.Errorf("decode audit payload: %w", err)
	}
	var rec contractx.AuditRecord
	if err := json.Unmarshal([]byte(encoded), &rec); err != nil {
		return contractx.AuditRecord{}, false, fmt.Errorf("unmarshal audit record: %w", err)
	}
	return rec, true, nil
}

func (t *UpstashTrail) key(subjectID string) string {
	return t.keyPrefix + subjectID
}

func (t *UpstashTrail) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

var _ contractx.Trail = (*UpstashTrail)(nil)
