package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vigil-labs/launcher/internal/history"
)

// Sink indexes events into OpenSearch (or Elasticsearch) over its REST API.
// Documents are POSTed to baseURL/index/_doc.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

type document struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"@timestamp"`
	Role       string    `json:"role"`
	RunID      string    `json:"run_id"`
	PID        int       `json:"pid"`
	State      string    `json:"state"`
	Message    string    `json:"message"`
	ExitCode   *int      `json:"exit_code,omitempty"`
}

func New(baseURL, index string) *Sink {
	if index == "" {
		index = "daemon-history"
	}
	return &Sink{
		client:  &http.Client{Timeout: 5 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		index:   index,
	}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	doc := document{
		Type:       string(e.Type),
		OccurredAt: e.OccurredAt.UTC(),
		Role:       e.Record.Role,
		RunID:      e.Record.RunID,
		PID:        e.Record.PID,
		State:      e.Record.State,
		Message:    e.Record.Message,
		ExitCode:   e.Record.ExitCode,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}
