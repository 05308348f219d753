package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/techthiyanes/langtest/sample"
)

// RemoteOptions configures a Remote adapter.
type RemoteOptions struct {
	// URL is the prediction endpoint. The adapter POSTs one JSON
	// request per input and expects a JSON response.
	URL string

	// Headers are added to every request, typically authorization.
	Headers map[string]string

	// Timeout bounds a single prediction round trip. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
}

// Remote invokes a model behind an HTTP/JSON endpoint.
//
// Wire format:
//
//	request:  {"task": "ner", "text": "John lives in Berlin"}
//	response: {"text": "...", "label": "...", "entities": [{"label": "PER", "start": 0, "end": 4, "word": "John"}]}
//
// Only the response field matching the task's output shape is read.
type Remote struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// NewRemote creates a Remote adapter. Outbound requests carry OTel
// HTTP client spans so model latency shows up under the run trace.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("remote adapter requires a URL")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Remote{
		url:     opts.URL,
		headers: opts.Headers,
		client:  client,
	}, nil
}

type predictRequest struct {
	Task string `json:"task"`
	Text string `json:"text"`
}

type predictResponse struct {
	Text     string `json:"text,omitempty"`
	Label    string `json:"label,omitempty"`
	Entities []struct {
		Label string `json:"label"`
		Start int    `json:"start"`
		End   int    `json:"end"`
		Word  string `json:"word"`
	} `json:"entities,omitempty"`
	Error string `json:"error,omitempty"`
}

// Predict implements Adapter.
func (r *Remote) Predict(ctx context.Context, task sample.Task, input string) (sample.Output, error) {
	body, err := json.Marshal(predictRequest{Task: task.String(), Text: input})
	if err != nil {
		return sample.Output{}, fmt.Errorf("marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return sample.Output{}, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return sample.Output{}, fmt.Errorf("call model endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return sample.Output{}, fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return sample.Output{}, fmt.Errorf("model endpoint returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var pr predictResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return sample.Output{}, fmt.Errorf("decode model response: %w", err)
	}
	if pr.Error != "" {
		return sample.Output{}, fmt.Errorf("model error: %s", pr.Error)
	}

	return r.toOutput(task, pr)
}

func (r *Remote) toOutput(task sample.Task, pr predictResponse) (sample.Output, error) {
	switch {
	case task == sample.TaskNER:
		preds := make([]sample.NERPrediction, 0, len(pr.Entities))
		for _, e := range pr.Entities {
			preds = append(preds, sample.NERPrediction{
				Label: e.Label,
				Span:  sample.Span{Start: e.Start, End: e.End, Word: e.Word},
			})
		}
		return sample.EntitiesOutput(preds...), nil

	case task == sample.TaskTextClassification:
		if pr.Label == "" {
			return sample.Output{}, fmt.Errorf("classification response missing label")
		}
		return sample.LabelOutput(pr.Label), nil

	default:
		return sample.TextOutput(pr.Text), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
