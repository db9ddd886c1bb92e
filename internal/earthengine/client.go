package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/itss-sierra/islas-calor/internal/metrics"
	"github.com/sirupsen/logrus"
)

const DefaultAPIURL = "https://earthengine.googleapis.com"

// APIError is the error body returned by the REST API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Status     string `json:"status"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("earth engine %s (%d): %s", e.Status, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("earth engine request failed (%d): %s", e.StatusCode, e.Message)
}

// Client evaluates expressions with the Earth Engine REST API. Requests are
// attempted once.
type Client struct {
	httpClient *http.Client
	baseURL    string
	project    string
	log        logrus.FieldLogger
	metrics    *metrics.Collector
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

func WithMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(httpClient *http.Client, project string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    DefaultAPIURL,
		project:    project,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "earthengine" }

type computeRequest struct {
	Expression Expression `json:"expression"`
}

type computeResponse struct {
	Result json.RawMessage `json:"result"`
}

func (c *Client) Compute(ctx context.Context, v Computable, out any) (err error) {
	start := time.Now()
	defer func() { c.metrics.RecordEvaluation(c.Name(), "compute", err, time.Since(start)) }()

	expr, err := Encode(v.Expr())
	if err != nil {
		return err
	}

	var resp computeResponse
	if err := c.post(ctx, fmt.Sprintf("/v1/projects/%s/value:compute", c.project), computeRequest{Expression: expr}, &resp); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{
		"nodes":    len(expr.Values),
		"duration": time.Since(start).String(),
	}).Debug("earth engine compute")

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode compute result: %w", err)
	}
	return nil
}

type mapRequest struct {
	Expression           Expression           `json:"expression"`
	FileFormat           string               `json:"fileFormat"`
	BandIDs              []string             `json:"bandIds,omitempty"`
	VisualizationOptions visualizationOptions `json:"visualizationOptions"`
}

type visualizationOptions struct {
	Ranges        []valueRange `json:"ranges,omitempty"`
	PaletteColors []string     `json:"paletteColors,omitempty"`
}

type valueRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type mapResponse struct {
	Name string `json:"name"`
}

// Tiles registers a map for img and returns its XYZ tile URL template.
func (c *Client) Tiles(ctx context.Context, img Image, vis VisParams) (url string, err error) {
	start := time.Now()
	defer func() { c.metrics.RecordEvaluation(c.Name(), "tiles", err, time.Since(start)) }()

	expr, err := Encode(img.Expr())
	if err != nil {
		return "", err
	}
	palette := make([]string, len(vis.Palette))
	for i, p := range vis.Palette {
		palette[i] = strings.TrimPrefix(p, "#")
	}
	req := mapRequest{
		Expression: expr,
		FileFormat: "PNG",
		BandIDs:    vis.Bands,
		VisualizationOptions: visualizationOptions{
			PaletteColors: palette,
		},
	}
	// Palette-only layers keep the service's default stretch.
	if vis.Min != vis.Max {
		req.VisualizationOptions.Ranges = []valueRange{{Min: vis.Min, Max: vis.Max}}
	}

	var resp mapResponse
	if err := c.post(ctx, fmt.Sprintf("/v1/projects/%s/maps", c.project), req, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", fmt.Errorf("earth engine returned a map without a name")
	}
	return fmt.Sprintf("%s/v1/%s/tiles/{z}/{x}/{y}", c.baseURL, resp.Name), nil
}

// Ping evaluates a constant to check that credentials and project work.
func (c *Client) Ping(ctx context.Context) error {
	var got float64
	if err := c.Compute(ctx, NumberOf(1), &got); err != nil {
		return fmt.Errorf("earth engine ping failed: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("earth engine request failed: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(content, &wrapper) == nil && wrapper.Error != nil {
			apiErr.Code = wrapper.Error.Code
			apiErr.Message = wrapper.Error.Message
			apiErr.Status = wrapper.Error.Status
		} else {
			apiErr.Message = strings.TrimSpace(string(content))
		}
		return apiErr
	}

	if err := json.Unmarshal(content, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
