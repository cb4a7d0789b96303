package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stripesight/stripesight/internal/random"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrNoImage is returned when a launch is attempted without an image.
	ErrNoImage = errors.NewSentinel("an image is required to launch an investigation")
	// ErrLaunchRejected is returned when the submission API rejects a launch.
	ErrLaunchRejected = errors.NewSentinel("launch rejected")
	// ErrNoInvestigation is returned when an operation requires a bound investigation ID.
	ErrNoInvestigation = errors.NewSentinel("no investigation bound")
	// ErrNotFound is returned when the investigation is unknown to the backend.
	ErrNotFound = errors.NewSentinel("investigation not found")
)

const requestTimeout = 30 * time.Second

// Client talks to the investigation backend: launching investigations,
// fetching poll snapshots, and requesting report regeneration.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger.With("source", "APIClient"),
	}
}

// LaunchRequest carries the image payload and optional sighting context.
type LaunchRequest struct {
	Image        io.Reader
	Filename     string
	Location     string
	SightingDate string
	Notes        string
}

type launchResponse struct {
	InvestigationID string `json:"investigation_id"`
	Error           string `json:"error"`
}

// Launch submits a sighting image and returns the new investigation ID.
// A missing image fails synchronously with ErrNoImage; a backend rejection
// (e.g. an unparseable image) returns ErrLaunchRejected with the reason.
func (c *Client) Launch(ctx context.Context, launch LaunchRequest) (string, error) {
	if launch.Image == nil {
		return "", errors.Wrap(ErrNoImage, "launch investigation")
	}

	var (
		body   bytes.Buffer
		writer = multipart.NewWriter(&body)
		err    error
	)

	filename := launch.Filename
	if filename == "" {
		filename = "sighting.jpg"
	}
	var part io.Writer
	if part, err = writer.CreateFormFile("image", filename); err != nil {
		return "", errors.Wrap(err, "create image form file")
	}
	if _, err = io.Copy(part, launch.Image); err != nil {
		return "", errors.Wrap(err, "copy image payload")
	}
	fields := map[string]string{
		"location":      launch.Location,
		"sighting_date": launch.SightingDate,
		"notes":         launch.Notes,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err = writer.WriteField(name, value); err != nil {
			return "", errors.Wrap(err, "write form field", slog.String("field", name))
		}
	}
	if err = writer.Close(); err != nil {
		return "", errors.Wrap(err, "close multipart writer")
	}

	// The request ID lets the backend deduplicate retried submissions.
	var requestID string
	if requestID, err = random.Letters(20); err != nil {
		return "", errors.Wrap(err, "generate request ID")
	}

	var req *http.Request
	if req, err = http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/api/investigations",
		&body,
	); err != nil {
		return "", errors.Wrap(err, "create launch request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "send launch request")
	}
	defer c.closeBody(resp.Body)

	// Error responses are not guaranteed to carry a JSON body, so decode
	// failures only matter on success.
	var decoded launchResponse
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read launch response")
	}
	if unmarshalErr := json.Unmarshal(raw, &decoded); unmarshalErr != nil && resp.StatusCode < http.StatusBadRequest {
		return "", errors.Wrap(unmarshalErr, "decode launch response", slog.Int("status", resp.StatusCode))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", errors.New("launch request failed", slog.Int("status", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		reason := decoded.Error
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return "", errors.Wrap(ErrLaunchRejected, reason, slog.Int("status", resp.StatusCode))
	}

	if decoded.InvestigationID == "" {
		return "", errors.New("launch response missing investigation ID")
	}
	return decoded.InvestigationID, nil
}

// Snapshot fetches the full phase-status snapshot for an investigation. It is
// the poll half of reconciliation; phase status in the response is
// authoritative.
func (c *Client) Snapshot(ctx context.Context, investigationID string) (investigation.Snapshot, error) {
	var snapshot investigation.Snapshot
	if investigationID == "" {
		return snapshot, errors.Wrap(ErrNoInvestigation, "fetch snapshot")
	}

	url := fmt.Sprintf("%s/api/investigations/%s", c.baseURL, investigationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return snapshot, errors.Wrap(err, "create snapshot request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snapshot, errors.Wrap(err, "send snapshot request",
			slog.String("investigation_id", investigationID))
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return snapshot, errors.Wrap(ErrNotFound, "fetch snapshot",
			slog.String("investigation_id", investigationID))
	}
	if resp.StatusCode != http.StatusOK {
		return snapshot, errors.New("snapshot request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("investigation_id", investigationID))
	}

	if err = json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return snapshot, errors.Wrap(err, "decode snapshot")
	}
	return snapshot, nil
}

// RegenerateReport asks the backend to rebuild the report for a different
// audience. The result is observed indirectly through subsequent poll and
// push traffic, not returned here.
func (c *Client) RegenerateReport(ctx context.Context, investigationID, audience string) error {
	if investigationID == "" {
		return errors.Wrap(ErrNoInvestigation, "regenerate report")
	}

	payload, err := json.Marshal(map[string]string{"audience": audience})
	if err != nil {
		return errors.Wrap(err, "marshal regenerate payload")
	}

	url := fmt.Sprintf("%s/api/investigations/%s/report", c.baseURL, investigationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "create regenerate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send regenerate request",
			slog.String("investigation_id", investigationID))
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return errors.Wrap(ErrNotFound, "regenerate report",
			slog.String("investigation_id", investigationID))
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return errors.New("regenerate request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("investigation_id", investigationID))
	}
	return nil
}

func (c *Client) closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		c.logger.Error("could not close response body", errors.SlogError(err))
	}
}
