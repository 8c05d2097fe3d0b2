// Package pipeline is the HTTP client for the dictation backend: template
// catalog, transcription with field extraction, template schemas, report
// generation and the clinical chat assistant.
//
// Every call is a single round trip. There is no retry, no caching and no
// client-side timeout; callers bound a call through its context.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/modelpath-dev/TuroAISTT/internal/domain"
)

// maxErrorBody caps how much of a failed response body is kept for the error.
const maxErrorBody = 512

// Client talks to the backend rooted at one base URL.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
}

// NewClient creates a client for an absolute http(s) base URL.
func NewClient(baseURL string) (*Client, error) {
	parsed, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    parsed,
	}, nil
}

// BaseURL returns the normalized backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// --- wire types ---

type templateEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
}

type segmentPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcribeResponse struct {
	RawTranscript     string           `json:"raw_transcript"`
	Segments          []segmentPayload `json:"segments"`
	RefinedTranscript string           `json:"refined_transcript"`
	ExtractedData     map[string]any   `json:"extracted_data"`
	TemplateID        string           `json:"template_id"`
}

type optionPayload struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type fieldPayload struct {
	FieldID string          `json:"field_id"`
	Label   string          `json:"label"`
	Type    string          `json:"type"`
	Options []optionPayload `json:"options,omitempty"`
}

type sectionPayload struct {
	Name        string         `json:"name"`
	SectionName string         `json:"section_name"`
	Fields      []fieldPayload `json:"fields"`
}

type schemaPayload struct {
	TemplateID string           `json:"template_id"`
	Organ      string           `json:"organ"`
	Sections   []sectionPayload `json:"sections"`
}

type reportRequest struct {
	Data       map[string]string `json:"data"`
	TemplateID string            `json:"template_id"`
}

type reportResponse struct {
	DownloadURL string `json:"download_url"`
}

type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Message    string     `json:"message"`
	Transcript string     `json:"transcript"`
	BodyPart   string     `json:"body_part"`
	TemplateID string     `json:"template_id"`
	History    []chatTurn `json:"history"`
}

type chatResponse struct {
	Response *string `json:"response"`
}

// --- operations ---

// ListTemplates fetches the template catalog.
func (c *Client) ListTemplates(ctx context.Context) ([]domain.TemplateSummary, error) {
	log.Debug().Msg("Listing templates")

	var entries []templateEntry
	if err := c.getJSON(ctx, "/templates", &entries); err != nil {
		return nil, networkError("list templates", err)
	}

	templates := make([]domain.TemplateSummary, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.ID) == "" {
			log.Warn().Int("index", i).Str("name", entry.Name).Msg("Skipping template without id")
			continue
		}
		name := entry.Name
		if name == "" {
			name = entry.ID
		}
		templates = append(templates, domain.TemplateSummary{ID: entry.ID, Name: name})
	}
	log.Debug().Int("count", len(templates)).Msg("Templates listed")
	return templates, nil
}

// Transcribe uploads the audio for transcription, refinement and field
// extraction against the chosen template.
func (c *Client) Transcribe(ctx context.Context, audio domain.AudioPayload, templateID string) (domain.TranscribeResult, error) {
	log.Debug().Str("templateId", templateID).Str("audio", audio.Name).Int64("bytes", audio.Size).Msg("Transcribing audio")

	body, contentType, err := transcribeForm(audio, templateID)
	if err != nil {
		return domain.TranscribeResult{}, networkError("transcribe", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/transcribe"), body)
	if err != nil {
		return domain.TranscribeResult{}, networkError("transcribe", err)
	}
	req.Header.Set("Content-Type", contentType)

	var resp transcribeResponse
	if err := c.do(req, &resp); err != nil {
		return domain.TranscribeResult{}, networkError("transcribe", err)
	}

	segments := make([]domain.Segment, 0, len(resp.Segments))
	for i, seg := range resp.Segments {
		if seg.End < seg.Start {
			return domain.TranscribeResult{}, networkError("transcribe", fmt.Errorf("segment %d ends before it starts (%.2f < %.2f)", i, seg.End, seg.Start))
		}
		segments = append(segments, domain.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if resp.TemplateID == "" {
		return domain.TranscribeResult{}, networkError("transcribe", errors.New("response has no template_id"))
	}
	extracted, err := normalizeExtracted(resp.ExtractedData)
	if err != nil {
		return domain.TranscribeResult{}, networkError("transcribe", err)
	}

	log.Info().Str("templateId", resp.TemplateID).Int("segments", len(segments)).Int("fields", len(extracted)).Msg("Transcription complete")
	return domain.TranscribeResult{
		RawTranscript:      resp.RawTranscript,
		Segments:           segments,
		RefinedTranscript:  resp.RefinedTranscript,
		ExtractedData:      extracted,
		ResolvedTemplateID: resp.TemplateID,
	}, nil
}

// FetchTemplateSchema retrieves the sectioned field schema of a template.
func (c *Client) FetchTemplateSchema(ctx context.Context, templateID string) (domain.TemplateSchema, error) {
	log.Debug().Str("templateId", templateID).Msg("Fetching template schema")

	var payload schemaPayload
	if err := c.getJSON(ctx, "/template/"+url.PathEscape(templateID)+".json", &payload); err != nil {
		return domain.TemplateSchema{}, networkError("fetch template schema", err)
	}

	schema, err := convertSchema(templateID, payload)
	if err != nil {
		log.Error().Err(err).Str("templateId", templateID).Msg("Template schema rejected")
		return domain.TemplateSchema{}, fmt.Errorf("fetch template schema %q: %w: %w", templateID, domain.ErrNetwork, err)
	}
	return schema, nil
}

// GenerateReport renders the report and returns its download URL resolved
// against the base URL.
func (c *Client) GenerateReport(ctx context.Context, data map[string]string, templateID string) (domain.ReportResult, error) {
	log.Debug().Str("templateId", templateID).Int("fields", len(data)).Msg("Generating report")

	if data == nil {
		data = map[string]string{}
	}
	var resp reportResponse
	if err := c.postJSON(ctx, "/generate-report", reportRequest{Data: data, TemplateID: templateID}, &resp); err != nil {
		return domain.ReportResult{}, networkError("generate report", err)
	}
	if strings.TrimSpace(resp.DownloadURL) == "" {
		return domain.ReportResult{}, networkError("generate report", errors.New("response has no download_url"))
	}

	resolved, err := c.ResolveURL(resp.DownloadURL)
	if err != nil {
		return domain.ReportResult{}, networkError("generate report", err)
	}
	log.Info().Str("downloadUrl", resolved).Msg("Report generated")
	return domain.ReportResult{DownloadURL: resolved}, nil
}

// Chat sends one assistant turn with the session context and prior history.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	log.Debug().Int("history", len(req.History)).Msg("Sending chat message")

	history := make([]chatTurn, 0, len(req.History))
	for _, msg := range req.History {
		history = append(history, chatTurn{Role: string(msg.Role), Content: msg.Content})
	}
	body := chatRequest{
		Message:    req.Message,
		Transcript: req.Context.Transcript,
		BodyPart:   req.Context.Organ,
		TemplateID: req.Context.TemplateID,
		History:    history,
	}

	var resp chatResponse
	if err := c.postJSON(ctx, "/chat", body, &resp); err != nil {
		return "", networkError("chat", err)
	}
	if resp.Response == nil {
		return "", networkError("chat", errors.New("response has no response text"))
	}
	return *resp.Response, nil
}

// Download streams the document at downloadURL into w.
func (c *Client) Download(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	resolved, err := c.ResolveURL(downloadURL)
	if err != nil {
		return 0, networkError("download report", err)
	}
	log.Debug().Str("url", resolved).Msg("Downloading report")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved, nil)
	if err != nil {
		return 0, networkError("download report", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, networkError("download report", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return 0, networkError("download report", err)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, networkError("download report", err)
	}
	return n, nil
}

// ResolveURL resolves a possibly relative reference against the base URL.
func (c *Client) ResolveURL(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + "/"
	return base.ResolveReference(&url.URL{Path: strings.TrimPrefix(parsed.Path, "/"), RawQuery: parsed.RawQuery}).String(), nil
}

// --- HTTP helpers ---

func (c *Client) endpoint(path string) string {
	return strings.TrimSuffix(c.baseURL.String(), "/") + path
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
}

func networkError(op string, err error) error {
	log.Error().Err(err).Str("op", op).Msg("Backend request failed")
	return fmt.Errorf("%s: %w: %w", op, domain.ErrNetwork, err)
}

func transcribeForm(audio domain.AudioPayload, templateID string) (io.Reader, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	name := audio.Name
	if name == "" {
		name = "audio"
	}
	mimeType := audio.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename=%q`, name))
	header.Set("Content-Type", mimeType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio.Data); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("body_part_id", templateID); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must use http or https", raw)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", raw)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed, nil
}
