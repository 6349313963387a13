package rule

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"salescamp-controlplane/internal/config"
	"salescamp-controlplane/pkg/errutil"

	"go.uber.org/fx"
)

// Extraction is the structured output of a successful extraction call.
type Extraction struct {
	StructuredRule json.RawMessage `json:"rule"`
	Summary        string          `json:"summary"`
}

// CampaignContext carries the campaign metadata sent alongside the raw
// content so the extraction service can ground its answer.
type CampaignContext struct {
	CampaignID   string
	CampaignName string
	FileName     string
	MimeType     string
}

// Extractor converts raw rule content into a structured rule. The call is
// opaque, possibly slow and possibly failing; it is invoked at most once per
// transition attempt, retries belong to the orchestrator.
type Extractor interface {
	Extract(ctx context.Context, content []byte, meta CampaignContext) (*Extraction, error)
}

type httpExtractor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type completionRequest struct {
	Inputs       map[string]interface{} `json:"inputs"`
	Query        string                 `json:"query"`
	ResponseMode string                 `json:"response_mode"`
	User         string                 `json:"user"`
}

type completionResponse struct {
	MessageID string `json:"message_id"`
	Answer    string `json:"answer"`
}

// NewHTTPExtractor builds the client for the hosted completion endpoint.
func NewHTTPExtractor(cfg *config.Config) Extractor {
	timeout := cfg.Extractor.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &httpExtractor{
		baseURL: cfg.Extractor.BaseURL,
		apiKey:  cfg.Extractor.APIKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *httpExtractor) Extract(ctx context.Context, content []byte, meta CampaignContext) (*Extraction, error) {
	reqBody := completionRequest{
		Inputs: map[string]interface{}{
			"campaign_id":   meta.CampaignID,
			"campaign_name": meta.CampaignName,
			"file_name":     meta.FileName,
			"mime_type":     meta.MimeType,
		},
		Query:        base64.StdEncoding.EncodeToString(content),
		ResponseMode: "blocking",
		User:         "salescamp",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, extraction("failed to encode extraction request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, extraction("failed to build extraction request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, extraction("extraction request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, extraction(fmt.Sprintf("extraction service returned %d", resp.StatusCode), fmt.Errorf("%s", body))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, extraction("failed to decode extraction response", err)
	}

	var out Extraction
	if err := json.Unmarshal([]byte(completion.Answer), &out); err != nil {
		return nil, extraction("extraction answer is not a structured rule", err)
	}
	if len(out.StructuredRule) == 0 {
		return nil, extraction("extraction answer carries no rule", nil)
	}

	return &out, nil
}

func extraction(msg string, err error) error {
	if err == nil {
		err = ErrExtraction
	} else {
		err = fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return errutil.BadGateway(msg, errutil.WithErr(err))
}

var ExtractorModule = fx.Module("rule.extractor",
	fx.Provide(NewHTTPExtractor),
)
