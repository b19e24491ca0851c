// Package fda implements the OpenFDA drug-label search client.
// The lookup is best-effort: the orchestrator treats any failure here as a
// degraded (empty) result rather than failing the request, because the
// medication list only enriches the primary analysis.
package fda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/harshauii/medscan/internal/model"
)

const (
	// resultLimit caps how many label records we request per lookup.
	resultLimit = 5
	// fieldMaxChars caps dosage/purpose text after sentence truncation.
	fieldMaxChars = 100
)

// Client queries the OpenFDA drug/label endpoint for medications whose
// indications match a condition string.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an OpenFDA client. baseURL is the full label-search
// endpoint (tests substitute an httptest server); apiKey may be empty —
// OpenFDA serves unauthenticated requests at a lower quota.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// labelResponse mirrors the slice of the OpenFDA payload we care about.
// Label fields arrive as arrays of strings — the first element is the text.
type labelResponse struct {
	Results []labelRecord `json:"results"`
}

type labelRecord struct {
	OpenFDA struct {
		BrandName []string `json:"brand_name"`
	} `json:"openfda"`
	DosageAndAdministration []string `json:"dosage_and_administration"`
	IndicationsAndUsage     []string `json:"indications_and_usage"`
}

// SearchMedications looks up medications whose "indications and usage"
// field matches the condition text. Records missing a brand name, dosage,
// or purpose are dropped silently; a returned error means the whole call
// failed and the (empty) result should be treated as degraded.
func (c *Client) SearchMedications(ctx context.Context, condition string) ([]model.Medication, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	q := req.URL.Query()
	q.Set("search", fmt.Sprintf("indications_and_usage:%q", condition))
	q.Set("limit", strconv.Itoa(resultLimit))
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfda request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// OpenFDA answers 404 for searches with zero matches — that's
		// "no data", not a failure.
		if resp.StatusCode == http.StatusNotFound {
			return []model.Medication{}, nil
		}
		return nil, fmt.Errorf("openfda returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading openfda response: %w", err)
	}

	var payload labelResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing openfda response: %w", err)
	}

	medications := make([]model.Medication, 0, len(payload.Results))
	for _, record := range payload.Results {
		med, ok := record.toMedication()
		if !ok {
			continue // malformed record — skip, never fail the call
		}
		medications = append(medications, med)
	}

	return medications, nil
}

// toMedication validates a label record and converts it into the compact
// response shape. All three fields are required.
func (r labelRecord) toMedication() (model.Medication, bool) {
	if len(r.OpenFDA.BrandName) == 0 || r.OpenFDA.BrandName[0] == "" {
		return model.Medication{}, false
	}
	if len(r.DosageAndAdministration) == 0 || r.DosageAndAdministration[0] == "" {
		return model.Medication{}, false
	}
	if len(r.IndicationsAndUsage) == 0 || r.IndicationsAndUsage[0] == "" {
		return model.Medication{}, false
	}

	return model.Medication{
		Name:    r.OpenFDA.BrandName[0],
		Dosage:  firstSentence(r.DosageAndAdministration[0]),
		Purpose: firstSentence(r.IndicationsAndUsage[0]),
	}, true
}

// firstSentence truncates label text at the first period, then caps it at
// fieldMaxChars characters. Label fields are walls of regulatory prose;
// only the opening sentence is useful in a summary.
func firstSentence(s string) string {
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	if runes := []rune(s); len(runes) > fieldMaxChars {
		s = string(runes[:fieldMaxChars])
	}
	return s
}
