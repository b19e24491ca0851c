package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/llm"
)

// recommendSystemPrompt instructs the model to emit exactly the JSON shape
// the response bundle expects.
const recommendSystemPrompt = "Generate a treatment plan in JSON format with treatments, precautions, and follow_up arrays of short strings."

// TreatmentPlan is the structured output of the recommendation call.
// Missing keys unmarshal to nil and are defaulted by the caller, so the
// bundle invariant (all keys present) holds regardless of what the model
// actually produced.
type TreatmentPlan struct {
	Treatments  []string `json:"treatments"`
	Precautions []string `json:"precautions"`
	FollowUp    []string `json:"follow_up"`
}

// Recommender turns free-text analysis into a structured treatment plan via
// a second LLM call. The call is best-effort: Generate never returns an
// error, only a possibly-empty plan plus a degraded flag for observability.
type Recommender struct {
	clients []llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecommender creates a Recommender over an ordered list of LLM clients —
// first is primary, the rest are fallbacks.
func NewRecommender(clients []llm.Client, timeout time.Duration, logger *zap.Logger) *Recommender {
	return &Recommender{
		clients: clients,
		timeout: timeout,
		logger:  logger,
	}
}

// Generate asks the LLM for a treatment plan based on the analysis text.
// On any failure — transport, HTTP status, non-JSON content — it logs the
// cause and returns an empty plan with degraded=true. It must never raise
// past this boundary: the enrichment is non-essential to the response.
func (r *Recommender) Generate(ctx context.Context, analysisText string, record func(client llm.Client, success bool, duration time.Duration)) (TreatmentPlan, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	for _, client := range r.clients {
		start := time.Now()
		content, err := client.CompleteJSON(ctx, recommendSystemPrompt, analysisText)
		if record != nil {
			record(client, err == nil, time.Since(start))
		}
		if err != nil {
			r.logger.Warn("recommendation call failed",
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
			continue
		}

		var plan TreatmentPlan
		if err := json.Unmarshal([]byte(llm.StripCodeFences(content)), &plan); err != nil {
			r.logger.Warn("recommendation content is not valid JSON",
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
			continue
		}

		plan.normalize()
		return plan, false
	}

	// Every provider failed (or none are configured) — degrade to empty.
	return emptyPlan(), true
}

func emptyPlan() TreatmentPlan {
	return TreatmentPlan{
		Treatments:  []string{},
		Precautions: []string{},
		FollowUp:    []string{},
	}
}

// normalize back-fills keys the model omitted so callers can always index
// all three lists.
func (p *TreatmentPlan) normalize() {
	if p.Treatments == nil {
		p.Treatments = []string{}
	}
	if p.Precautions == nil {
		p.Precautions = []string{}
	}
	if p.FollowUp == nil {
		p.FollowUp = []string{}
	}
}
