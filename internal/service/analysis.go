// Package service contains the core business logic for the analyze pipeline.
// AnalysisService orchestrates the per-request flow:
//
//	Step 1: validate the upload (content type + decode check)
//	Step 2: vision analysis — essential, failure maps to 502
//	Step 3: medication lookup and treatment plan in parallel, best-effort
//	Step 4: assemble the response bundle
//
// Control flow is strictly linear; the only concurrency is between the two
// independent enrichment calls in step 3.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/fda"
	"github.com/harshauii/medscan/internal/llm"
	"github.com/harshauii/medscan/internal/model"
	"github.com/harshauii/medscan/internal/storage"
)

// Result is the response body for a successful analysis.
type Result struct {
	Analysis        string                     `json:"analysis"`
	Recommendations model.RecommendationBundle `json:"recommendations"`
}

// AnalysisService is the main entry point for the analyze pipeline. All
// collaborators are injected — the service holds no ambient state, and every
// value it touches is scoped to a single request.
type AnalysisService struct {
	check         *ImageCheck
	clients       []llm.Client // Ordered list: first is primary, rest are fallbacks
	fdaClient     *fda.Client
	recommender   *Recommender
	analyses      storage.AnalysisRepository // nil disables history recording
	calls         storage.APICallRepository  // nil disables call tracking
	visionTimeout time.Duration
	logger        *zap.Logger
}

// NewAnalysisService wires up the pipeline. The repositories may be nil
// (the CLI runs without a database when only printing to stdout).
func NewAnalysisService(
	check *ImageCheck,
	clients []llm.Client,
	fdaClient *fda.Client,
	recommender *Recommender,
	analyses storage.AnalysisRepository,
	calls storage.APICallRepository,
	visionTimeout time.Duration,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		check:         check,
		clients:       clients,
		fdaClient:     fdaClient,
		recommender:   recommender,
		analyses:      analyses,
		calls:         calls,
		visionTimeout: visionTimeout,
		logger:        logger,
	}
}

// Analyze runs the full pipeline for one uploaded image and query.
// Error contract: ErrInvalidImage for rejected uploads, ErrUpstream when the
// vision call fails, plain errors for anything unexpected. The enrichment
// calls never contribute an error — their failures degrade to empty lists.
func (s *AnalysisService) Analyze(ctx context.Context, image []byte, contentType, query string) (*Result, error) {
	start := time.Now()

	// Step 1: validation happens before any upstream call, so a bad upload
	// never costs an API token.
	mimeType, err := s.check.Validate(image, contentType)
	if err != nil {
		return nil, err
	}

	image, mimeType, err = s.check.BoundDimensions(image, mimeType)
	if err != nil {
		return nil, fmt.Errorf("bounding image dimensions: %w", err)
	}

	// Step 2: vision analysis.
	analysisText, provider, err := s.analyzeImage(ctx, image, mimeType, query)
	if err != nil {
		s.recordAnalysis(ctx, query, contentType, "", provider, model.StatusFailed, err, start)
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	// Step 3: the two enrichment calls are independent, so they run
	// concurrently. Neither can fail the request — each degrades to an
	// empty result on its own.
	var (
		wg          sync.WaitGroup
		medications []model.Medication
		fdaErr      error
		plan        TreatmentPlan
		degraded    bool
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		callStart := time.Now()
		medications, fdaErr = s.fdaClient.SearchMedications(ctx, analysisText)
		s.recordCall(ctx, "openfda", model.CallDrugLabel, "", fdaErr == nil, time.Since(callStart))
		if fdaErr != nil {
			s.logger.Warn("medication lookup failed", zap.Error(fdaErr))
		}
	}()
	go func() {
		defer wg.Done()
		plan, degraded = s.recommender.Generate(ctx, analysisText,
			func(client llm.Client, success bool, duration time.Duration) {
				s.recordCall(ctx, client.ProviderName(), model.CallRecommend, client.ModelName(), success, duration)
			})
	}()
	wg.Wait()

	// Step 4: assemble the bundle. Normalize enforces the invariant that
	// all four keys are present even when an enrichment came back empty.
	bundle := model.RecommendationBundle{
		Medications: medications,
		Treatments:  plan.Treatments,
		Precautions: plan.Precautions,
		FollowUp:    plan.FollowUp,
	}
	bundle.Normalize()

	status := model.StatusOK
	if fdaErr != nil || degraded {
		status = model.StatusDegraded
	}
	s.recordAnalysis(ctx, query, contentType, analysisText, provider, status, nil, start)

	return &Result{
		Analysis:        analysisText,
		Recommendations: bundle,
	}, nil
}

// analyzeImage tries the configured LLM providers in order — first success
// wins, failures fall through to the next. Returns the analysis text and
// the provider that produced it.
func (s *AnalysisService) analyzeImage(ctx context.Context, image []byte, mimeType, query string) (string, string, error) {
	if len(s.clients) == 0 {
		return "", "", fmt.Errorf("no LLM providers configured")
	}

	callCtx, cancel := context.WithTimeout(ctx, s.visionTimeout)
	defer cancel()

	var lastErr error
	for i, client := range s.clients {
		callStart := time.Now()
		text, err := client.AnalyzeImage(callCtx, image, mimeType, query)
		// Track against the parent context so a timed-out call still records.
		s.recordCall(ctx, client.ProviderName(), model.CallVision, client.ModelName(), err == nil, time.Since(callStart))
		if err == nil {
			return text, client.ProviderName(), nil
		}

		lastErr = err
		if i < len(s.clients)-1 {
			s.logger.Warn("vision provider failed, trying next",
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return "", "", fmt.Errorf("all vision providers failed: %w", lastErr)
}

// recordAnalysis persists the history row. Recording is best-effort —
// a storage failure is logged and never surfaces to the client.
func (s *AnalysisService) recordAnalysis(ctx context.Context, query, contentType, analysisText, provider string, status model.AnalysisStatus, cause error, start time.Time) {
	if s.analyses == nil {
		return
	}

	durationMs := time.Since(start).Milliseconds()
	record := &model.Analysis{
		Query:        query,
		ContentType:  contentType,
		AnalysisText: analysisText,
		Provider:     provider,
		Status:       status,
		DurationMs:   &durationMs,
	}
	if cause != nil {
		msg := cause.Error()
		record.ErrorMessage = &msg
	}

	if err := s.analyses.Create(ctx, record); err != nil {
		s.logger.Error("recording analysis", zap.Error(err))
	}
}

// recordCall tracks one upstream call for cost monitoring, same contract as
// recordAnalysis.
func (s *AnalysisService) recordCall(ctx context.Context, provider string, kind model.APICallKind, modelName string, success bool, duration time.Duration) {
	if s.calls == nil {
		return
	}

	durationMs := duration.Milliseconds()
	call := &model.APICall{
		Provider:   provider,
		Kind:       kind,
		Model:      modelName,
		Success:    success,
		DurationMs: &durationMs,
	}
	if err := s.calls.Create(ctx, call); err != nil {
		s.logger.Error("recording api call", zap.Error(err))
	}
}
