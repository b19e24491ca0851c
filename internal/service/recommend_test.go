package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/llm"
)

// fakeLLM implements llm.Client with canned responses. Shared by the
// recommender and orchestration tests in this package.
type fakeLLM struct {
	name        string
	analysis    string
	analysisErr error
	jsonContent string
	jsonErr     error

	visionCalls int
	jsonCalls   int
}

func (f *fakeLLM) AnalyzeImage(ctx context.Context, image []byte, mimeType string, query string) (string, error) {
	f.visionCalls++
	if f.analysisErr != nil {
		return "", f.analysisErr
	}
	return f.analysis, nil
}

func (f *fakeLLM) CompleteJSON(ctx context.Context, system string, user string) (string, error) {
	f.jsonCalls++
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	return f.jsonContent, nil
}

func (f *fakeLLM) ProviderName() string { return f.name }
func (f *fakeLLM) ModelName() string    { return "fake-model" }

func newTestRecommender(clients ...llm.Client) *Recommender {
	return NewRecommender(clients, 5*time.Second, zap.NewNop())
}

func TestGenerate_FullPlan(t *testing.T) {
	client := &fakeLLM{
		name:        "groq",
		jsonContent: `{"treatments": ["rest"], "precautions": ["avoid weight bearing"], "follow_up": ["x-ray in 6 weeks"]}`,
	}

	plan, degraded := newTestRecommender(client).Generate(context.Background(), "fracture", nil)
	if degraded {
		t.Fatal("expected non-degraded result")
	}
	if len(plan.Treatments) != 1 || plan.Treatments[0] != "rest" {
		t.Errorf("unexpected treatments: %v", plan.Treatments)
	}
	if len(plan.Precautions) != 1 || len(plan.FollowUp) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestGenerate_BackfillsMissingKeys(t *testing.T) {
	// The model only produced treatments — the other two keys must still
	// come back as empty lists, never nil.
	client := &fakeLLM{name: "groq", jsonContent: `{"treatments": ["rest"]}`}

	plan, degraded := newTestRecommender(client).Generate(context.Background(), "fracture", nil)
	if degraded {
		t.Fatal("expected non-degraded result")
	}
	if plan.Precautions == nil || plan.FollowUp == nil {
		t.Fatal("missing keys must default to empty lists")
	}
	if len(plan.Precautions) != 0 || len(plan.FollowUp) != 0 {
		t.Errorf("expected empty defaults, got %+v", plan)
	}
}

func TestGenerate_NonJSONContentDegrades(t *testing.T) {
	client := &fakeLLM{name: "groq", jsonContent: "I am sorry, I cannot help with that."}

	plan, degraded := newTestRecommender(client).Generate(context.Background(), "fracture", nil)
	if !degraded {
		t.Fatal("expected degraded result for non-JSON content")
	}
	if len(plan.Treatments) != 0 || len(plan.Precautions) != 0 || len(plan.FollowUp) != 0 {
		t.Errorf("expected empty plan, got %+v", plan)
	}
	if plan.Treatments == nil || plan.Precautions == nil || plan.FollowUp == nil {
		t.Error("degraded plan must still carry all keys as empty lists")
	}
}

func TestGenerate_UpstreamErrorDegrades(t *testing.T) {
	client := &fakeLLM{name: "groq", jsonErr: fmt.Errorf("connection refused")}

	plan, degraded := newTestRecommender(client).Generate(context.Background(), "fracture", nil)
	if !degraded {
		t.Fatal("expected degraded result on upstream error")
	}
	if len(plan.Treatments) != 0 {
		t.Errorf("expected empty plan, got %+v", plan)
	}
}

func TestGenerate_FallsBackToSecondProvider(t *testing.T) {
	primary := &fakeLLM{name: "groq", jsonErr: fmt.Errorf("rate limited")}
	fallback := &fakeLLM{name: "anthropic", jsonContent: `{"treatments": ["ice"]}`}

	plan, degraded := newTestRecommender(primary, fallback).Generate(context.Background(), "sprain", nil)
	if degraded {
		t.Fatal("fallback succeeded, result must not be degraded")
	}
	if primary.jsonCalls != 1 || fallback.jsonCalls != 1 {
		t.Errorf("expected both providers tried, got %d/%d", primary.jsonCalls, fallback.jsonCalls)
	}
	if len(plan.Treatments) != 1 || plan.Treatments[0] != "ice" {
		t.Errorf("unexpected plan from fallback: %+v", plan)
	}
}

func TestGenerate_FencedJSONAccepted(t *testing.T) {
	client := &fakeLLM{name: "anthropic", jsonContent: "```json\n{\"treatments\": [\"rest\"]}\n```"}

	plan, degraded := newTestRecommender(client).Generate(context.Background(), "fracture", nil)
	if degraded {
		t.Fatal("fenced JSON should parse")
	}
	if len(plan.Treatments) != 1 {
		t.Errorf("unexpected plan: %+v", plan)
	}
}

func TestGenerate_NoProvidersDegrades(t *testing.T) {
	plan, degraded := newTestRecommender().Generate(context.Background(), "anything", nil)
	if !degraded {
		t.Fatal("expected degraded result with no providers")
	}
	if plan.Treatments == nil {
		t.Error("plan keys must be present even with no providers")
	}
}

func TestGenerate_RecordsCalls(t *testing.T) {
	client := &fakeLLM{name: "groq", jsonContent: `{}`}

	var recorded []bool
	newTestRecommender(client).Generate(context.Background(), "fracture",
		func(c llm.Client, success bool, d time.Duration) {
			recorded = append(recorded, success)
		})

	if len(recorded) != 1 || !recorded[0] {
		t.Errorf("expected one successful call recorded, got %v", recorded)
	}
}
