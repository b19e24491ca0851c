package handler

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harshauii/medscan/internal/fda"
	"github.com/harshauii/medscan/internal/llm"
	"github.com/harshauii/medscan/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Go HTTP testing: httptest.NewRecorder() captures the response without
// starting a real server for the handler side, while the upstream APIs are
// real httptest servers the clients dial via their base URLs.

const visionText = "Fracture noted in left tibia."

const drugFixture = `{
	"results": [
		{
			"openfda": {"brand_name": ["BoneMend"]},
			"dosage_and_administration": ["500 mg twice daily. With food."],
			"indications_and_usage": ["Bone fracture support. See insert."]
		},
		{
			"openfda": {"brand_name": ["NoPurpose"]},
			"dosage_and_administration": ["One daily."]
		}
	]
}`

// llmUpstream mocks the Groq chat-completions endpoint. Both pipeline calls
// hit the same path, so it tells them apart by the inline image part that
// only the vision request carries.
type llmUpstream struct {
	visionStatus     int
	visionContent    string
	recommendContent string

	visionHits    atomic.Int64
	recommendHits atomic.Int64
}

func (u *llmUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		isVision := bytes.Contains(body, []byte("image_url"))

		if isVision {
			u.visionHits.Add(1)
			if u.visionStatus != http.StatusOK {
				w.WriteHeader(u.visionStatus)
				return
			}
			writeCompletion(w, u.visionContent)
			return
		}

		u.recommendHits.Add(1)
		writeCompletion(w, u.recommendContent)
	}
}

func writeCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

// newTestRouter wires the real pipeline against the two mock upstreams.
func newTestRouter(t *testing.T, llmSrv, fdaSrv *httptest.Server) *gin.Engine {
	t.Helper()

	client := llm.NewGroqClient("test-key", llmSrv.URL, "test-model", "test-vision", 500)
	clients := []llm.Client{client}
	fdaClient := fda.NewClient(fdaSrv.URL, "", 5*time.Second)
	check := service.NewImageCheck(10<<20, 0)
	recommender := service.NewRecommender(clients, 5*time.Second, zap.NewNop())
	analysis := service.NewAnalysisService(check, clients, fdaClient, recommender, nil, nil, 5*time.Second, zap.NewNop())

	router := gin.New()
	router.POST("/upload_and_query", NewAnalyzeHandler(analysis, zap.NewNop()).UploadAndQuery)
	return router
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test png: %v", err)
	}
	return buf.Bytes()
}

// multipartUpload builds the request body the browser form would send.
func multipartUpload(t *testing.T, imageData []byte, imageType, query string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if imageData != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="image"; filename="scan.png"`)
		header.Set("Content-Type", imageType)
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("creating form part: %v", err)
		}
		if _, err := part.Write(imageData); err != nil {
			t.Fatalf("writing form part: %v", err)
		}
	}
	if query != "" {
		if err := w.WriteField("query", query); err != nil {
			t.Fatalf("writing query field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func doUpload(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/upload_and_query", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndQuery_EndToEnd(t *testing.T) {
	upstream := &llmUpstream{
		visionStatus:     http.StatusOK,
		visionContent:    visionText,
		recommendContent: `{"treatments": ["immobilize"], "precautions": [], "follow_up": ["repeat imaging in 6 weeks"]}`,
	}
	llmSrv := httptest.NewServer(upstream.handler())
	defer llmSrv.Close()
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(drugFixture))
	}))
	defer fdaSrv.Close()

	router := newTestRouter(t, llmSrv, fdaSrv)
	body, contentType := multipartUpload(t, testPNG(t), "image/png", "Describe this X-ray")
	w := doUpload(router, body, contentType)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Analysis        string `json:"analysis"`
		Recommendations struct {
			Medications []struct {
				Name    string `json:"name"`
				Dosage  string `json:"dosage"`
				Purpose string `json:"purpose"`
			} `json:"medications"`
			Treatments  []string `json:"treatments"`
			Precautions []string `json:"precautions"`
			FollowUp    []string `json:"follow_up"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}

	if resp.Analysis != visionText {
		t.Errorf("analysis = %q, want %q", resp.Analysis, visionText)
	}
	// Exactly the well-formed record survives; the one missing purpose is dropped.
	if len(resp.Recommendations.Medications) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(resp.Recommendations.Medications))
	}
	med := resp.Recommendations.Medications[0]
	if med.Name != "BoneMend" || med.Dosage != "500 mg twice daily" {
		t.Errorf("unexpected medication: %+v", med)
	}
	if len(resp.Recommendations.Treatments) != 1 || len(resp.Recommendations.FollowUp) != 1 {
		t.Errorf("unexpected plan: %+v", resp.Recommendations)
	}
}

func TestUploadAndQuery_NonImageUploadNeverHitsUpstreams(t *testing.T) {
	upstream := &llmUpstream{visionStatus: http.StatusOK, visionContent: visionText, recommendContent: `{}`}
	llmSrv := httptest.NewServer(upstream.handler())
	defer llmSrv.Close()
	var fdaHits atomic.Int64
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fdaHits.Add(1)
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer fdaSrv.Close()

	router := newTestRouter(t, llmSrv, fdaSrv)

	// Declared text/plain
	body, contentType := multipartUpload(t, []byte("just some text"), "text/plain", "Describe this")
	if w := doUpload(router, body, contentType); w.Code != http.StatusBadRequest {
		t.Errorf("text upload: expected 400, got %d", w.Code)
	}

	// Declared image but corrupt bytes
	body, contentType = multipartUpload(t, []byte("garbage bytes"), "image/jpeg", "Describe this")
	if w := doUpload(router, body, contentType); w.Code != http.StatusBadRequest {
		t.Errorf("corrupt upload: expected 400, got %d", w.Code)
	}

	if upstream.visionHits.Load() != 0 || upstream.recommendHits.Load() != 0 || fdaHits.Load() != 0 {
		t.Errorf("upstreams were called for invalid uploads: vision=%d recommend=%d fda=%d",
			upstream.visionHits.Load(), upstream.recommendHits.Load(), fdaHits.Load())
	}
}

func TestUploadAndQuery_VisionFailureReturns502(t *testing.T) {
	upstream := &llmUpstream{visionStatus: http.StatusInternalServerError, recommendContent: `{}`}
	llmSrv := httptest.NewServer(upstream.handler())
	defer llmSrv.Close()
	var fdaHits atomic.Int64
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fdaHits.Add(1)
		_, _ = w.Write([]byte(drugFixture))
	}))
	defer fdaSrv.Close()

	router := newTestRouter(t, llmSrv, fdaSrv)
	body, contentType := multipartUpload(t, testPNG(t), "image/png", "Describe this X-ray")
	w := doUpload(router, body, contentType)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "recommendations") {
		t.Error("502 response must not contain recommendation data")
	}
	if fdaHits.Load() != 0 || upstream.recommendHits.Load() != 0 {
		t.Errorf("downstream calls made after vision failure: fda=%d recommend=%d",
			fdaHits.Load(), upstream.recommendHits.Load())
	}
}

func TestUploadAndQuery_MalformedRecommendationStillReturns200(t *testing.T) {
	upstream := &llmUpstream{
		visionStatus:     http.StatusOK,
		visionContent:    visionText,
		recommendContent: "I am sorry, I cannot produce JSON today.",
	}
	llmSrv := httptest.NewServer(upstream.handler())
	defer llmSrv.Close()
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer fdaSrv.Close()

	router := newTestRouter(t, llmSrv, fdaSrv)
	body, contentType := multipartUpload(t, testPNG(t), "image/png", "Describe this X-ray")
	w := doUpload(router, body, contentType)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	var rec struct {
		Treatments  []string `json:"treatments"`
		Precautions []string `json:"precautions"`
		FollowUp    []string `json:"follow_up"`
	}
	if err := json.Unmarshal(resp["recommendations"], &rec); err != nil {
		t.Fatalf("decoding recommendations: %v", err)
	}
	if len(rec.Treatments) != 0 || len(rec.Precautions) != 0 || len(rec.FollowUp) != 0 {
		t.Errorf("expected empty lists, got %+v", rec)
	}
	// The keys themselves must be present in the raw JSON.
	for _, key := range []string{"treatments", "precautions", "follow_up", "medications"} {
		if !bytes.Contains(resp["recommendations"], []byte(`"`+key+`"`)) {
			t.Errorf("recommendations missing key %q", key)
		}
	}
}

func TestUploadAndQuery_MissingFields(t *testing.T) {
	upstream := &llmUpstream{visionStatus: http.StatusOK, visionContent: visionText, recommendContent: `{}`}
	llmSrv := httptest.NewServer(upstream.handler())
	defer llmSrv.Close()
	fdaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer fdaSrv.Close()

	router := newTestRouter(t, llmSrv, fdaSrv)

	// Missing query
	body, contentType := multipartUpload(t, testPNG(t), "image/png", "")
	if w := doUpload(router, body, contentType); w.Code != http.StatusBadRequest {
		t.Errorf("missing query: expected 400, got %d", w.Code)
	}

	// Missing file
	body, contentType = multipartUpload(t, nil, "", "Describe this")
	if w := doUpload(router, body, contentType); w.Code != http.StatusBadRequest {
		t.Errorf("missing image: expected 400, got %d", w.Code)
	}
}
