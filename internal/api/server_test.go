package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/labelgest/internal/config"
	"github.com/dgallion1/labelgest/internal/ledger"
	"github.com/dgallion1/labelgest/internal/pipeline"
)

const testAPIKey = "secret"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		LabelgestAPIKey:    testAPIKey,
		WorkerCount:        1,
		MaxQueueSize:       4,
		ExtractConcurrency: 2,
		MaxConcurrentParse: 2,
		RateLimitEvery:     time.Hour,
		RateLimitBurst:     100,
		MaxUploadBytes:     1 << 20,
		LineTolerance:      1,
		MinChunkChars:      100,
		JobTTL:             time.Hour,
	}
}

// newTestServer builds a server over a real pipeline. The orchestrator is
// only started when start is true.
func newTestServer(t *testing.T, cfg config.Config, orders OrderLister, start bool) *Server {
	t.Helper()
	proc := pipeline.NewProcessor(pipeline.NewProcessorConfig(cfg), pipeline.NewExtractionStats(time.Hour), quietLogger())
	orch := pipeline.NewOrchestrator(cfg, proc, nil, quietLogger())
	if start {
		orch.Start(context.Background())
		t.Cleanup(orch.Stop)
	}
	return NewServer(orch, orders, quietLogger(), cfg)
}

func labelBlock(row, carrier string) string {
	return "Customer Address\n" +
		"Anil Kumar, 221B Park Street, Kolkata, West Bengal 700016\n" +
		carrier + "\n" +
		"Product Details\n" +
		"SKU Size Qty Color Order No.\n" +
		row + "\n" +
		"TAX INVOICE\n" +
		"Sold by: Example Traders GSTIN: 19ABCDE1234F1Z3\n"
}

func labelDocument() string {
	return labelBlock("SHIRT-WHT Free Size 2 White 7001_1", "Xpressbees") +
		labelBlock("DUPATTA-PNK Free Size 1 Pink 7002_1", "Delhivery")
}

func uploadRequest(t *testing.T, path, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func getRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/extraction", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/extraction", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if rec := serve(s, req); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: expected 401, got %d", rec.Code)
	}
}

func TestParse(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := serve(s, uploadRequest(t, "/api/labels/parse", "labels.txt", labelDocument(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp parseResponse
	decode(t, rec, &resp)
	if !resp.Success || resp.FileName != "labels.txt" || resp.NumPages != 1 {
		t.Errorf("unexpected header fields %+v", resp)
	}
	if resp.TotalLabels != 2 || resp.ValidLabels != 2 || resp.InvalidLabels != 0 {
		t.Errorf("unexpected counts %+v", resp)
	}
	if resp.GSTIN != "19ABCDE1234F1Z3" {
		t.Errorf("expected GSTIN, got %q", resp.GSTIN)
	}
	if len(resp.Labels) != 2 || resp.Labels[0].SKU != "SHIRT-WHT" || resp.Labels[1].DeliveryPartner != "Delhivery" {
		t.Errorf("unexpected labels %+v", resp.Labels)
	}
	if resp.Errors == nil {
		t.Error("errors should be an empty list, not null")
	}

	stats := serve(s, getRequest("/api/stats/extraction"))
	var body struct {
		Stats pipeline.StatsSnapshot `json:"stats"`
	}
	decode(t, stats, &body)
	if body.Stats.Documents != 1 || body.Stats.Labels != 2 {
		t.Errorf("stats not updated: %+v", body.Stats)
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     int
	}{
		{"missing file", "", "", http.StatusBadRequest},
		{"unsupported type", "labels.csv", "a,b", http.StatusBadRequest},
		{"unreadable pdf", "labels.pdf", "not a pdf at all", http.StatusUnprocessableEntity},
		{"empty text", "labels.txt", "\n\n", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), nil, false)
			rec := serve(s, uploadRequest(t, "/api/labels/parse", tt.filename, tt.content, nil))
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestParse_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64
	s := newTestServer(t, cfg, nil, false)
	rec := serve(s, uploadRequest(t, "/api/labels/parse", "labels.txt", labelDocument(), nil))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, true)

	rec := serve(s, uploadRequest(t, "/api/labels/jobs", "batch.txt", labelDocument(), nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &created)
	if created.JobID == "" || created.PollURL != "/api/labels/jobs/"+created.JobID+"/status" {
		t.Fatalf("unexpected create response %s", rec.Body.String())
	}

	var snap pipeline.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		decode(t, serve(s, getRequest(created.PollURL)), &snap)
		if snap.Status.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %s", snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != pipeline.StatusCompleted || snap.Progress.LabelsValid != 2 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	labelsURL := "/api/labels/jobs/" + created.JobID + "/labels"
	var labels struct {
		Labels []struct {
			LabelNumber     int    `json:"labelNumber"`
			DeliveryPartner string `json:"deliveryPartner"`
		} `json:"labels"`
	}
	decode(t, serve(s, getRequest(labelsURL+"?sort=partner")), &labels)
	if len(labels.Labels) != 2 || labels.Labels[0].DeliveryPartner != "Delhivery" || labels.Labels[0].LabelNumber != 2 {
		t.Errorf("expected Delhivery label first, got %+v", labels.Labels)
	}

	xlsx := serve(s, getRequest(labelsURL+"?format=xlsx"))
	if xlsx.Code != http.StatusOK || xlsx.Header().Get("Content-Type") != xlsxContentType {
		t.Errorf("unexpected xlsx response %d %q", xlsx.Code, xlsx.Header().Get("Content-Type"))
	}
	if cd := xlsx.Header().Get("Content-Disposition"); cd != `attachment; filename="batch-labels.xlsx"` {
		t.Errorf("unexpected disposition %q", cd)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(xlsx.Body.Bytes(), []byte("PK")) {
		t.Error("xlsx body is not a zip archive")
	}

	if rec := serve(s, getRequest(labelsURL+"?format=csv")); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format: expected 400, got %d", rec.Code)
	}
	if rec := serve(s, getRequest(labelsURL+"?sort=sku")); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown sort: expected 400, got %d", rec.Code)
	}
}

func TestJobLabels_NotFinished(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	rec := serve(s, uploadRequest(t, "/api/labels/jobs", "batch.txt", labelDocument(), nil))
	var created struct {
		JobID string `json:"job_id"`
	}
	decode(t, rec, &created)

	if rec := serve(s, getRequest("/api/labels/jobs/"+created.JobID+"/labels")); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for queued job, got %d", rec.Code)
	}
}

func TestJobs_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	for _, path := range []string{"/api/labels/jobs/nope/status", "/api/labels/jobs/nope/labels"} {
		if rec := serve(s, getRequest(path)); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}

func TestCreateJob_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"invalid gstin", map[string]string{"gstin": "12345"}},
		{"submit without ledger", map[string]string{"submit": "true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), nil, false)
			rec := serve(s, uploadRequest(t, "/api/labels/jobs", "labels.txt", labelDocument(), tt.fields))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

type fakeOrders struct {
	orders []ledger.StoredOrder
	err    error
	gstin  string
}

func (f *fakeOrders) ListOrders(ctx context.Context, gstin string) ([]ledger.StoredOrder, error) {
	f.gstin = gstin
	return f.orders, f.err
}

func TestListOrders(t *testing.T) {
	fake := &fakeOrders{orders: []ledger.StoredOrder{
		{GSTIN: "19ABCDE1234F1Z3", OrderID: "7001_1", SKU: "SHIRT-WHT", Quantity: 2},
	}}
	s := newTestServer(t, testConfig(), fake, false)

	rec := serve(s, getRequest("/api/ledger/orders?gstin=19abcde1234f1z3"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Count  int                  `json:"count"`
		Orders []ledger.StoredOrder `json:"orders"`
	}
	decode(t, rec, &body)
	if body.Count != 1 || body.Orders[0].OrderID != "7001_1" {
		t.Errorf("unexpected body %+v", body)
	}
	if fake.gstin != "19ABCDE1234F1Z3" {
		t.Errorf("gstin should be upper-cased, got %q", fake.gstin)
	}

	if rec := serve(s, getRequest("/api/ledger/orders")); rec.Code != http.StatusBadRequest {
		t.Errorf("missing gstin: expected 400, got %d", rec.Code)
	}

	fake.err = errors.New("connection refused")
	if rec := serve(s, getRequest("/api/ledger/orders?gstin=19ABCDE1234F1Z3")); rec.Code != http.StatusBadGateway {
		t.Errorf("ledger failure: expected 502, got %d", rec.Code)
	}
}

func TestListOrders_LedgerDisabled(t *testing.T) {
	s := newTestServer(t, testConfig(), nil, false)
	if rec := serve(s, getRequest("/api/ledger/orders?gstin=19ABCDE1234F1Z3")); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitBurst = 2
	s := newTestServer(t, cfg, nil, false)

	for i := range 2 {
		if rec := serve(s, getRequest("/api/stats/extraction")); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := serve(s, getRequest("/api/stats/extraction"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After header")
	}

	// Another client has its own bucket.
	req := getRequest("/api/stats/extraction")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if rec := serve(s, req); rec.Code != http.StatusOK {
		t.Errorf("other client: expected 200, got %d", rec.Code)
	}

	s.limiter.Reset()
	if rec := serve(s, getRequest("/api/stats/extraction")); rec.Code != http.StatusOK {
		t.Errorf("after reset: expected 200, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:4000", "198.51.100.1"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.2 "}, "10.0.0.2:4000", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.7:1234", "192.0.2.7"},
		{"remote without port", nil, "192.0.2.8", "192.0.2.8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"labels.pdf":       "labels.pdf",
		"../../etc/passwd": "passwd",
		`C:\uploads\a.pdf`: `C:_uploads_a.pdf`,
		"":                 "unnamed",
		"weird..name.txt":  "weird_name.txt",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
