package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/auth"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	redisclient "github.com/hackgods/hospital-workflow/internal/redis"
	"github.com/hackgods/hospital-workflow/internal/storage"
)

var (
	doctor      = hospital.Actor{ID: 501, Role: hospital.RoleDoctor}
	pathologist = hospital.Actor{ID: 601, Role: hospital.RolePathologist}
	pharmacist  = hospital.Actor{ID: 701, Role: hospital.RolePharmacist}
	reception   = hospital.Actor{ID: 801, Role: hospital.RoleReceptionist}
)

// trackingStore remembers every uploaded key on top of the memory store.
type trackingStore struct {
	*storage.Memory
	mu       sync.Mutex
	uploaded []string
}

func (s *trackingStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	s.mu.Lock()
	s.uploaded = append(s.uploaded, key)
	s.mu.Unlock()
	return s.Memory.Upload(ctx, key, r, size, contentType)
}

func (s *trackingStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploaded...)
}

type testServer struct {
	handler http.Handler
	svc     *hospital.Service
	store   *trackingStore
	tokens  *auth.TokenService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := hospital.NewMemoryRepository()
	repo.AddDoctor(1, 11, "Dr. Gregory House")
	store := &trackingStore{Memory: storage.NewMemory("http://files.local")}
	svc := hospital.NewService(repo, redisclient.NewLocalLocker(), store, zerolog.Nop())
	tokens := auth.NewTokenService("test-secret", "hospital-workflow", time.Hour)

	h := NewRouter(RouterConfig{
		Service:        svc,
		Store:          store,
		Tokens:         tokens,
		Logger:         zerolog.Nop(),
		Env:            "test",
		Version:        "test",
		MaxUploadBytes: 1 << 20,
	})
	return &testServer{handler: h, svc: svc, store: store, tokens: tokens}
}

func (s *testServer) token(t *testing.T, a hospital.Actor) string {
	t.Helper()
	tok, err := s.tokens.Issue(a.ID, string(a.Role))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, a *hospital.Actor, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if a != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(t, *a))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) seedConsultation(t *testing.T) (*hospital.Patient, *hospital.Consultation) {
	t.Helper()
	ctx := context.Background()
	p, err := s.svc.RegisterPatient(ctx, reception, hospital.Patient{Name: "Lisa Cuddy"})
	if err != nil {
		t.Fatalf("RegisterPatient: %v", err)
	}
	c, err := s.svc.CreateConsultation(ctx, reception, hospital.NewConsultation{PatientID: p.ID, DoctorID: 1})
	if err != nil {
		t.Fatalf("CreateConsultation: %v", err)
	}
	return p, c
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func TestAuth_RequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/equipment?searchBy=pump", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
		})
	}

	rec := s.do(t, nil, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("liveness should be public, got %d", rec.Code)
	}
}

func TestReadiness_MemoryMode(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, nil, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp ReadinessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Dependencies["postgres"] != "disabled" || resp.Dependencies["object_store"] != "ok" {
		t.Errorf("readiness = %+v", resp)
	}
}

func TestDispenseRoute(t *testing.T) {
	s := newTestServer(t)
	p, err := s.svc.CreatePrescription(context.Background(), doctor, nil, []hospital.NewPrescriptionEntry{
		{MedicineID: 3, Quantity: 30},
	})
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	path := fmt.Sprintf("/prescriptions/%d/entries/%s", p.ID, p.Entries[0].ID)

	rec := s.do(t, &pharmacist, http.MethodPut, path, DispenseRequest{DispensedQty: 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var res hospital.DispenseResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Entry.Dispensed != 10 || res.Status != hospital.PrescriptionPartiallyDispensed {
		t.Errorf("result = %+v", res)
	}

	tests := []struct {
		name  string
		actor hospital.Actor
		path  string
		body  string
		want  int
		code  string
	}{
		{"overflow", pharmacist, path, `{"dispensed_qty": 21}`, http.StatusBadRequest, "validation_error"},
		{"zero", pharmacist, path, `{"dispensed_qty": 0}`, http.StatusBadRequest, "validation_error"},
		{"bad json", pharmacist, path, `{"dispensed_qty": "ten"}`, http.StatusBadRequest, "invalid_request_body"},
		{"bad entry id", pharmacist, fmt.Sprintf("/prescriptions/%d/entries/xyz", p.ID), `{"dispensed_qty": 1}`, http.StatusBadRequest, "invalid_entryId"},
		{"bad prescription id", pharmacist, "/prescriptions/abc/entries/" + p.Entries[0].ID.String(), `{"dispensed_qty": 1}`, http.StatusBadRequest, "invalid_prescriptionId"},
		{"unknown prescription", pharmacist, "/prescriptions/1/entries/" + p.Entries[0].ID.String(), `{"dispensed_qty": 1}`, http.StatusNotFound, "prescription_not_found"},
		{"doctor forbidden", doctor, path, `{"dispensed_qty": 1}`, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer "+s.token(t, tt.actor))
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, tt.want, rec.Body)
			}
			if e := decodeError(t, rec); e.Error != tt.code {
				t.Errorf("error code = %q, want %q", e.Error, tt.code)
			}
		})
	}
}

type uploadForm struct {
	fields      map[string]string
	fileName    string
	contentType string
	content     []byte
}

func (f uploadForm) request(t *testing.T, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range f.fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if f.fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="reportFile"; filename="%s"`, f.fileName))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		_, _ = part.Write(f.content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/reports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAttachReportRoute(t *testing.T) {
	s := newTestServer(t)
	p, c := s.seedConsultation(t)
	tok := s.token(t, pathologist)

	form := uploadForm{
		fields: map[string]string{
			"patientId":      fmt.Sprint(p.ID),
			"consultationId": fmt.Sprint(c.ID),
			"reportTitle":    "CBC",
			"reportType":     "blood",
		},
		fileName:    "CBC Result.pdf",
		contentType: "application/pdf",
		content:     []byte("%PDF-1.4 test"),
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, form.request(t, tok))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var res hospital.AttachReportResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	keys := s.store.keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], fmt.Sprintf("test_reports/%d-", p.ID)) || !strings.HasSuffix(keys[0], ".pdf") {
		t.Fatalf("uploaded keys = %v", keys)
	}
	if res.Report.ReportFile != "http://files.local/reports/"+keys[0] {
		t.Errorf("reportFile = %q", res.Report.ReportFile)
	}
	if !s.store.Has(keys[0]) {
		t.Error("uploaded file missing from store")
	}

	// fulfilling the same test answers 200
	form.fields["testId"] = res.Report.ID.String()
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, form.request(t, tok))
	if rec.Code != http.StatusOK {
		t.Fatalf("fulfil status = %d body=%s", rec.Code, rec.Body)
	}
}

func TestAttachReportRoute_RemovesOrphanedUpload(t *testing.T) {
	s := newTestServer(t)
	p, _ := s.seedConsultation(t)

	form := uploadForm{
		fields: map[string]string{
			"patientId":      fmt.Sprint(p.ID),
			"consultationId": "999",
			"title":          "X-Ray",
			"type":           "imaging",
		},
		fileName:    "chest.png",
		contentType: "image/png",
		content:     []byte{0x89, 'P', 'N', 'G'},
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, form.request(t, s.token(t, pathologist)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 (body=%s)", rec.Code, rec.Body)
	}
	if e := decodeError(t, rec); e.Error != "consultation_not_found" {
		t.Errorf("error code = %q", e.Error)
	}

	keys := s.store.keys()
	if len(keys) != 1 {
		t.Fatalf("uploaded keys = %v, want one", keys)
	}
	if s.store.Has(keys[0]) {
		t.Error("orphaned upload was not removed")
	}
}

func TestAttachReportRoute_RejectsBeforeUpload(t *testing.T) {
	s := newTestServer(t)
	p, c := s.seedConsultation(t)
	tok := s.token(t, pathologist)

	base := func() uploadForm {
		return uploadForm{
			fields: map[string]string{
				"patientId":      fmt.Sprint(p.ID),
				"consultationId": fmt.Sprint(c.ID),
				"reportTitle":    "CBC",
				"reportType":     "blood",
			},
			fileName:    "cbc.pdf",
			contentType: "application/pdf",
			content:     []byte("%PDF"),
		}
	}

	tests := []struct {
		name   string
		mutate func(*uploadForm)
		want   int
		code   string
	}{
		{"missing title", func(f *uploadForm) { delete(f.fields, "reportTitle") }, http.StatusBadRequest, "validation_error"},
		{"missing type", func(f *uploadForm) { delete(f.fields, "reportType") }, http.StatusBadRequest, "validation_error"},
		{"missing file", func(f *uploadForm) { f.fileName = "" }, http.StatusBadRequest, "validation_error"},
		{"executable", func(f *uploadForm) { f.fileName, f.contentType = "run.exe", "application/x-msdownload" }, http.StatusBadRequest, "unsupported_file_type"},
		{"non numeric patient", func(f *uploadForm) { f.fields["patientId"] = "abc" }, http.StatusBadRequest, "invalid_patient_id"},
		{"bad test id", func(f *uploadForm) { f.fields["testId"] = "not-a-uuid" }, http.StatusBadRequest, "invalid_test_id"},
		{"too large", func(f *uploadForm) { f.content = bytes.Repeat([]byte("a"), 1<<20+512<<10) }, http.StatusRequestEntityTooLarge, "file_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base()
			tt.mutate(&f)
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, f.request(t, tok))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body=%s)", rec.Code, tt.want, rec.Body)
			}
			if e := decodeError(t, rec); e.Error != tt.code {
				t.Errorf("error code = %q, want %q", e.Error, tt.code)
			}
		})
	}

	if keys := s.store.keys(); len(keys) != 0 {
		t.Errorf("rejected requests uploaded %v", keys)
	}
}

func TestPatientTestsRoute(t *testing.T) {
	s := newTestServer(t)
	p, _ := s.seedConsultation(t)

	rec := s.do(t, &pathologist, http.MethodGet, "/patients/tests?searchById=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non numeric id: status = %d", rec.Code)
	}

	rec = s.do(t, &pathologist, http.MethodGet, "/patients/tests?searchById=1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown patient: status = %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Details != "Patient not found" {
		t.Errorf("details = %q", e.Details)
	}

	rec = s.do(t, &pathologist, http.MethodGet, fmt.Sprintf("/patients/tests?searchById=%d", p.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	var res hospital.PatientTests
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Consultations) != 1 || res.Consultations[0].DoctorName != "Dr. Gregory House" {
		t.Errorf("consultations = %+v", res.Consultations)
	}
}

func TestLogsRoute_EmptyListIsArray(t *testing.T) {
	s := newTestServer(t)
	admin := hospital.Actor{ID: 1, Role: hospital.RoleAdmin}

	rec := s.do(t, &admin, http.MethodGet, "/logs/finance?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}

	rec = s.do(t, &admin, http.MethodGet, "/logs/finance?subjectId=x", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad subjectId: status = %d", rec.Code)
	}
}
