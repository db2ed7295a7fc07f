package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type stubExporter struct{}

func (stubExporter) ContentType() string    { return "text/csv" }
func (stubExporter) FileName(t Type) string { return string(t) + "_desired.csv" }

func (stubExporter) Write(w io.Writer, rows []*Row) error {
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, r.Key.String()); err != nil {
			return err
		}
	}
	return nil
}

type stubSuggester struct {
	terms []Term
	err   error
}

func (s *stubSuggester) Suggest(_ context.Context, _ Type, _ string) ([]Term, error) {
	return s.terms, s.err
}

func newTestHandler(src RowSource) (*Handler, *Manager, *echo.Echo) {
	mgr := NewManager(NewResolver(DefaultCutovers()), src, nil, zerolog.Nop())
	h := NewHandler(mgr, &stubSuggester{terms: []Term{NewTerm("ovar*", "oncology")}}, stubExporter{})
	return h, mgr, echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func sessionContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, id uuid.UUID, typ string, extra ...string) echo.Context {
	c := e.NewContext(req, rec)
	names := []string{"id", "type"}
	values := []string{id.String(), typ}
	for i := 0; i+1 < len(extra); i += 2 {
		names = append(names, extra[i])
		values = append(values, extra[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c
}

func loadedSession(t *testing.T, mgr *Manager) *Session {
	t.Helper()
	s := mgr.Create()
	if err := s.SetRange(context.Background(), TypeDx, date(2016, 1, 1), date(2020, 12, 31), VisitContext{}); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	return s
}

func TestHandler_CreateSession(t *testing.T) {
	h, mgr, e := newTestHandler(&mockSource{})
	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, ""), rec)

	if err := h.CreateSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	id, err := uuid.Parse(resp["session_id"])
	if err != nil {
		t.Fatalf("session_id is not a uuid: %q", resp["session_id"])
	}
	if _, err := mgr.Get(id); err != nil {
		t.Errorf("created session not retrievable: %v", err)
	}
}

func TestHandler_DeleteSession(t *testing.T) {
	h, mgr, e := newTestHandler(&mockSource{})
	s := mgr.Create()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(s.ID.String())

	if err := h.DeleteSession(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if _, err := mgr.Get(s.ID); err == nil {
		t.Error("session still present after delete")
	}
}

func TestHandler_SetRange(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := mgr.Create()

	body := `{"start":"2016-01-01","end":"2020-12-31"}`
	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, body), rec, s.ID, "dx")

	if err := h.SetRange(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Systems []System `json:"systems"`
		Rows    int      `json:"rows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !systemsEqual(resp.Systems, []System{SystemICD10}) || resp.Rows != 3 {
		t.Errorf("response = %+v", resp)
	}
}

func TestHandler_SetRange_EndBeforeStart(t *testing.T) {
	h, mgr, e := newTestHandler(&mockSource{})
	s := mgr.Create()

	body := `{"start":"2020-01-01","end":"2019-01-01"}`
	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, body), rec, s.ID, "dx")

	err := h.SetRange(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetRange_UnknownType(t *testing.T) {
	h, mgr, e := newTestHandler(&mockSource{})
	s := mgr.Create()

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, `{}`), rec, s.ID, "bogus")

	err := h.SetRange(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_SetRange_LoadFailure(t *testing.T) {
	src := &mockSource{err: fmt.Errorf("database unavailable")}
	h, mgr, e := newTestHandler(src)
	s := mgr.Create()

	body := `{"start":"2016-01-01","end":"2020-12-31"}`
	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, body), rec, s.ID, "dx")

	err := h.SetRange(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %v", err)
	}
}

func TestHandler_SessionNotFound(t *testing.T) {
	h, _, e := newTestHandler(&mockSource{})

	rec := httptest.NewRecorder()
	c := sessionContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, uuid.New(), "dx")

	err := h.GetSystems(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListRows(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	rec := httptest.NewRecorder()
	c := sessionContext(e, httptest.NewRequest(http.MethodGet, "/?limit=2", nil), rec, s.ID, "dx")

	if err := h.ListRows(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data    []Row `json:"data"`
		Total   int   `json:"total"`
		HasMore bool  `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("response = total %d, page %d, has_more %v", resp.Total, len(resp.Data), resp.HasMore)
	}
}

func TestHandler_UpdateRow(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	key := Key{FileID: "dx_union", Ordinal: 0}
	body := `{"desired":true,"category":"oncology"}`
	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, body), rec, s.ID, "dx", "key", key.String())

	if err := h.UpdateRow(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	desired := s.DesiredRows(TypeDx)
	if len(desired) != 1 || desired[0].Category != "oncology" {
		t.Errorf("row not updated: %+v", desired)
	}
}

func TestHandler_UpdateRow_Empty(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, `{}`), rec, s.ID, "dx", "key", "dx_union#0")

	err := h.UpdateRow(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_UpdateRow_MalformedKey(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPut, `{"desired":true}`), rec, s.ID, "dx", "key", "no-ordinal")

	err := h.UpdateRow(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Keywords(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	body := `{"terms":[{"text":"breast","category":"oncology"},{"text":"diabetes"}]}`
	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPost, body), rec, s.ID, "dx")

	if err := h.AddKeywords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Terms   []Term `json:"terms"`
		Matched int    `json:"matched"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Terms) != 2 || resp.Matched != 2 {
		t.Errorf("response = %+v", resp)
	}

	// Clearing reverts the subset without dropping selections.
	rec = httptest.NewRecorder()
	c = sessionContext(e, httptest.NewRequest(http.MethodDelete, "/", nil), rec, s.ID, "dx")
	if err := h.ClearKeywords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.Rows(TypeDx)); got != 3 {
		t.Errorf("rows after clear = %d, want 3", got)
	}
	if got := len(s.DesiredRows(TypeDx)); got != 2 {
		t.Errorf("desired after clear = %d, want 2", got)
	}
}

func TestHandler_AddKeywords_Empty(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPost, `{"terms":[]}`), rec, s.ID, "dx")

	err := h.AddKeywords(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_DeselectAll(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)
	if err := s.AddTerms(TypeDx, NewTerm("neoplasm", "")); err != nil {
		t.Fatalf("AddTerms: %v", err)
	}

	rec := httptest.NewRecorder()
	c := sessionContext(e, httptest.NewRequest(http.MethodPost, "/", nil), rec, s.ID, "dx")

	if err := h.DeselectAll(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(s.DesiredRows(TypeDx)); got != 0 {
		t.Errorf("desired after deselect-all = %d, want 0", got)
	}
}

func TestHandler_Suggest(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPost, `{"text":"ovarian disease"}`), rec, s.ID, "dx")

	if err := h.SuggestKeywords(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Terms []Term `json:"terms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Terms) != 1 || resp.Terms[0].Text != "ovar*" || !resp.Terms[0].IsWildcard {
		t.Errorf("response = %+v", resp)
	}

	// Suggestions are returned, not applied.
	if got := len(s.Terms(TypeDx)); got != 0 {
		t.Errorf("suggestion leaked into active terms: %d", got)
	}
}

func TestHandler_Suggest_NotConfigured(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	mgr := NewManager(NewResolver(DefaultCutovers()), src, nil, zerolog.Nop())
	h := NewHandler(mgr, nil, stubExporter{})
	e := echo.New()
	s := mgr.Create()

	rec := httptest.NewRecorder()
	c := sessionContext(e, jsonRequest(http.MethodPost, `{"text":"x"}`), rec, s.ID, "dx")

	err := h.SuggestKeywords(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %v", err)
	}
}

func TestHandler_Export(t *testing.T) {
	src := &mockSource{files: map[Type][]SourceFile{TypeDx: dxSourceFiles()}}
	h, mgr, e := newTestHandler(src)
	s := loadedSession(t, mgr)
	if err := s.SetDesired(TypeDx, Key{FileID: "dx_union", Ordinal: 0}, true); err != nil {
		t.Fatalf("SetDesired: %v", err)
	}

	rec := httptest.NewRecorder()
	c := sessionContext(e, httptest.NewRequest(http.MethodGet, "/", nil), rec, s.ID, "dx")

	if err := h.Export(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "dx_desired.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "dx_union#0" {
		t.Errorf("body = %q", got)
	}
}
