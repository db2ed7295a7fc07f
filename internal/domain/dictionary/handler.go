package dictionary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/curation/curator/internal/platform/auth"
	"github.com/curation/curator/pkg/pagination"
)

// Suggester supplies candidate keyword/category pairs from free text. The
// handler appends its output as ordinary terms in provider-response order.
type Suggester interface {
	Suggest(ctx context.Context, t Type, text string) ([]Term, error)
}

// Exporter serializes rows for download. CSV column order and boolean text
// rendering are the exporter's contract with downstream consumers.
type Exporter interface {
	ContentType() string
	FileName(t Type) string
	Write(w io.Writer, rows []*Row) error
}

// Handler provides the REST endpoints for curation sessions.
type Handler struct {
	mgr       *Manager
	suggester Suggester
	exporter  Exporter
}

// NewHandler creates a session handler. suggester may be nil when no
// suggestion provider is configured.
func NewHandler(mgr *Manager, suggester Suggester, exporter Exporter) *Handler {
	return &Handler{mgr: mgr, suggester: suggester, exporter: exporter}
}

// RegisterRoutes registers the session routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	sessions := api.Group("/sessions", auth.RequireRole("researcher"))
	sessions.POST("", h.CreateSession)
	sessions.DELETE("/:id", h.DeleteSession)
	sessions.PUT("/:id/:type/range", h.SetRange)
	sessions.GET("/:id/:type/systems", h.GetSystems)
	sessions.GET("/:id/:type/rows", h.ListRows)
	sessions.PUT("/:id/:type/rows/:key", h.UpdateRow)
	sessions.GET("/:id/:type/keywords", h.ListKeywords)
	sessions.POST("/:id/:type/keywords", h.AddKeywords)
	sessions.DELETE("/:id/:type/keywords", h.ClearKeywords)
	sessions.POST("/:id/:type/deselect-all", h.DeselectAll)
	sessions.POST("/:id/:type/suggest", h.SuggestKeywords)
	sessions.GET("/:id/:type/export", h.Export)
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	s, err := h.mgr.Get(id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return s, nil
}

func dictType(c echo.Context) (Type, error) {
	t := Type(c.Param("type"))
	if !t.Valid() {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown dictionary type: %q", c.Param("type")))
	}
	return t, nil
}

// CreateSession handles POST /api/v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	s := h.mgr.Create()
	return c.JSON(http.StatusCreated, map[string]string{"session_id": s.ID.String()})
}

// DeleteSession handles DELETE /api/v1/sessions/:id
func (h *Handler) DeleteSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	h.mgr.Delete(id)
	return c.NoContent(http.StatusNoContent)
}

// RangeRequest is the body of PUT .../range. Dates use the 2006-01-02 form.
type RangeRequest struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Outpatient bool   `json:"outpatient"`
	Inpatient  bool   `json:"inpatient"`
}

// SetRange handles PUT /api/v1/sessions/:id/:type/range
func (h *Handler) SetRange(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}

	var req RangeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid start date: %q", req.Start))
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid end date: %q", req.End))
	}
	if end.Before(start) {
		return echo.NewHTTPError(http.StatusBadRequest, "end date precedes start date")
	}

	vc := VisitContext{Outpatient: req.Outpatient, Inpatient: req.Inpatient}
	if err := s.SetRange(c.Request().Context(), t, start, end, vc); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"systems": s.Systems(t),
		"rows":    len(s.AllRows(t)),
	})
}

// GetSystems handles GET /api/v1/sessions/:id/:type/systems
func (h *Handler) GetSystems(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"systems": s.Systems(t)})
}

// ListRows handles GET /api/v1/sessions/:id/:type/rows
// By default the current matching subset is returned; ?all=true returns the
// full unified collection.
func (h *Handler) ListRows(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}

	rows := s.Rows(t)
	if c.QueryParam("all") == "true" {
		rows = s.AllRows(t)
	}

	p := pagination.FromContext(c)
	total := len(rows)
	if p.Offset >= total {
		rows = []*Row{}
	} else {
		end := p.Offset + p.Limit
		if end > total {
			end = total
		}
		rows = rows[p.Offset:end]
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(rows, total, p.Limit, p.Offset))
}

// RowUpdateRequest is the body of PUT .../rows/:key. Nil fields are left
// untouched.
type RowUpdateRequest struct {
	Desired  *bool   `json:"desired"`
	Category *string `json:"category"`
}

// UpdateRow handles PUT /api/v1/sessions/:id/:type/rows/:key
func (h *Handler) UpdateRow(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}
	key, err := ParseKey(c.Param("key"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req RowUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Desired == nil && req.Category == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	if req.Desired != nil {
		if err := s.SetDesired(t, key, *req.Desired); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
	}
	if req.Category != nil {
		if err := s.SetCategory(t, key, *req.Category); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// ListKeywords handles GET /api/v1/sessions/:id/:type/keywords
func (h *Handler) ListKeywords(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"terms": s.Terms(t)})
}

// KeywordsRequest is the body of POST .../keywords.
type KeywordsRequest struct {
	Terms []struct {
		Text     string `json:"text"`
		Category string `json:"category"`
	} `json:"terms"`
}

// AddKeywords handles POST /api/v1/sessions/:id/:type/keywords
func (h *Handler) AddKeywords(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}

	var req KeywordsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Terms) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one term is required")
	}

	terms := make([]Term, 0, len(req.Terms))
	for _, rt := range req.Terms {
		terms = append(terms, NewTerm(rt.Text, rt.Category))
	}
	if err := s.AddTerms(t, terms...); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"terms":   s.Terms(t),
		"matched": len(s.Rows(t)),
	})
}

// ClearKeywords handles DELETE /api/v1/sessions/:id/:type/keywords
func (h *Handler) ClearKeywords(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}
	if err := s.ClearTerms(t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// DeselectAll handles POST /api/v1/sessions/:id/:type/deselect-all
func (h *Handler) DeselectAll(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}
	if err := s.DeselectAll(t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// SuggestRequest is the body of POST .../suggest.
type SuggestRequest struct {
	Text string `json:"text"`
}

// SuggestKeywords handles POST /api/v1/sessions/:id/:type/suggest
// Suggestions are returned to the caller; they become active terms only when
// added back through AddKeywords, like any user-entered term.
func (h *Handler) SuggestKeywords(c echo.Context) error {
	if h.suggester == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "no suggestion provider configured")
	}
	if _, err := h.session(c); err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}

	var req SuggestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}

	terms, err := h.suggester.Suggest(c.Request().Context(), t, req.Text)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"terms": terms})
}

// Export handles GET /api/v1/sessions/:id/:type/export
// It streams the desired rows as a CSV download.
func (h *Handler) Export(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	t, err := dictType(c)
	if err != nil {
		return err
	}

	rows := s.DesiredRows(t)
	c.Response().Header().Set(echo.HeaderContentType, h.exporter.ContentType())
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", h.exporter.FileName(t)))
	c.Response().WriteHeader(http.StatusOK)
	return h.exporter.Write(c.Response(), rows)
}
