// Package webapp exposes studies, search and reports over JSON HTTP.
package webapp

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joelkehle/roi-copilot/internal/dashboard"
	"github.com/joelkehle/roi-copilot/internal/report"
	"github.com/joelkehle/roi-copilot/internal/roi"
	"github.com/joelkehle/roi-copilot/internal/search"
	"github.com/joelkehle/roi-copilot/internal/session"
	"github.com/joelkehle/roi-copilot/internal/wizard"
)

//go:embed static
var staticFiles embed.FS

const maxBodyBytes = 1 << 20

type Options struct {
	Sessions      *session.Store
	Search        *search.Service
	PDF           report.PDFRenderer
	Limiter       *RateLimiter
	WebDir        string
	SearchTimeout time.Duration
	Log           *zap.Logger
	Now           func() time.Time
}

type Server struct {
	sessions      *session.Store
	search        *search.Service
	pdf           report.PDFRenderer
	limiter       *RateLimiter
	webDir        string
	searchTimeout time.Duration
	log           *zap.Logger
	now           func() time.Time
}

func NewServer(opts Options) http.Handler {
	s := &Server{
		sessions:      opts.Sessions,
		search:        opts.Search,
		pdf:           opts.PDF,
		limiter:       opts.Limiter,
		webDir:        opts.WebDir,
		searchTimeout: opts.SearchTimeout,
		log:           opts.Log,
		now:           opts.Now,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/options", s.handleOptions)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/studies", s.handleCreateStudy)
	mux.HandleFunc("GET /api/studies/{token}", s.handleGetStudy)
	mux.HandleFunc("DELETE /api/studies/{token}", s.handleDeleteStudy)
	mux.HandleFunc("PATCH /api/studies/{token}/fields", s.handleSetFields)
	mux.HandleFunc("POST /api/studies/{token}/next", s.handleNext)
	mux.HandleFunc("POST /api/studies/{token}/previous", s.handlePrevious)
	mux.HandleFunc("POST /api/studies/{token}/jump", s.handleJump)
	mux.HandleFunc("POST /api/studies/{token}/reset", s.handleReset)
	mux.HandleFunc("POST /api/studies/{token}/submit", rateLimited(s.limiter, s.handleSubmit))
	mux.HandleFunc("GET /api/studies/{token}/report", s.handleReportMarkdown)
	mux.HandleFunc("GET /api/studies/{token}/report.html", s.handleReportHTML)
	mux.HandleFunc("GET /api/studies/{token}/report.pdf", s.handleReportPDF)
	mux.HandleFunc("POST /api/search", rateLimited(s.limiter, s.handleSearch))
	mux.HandleFunc("/", s.handleRoot)
	return instrument(s.log, mux)
}

// writeJSON encodes before writing the header so an unencodable payload
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		data = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	// Prevent stale frontend bundles from breaking the UI after deploys.
	w.Header().Set("Cache-Control", "no-store")
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if s.webDir == "" {
		sub, _ := fs.Sub(staticFiles, "static")
		http.FileServer(http.FS(sub)).ServeHTTP(w, r)
		return
	}
	if r.URL.Path == "/" || r.URL.Path == "/index.html" {
		http.ServeFile(w, r, filepath.Join(s.webDir, "index.html"))
		return
	}
	rel := strings.TrimPrefix(filepath.Clean(r.URL.Path), "/")
	if _, err := fs.Stat(os.DirFS(s.webDir), rel); err == nil {
		http.ServeFile(w, r, filepath.Join(s.webDir, rel))
		return
	}
	http.NotFound(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

type modeOption struct {
	Value roi.Mode `json:"value"`
	Label string   `json:"label"`
}

func (s *Server) handleOptions(w http.ResponseWriter, _ *http.Request) {
	modes := make([]modeOption, 0, len(roi.Modes))
	for _, m := range roi.Modes {
		modes = append(modes, modeOption{Value: m, Label: m.Label()})
	}
	provider := ""
	if s.search != nil {
		provider = s.search.Provider()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"steps":          wizard.Steps(),
		"useCases":       roi.UseCases,
		"modes":          modes,
		"searchProvider": provider,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.Example())
}

type studyView struct {
	Token string `json:"token"`
	Busy  bool   `json:"busy"`
	wizard.Snapshot
}

func view(sess *session.Session, c *wizard.Controller) studyView {
	return studyView{Token: sess.Token, Busy: sess.Busy(), Snapshot: c.Snapshot()}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return nil, false
	}
	sess, ok := s.sessions.Get(token)
	if !ok {
		writeError(w, http.StatusNotFound, "study not found")
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateStudy(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	var v studyView
	_ = sess.Do(func(c *wizard.Controller) error {
		v = view(sess, c)
		return nil
	})
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.respond(w, sess, func(*wizard.Controller) error { return nil })
}

func (s *Server) handleDeleteStudy(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("token")) {
		writeError(w, http.StatusNotFound, "study not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// errSubmitInFlight rejects edits while a calculation is running.
var errSubmitInFlight = errors.New("a calculation is in progress for this study")

// respond runs op under the session lock and writes the resulting snapshot,
// mapping wizard errors to status codes.
func (s *Server) respond(w http.ResponseWriter, sess *session.Session, op func(*wizard.Controller) error) {
	var (
		v     studyView
		opErr error
	)
	_ = sess.Do(func(c *wizard.Controller) error {
		opErr = op(c)
		v = view(sess, c)
		return nil
	})
	s.finish(w, v, opErr)
}

// mutate is respond for edits; it refuses while a submit is in flight.
func (s *Server) mutate(w http.ResponseWriter, sess *session.Session, op func(*wizard.Controller) error) {
	s.respond(w, sess, func(c *wizard.Controller) error {
		if sess.Busy() {
			return errSubmitInFlight
		}
		return op(c)
	})
}

func (s *Server) finish(w http.ResponseWriter, v studyView, opErr error) {
	if opErr != nil {
		s.writeStudyError(w, v, opErr)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) writeStudyError(w http.ResponseWriter, v studyView, err error) {
	var ve *wizard.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":       "Please correct the highlighted fields.",
			"fieldErrors": ve.Fields,
			"study":       v,
		})
	case errors.Is(err, roi.ErrAmountOutOfRange):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "Amounts must be between $0 and $1,000,000,000,000.",
			"study": v,
		})
	case errors.Is(err, roi.ErrNothingToCalculate):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "Please provide at least one investment or benefit value.",
			"study": v,
		})
	case errors.Is(err, wizard.ErrUnknownField), errors.Is(err, wizard.ErrInvalidStep):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrComplete), errors.Is(err, wizard.ErrNotAtSummary), errors.Is(err, wizard.ErrLastStep),
		errors.Is(err, wizard.ErrStudyChanged), errors.Is(err, errSubmitInFlight):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "study": v})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		s.log.Error("study_operation_failed", zap.String("token", v.Token), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to process study")
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// fieldValues accepts JSON strings, numbers or null and keeps them as raw form text.
func fieldValues(raw map[string]json.RawMessage) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			out[k] = str
			continue
		}
		var num json.Number
		if err := json.Unmarshal(v, &num); err == nil {
			out[k] = num.String()
			continue
		}
		return nil, fmt.Errorf("field %s: expected string or number", k)
	}
	return out, nil
}

func (s *Server) handleSetFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Values map[string]json.RawMessage `json:"values"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	values, err := fieldValues(body.Values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, sess, func(c *wizard.Controller) error { return c.SetAll(values) })
}

// transition applies any field values sent with the request, then op.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(*wizard.Controller) error) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Values map[string]json.RawMessage `json:"values"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	values, err := fieldValues(body.Values)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mutate(w, sess, func(c *wizard.Controller) error {
		if len(values) > 0 {
			if err := c.SetAll(values); err != nil {
				return err
			}
		}
		return op(c)
	})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*wizard.Controller).Next)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*wizard.Controller).Previous)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.mutate(w, sess, func(c *wizard.Controller) error {
		c.Reset()
		return nil
	})
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		Step *int `json:"step"`
	}
	if err := decodeBody(r, &body); err != nil || body.Step == nil {
		writeError(w, http.StatusBadRequest, "step is required")
		return
	}
	s.mutate(w, sess, func(c *wizard.Controller) error { return c.JumpTo(wizard.Step(*body.Step)) })
}

// handleSubmit holds the session lock only to capture and to commit, so
// snapshots taken while the estimator runs report busy=true.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if !sess.TryBeginSubmit() {
		writeError(w, http.StatusConflict, "a calculation is already in progress for this study")
		return
	}
	defer sess.EndSubmit()

	var (
		pending *wizard.Pending
		v       studyView
		err     error
	)
	_ = sess.Do(func(c *wizard.Controller) error {
		pending, err = c.BeginSubmit()
		if err != nil {
			sess.EndSubmit()
		}
		v = view(sess, c)
		return nil
	})
	if err != nil {
		s.finish(w, v, err)
		return
	}

	start := s.now()
	res, runErr := pending.Run(r.Context())
	s.respond(w, sess, func(c *wizard.Controller) error {
		defer sess.EndSubmit()
		if runErr != nil {
			return runErr
		}
		if err := c.Commit(pending, res); err != nil {
			return err
		}
		s.log.Info("study_submitted",
			zap.String("token", sess.Token),
			zap.String("mode", string(res.Mode)),
			zap.Bool("degraded", res.Degraded),
			zap.Int64("elapsed_ms", s.now().Sub(start).Milliseconds()))
		return nil
	})
}

// completedStudy returns the study and result of a completed session.
func (s *Server) completedStudy(w http.ResponseWriter, r *http.Request) (roi.Study, roi.Result, bool) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return roi.Study{}, roi.Result{}, false
	}
	var (
		study roi.Study
		res   *roi.Result
	)
	_ = sess.Do(func(c *wizard.Controller) error {
		study = c.Study()
		res = c.Result()
		return nil
	})
	if res == nil {
		writeError(w, http.StatusNotFound, "report not ready")
		return roi.Study{}, roi.Result{}, false
	}
	return study, *res, true
}

func (s *Server) handleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	study, res, ok := s.completedStudy(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report.Markdown(study, res, s.now()))
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	study, res, ok := s.completedStudy(w, r)
	if !ok {
		return
	}
	doc, err := report.HTML(report.Markdown(study, res, s.now()))
	if err != nil {
		s.log.Error("render_report_html_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	if s.pdf == nil {
		writeError(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	study, res, ok := s.completedStudy(w, r)
	if !ok {
		return
	}
	pdf, err := s.pdf.Render(r.Context(), report.Markdown(study, res, s.now()))
	if err != nil {
		s.log.Error("render_report_pdf_failed", zap.String("token", r.PathValue("token")), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to render pdf")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": report.Filename(study.Project.Name, "pdf"),
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// searchState mirrors the form-state shape the search page renders.
type searchState struct {
	Message     string              `json:"message"`
	Data        *search.Response    `json:"data,omitempty"`
	Error       bool                `json:"error,omitempty"`
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
	Superseded  bool                `json:"superseded,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search unavailable")
		return
	}
	var body struct {
		Query string `json:"query"`
		Token string `json:"token"`
	}
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		body.Query = r.FormValue("query")
		body.Token = r.FormValue("token")
	}

	if _, err := search.ValidateQuery(body.Query); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, searchState{
			Message:     search.MsgInvalidInput,
			Error:       true,
			FieldErrors: map[string][]string{"query": {search.MsgQueryTooShort}},
		})
		return
	}

	var (
		sess *session.Session
		seq  uint64
	)
	if body.Token != "" {
		var ok bool
		if sess, ok = s.sessions.Get(body.Token); !ok {
			writeError(w, http.StatusNotFound, "study not found")
			return
		}
		seq = sess.BeginSearch()
	}

	ctx := r.Context()
	if s.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.searchTimeout)
		defer cancel()
	}
	resp, err := s.search.Search(ctx, body.Query)

	if sess != nil && !sess.IsLatestSearch(seq) {
		writeJSON(w, http.StatusConflict, searchState{
			Message:    "Search superseded by a newer query.",
			Error:      true,
			Superseded: true,
		})
		return
	}
	if err != nil {
		msg := search.MsgUnexpected
		if errors.Is(err, search.ErrMissingResults) {
			msg = search.MsgNoResults
		}
		writeJSON(w, http.StatusBadGateway, searchState{Message: msg, Error: true})
		return
	}
	writeJSON(w, http.StatusOK, searchState{Message: search.MsgSuccess, Data: &resp})
}
