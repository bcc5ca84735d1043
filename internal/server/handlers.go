package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/lvglgen/internal/generator"
	"github.com/aristath/lvglgen/internal/history"
	"github.com/aristath/lvglgen/internal/modules/arclabel"
	"github.com/aristath/lvglgen/internal/preview"
	"github.com/aristath/lvglgen/internal/project"
	"github.com/aristath/lvglgen/internal/validation"
)

// maxConfigBytes bounds POST /api/generate bodies; embedded animations are
// read from disk, not uploaded.
const maxConfigBytes = 1 << 20

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if db := s.container.HistoryDB; db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("History database health check failed")
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": generator.Version,
		"service": "lvglgen",
	})
}

// handleWidgets lists the registered widget kinds and actions.
func (s *Server) handleWidgets(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"widgets": s.container.WidgetTypes.Names(),
		"actions": s.container.Actions.Names(),
	})
}

type fileResponse struct {
	Name    string `json:"name"`
	Size    int    `json:"size"`
	Content string `json:"content"`
}

type widgetResponse struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

type planEntryResponse struct {
	WidgetID      string `json:"widget_id"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Embedded      bool   `json:"embedded"`
	PSRAMBytes    int    `json:"psram_bytes"`
	InternalBytes int    `json:"internal_bytes"`
	Error         string `json:"error,omitempty"`
}

type validationErrorResponse struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// handleGenerate translates a YAML body without touching the output
// directory or history and returns the sources plus the memory plan.
// `file:` references and ?dir are confined to the configuration directory.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(body) > maxConfigBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge, "configuration too large")
		return
	}

	dir := filepath.Dir(s.cfg.ConfigPath)
	if sub := r.URL.Query().Get("dir"); sub != "" {
		if dir, err = project.Within(dir, sub); err != nil {
			s.writeError(w, http.StatusBadRequest, "dir must be a relative path inside the configuration directory")
			return
		}
	}

	doc, err := project.Parse(body, dir)
	if err != nil {
		s.writeConfigError(w, err)
		return
	}
	doc.Confined = true

	out, err := s.container.Generator.Build(doc)
	widgetsOut := make([]widgetResponse, 0, len(out.Widgets))
	for _, wo := range out.Widgets {
		resp := widgetResponse{ID: wo.ID, Kind: wo.Kind, Path: wo.Path}
		if wo.Err != nil {
			resp.Error = wo.Err.Error()
		}
		widgetsOut = append(widgetsOut, resp)
	}
	if err != nil {
		var errs validation.Errors
		if errors.As(err, &errs) {
			s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"errors":  toValidationResponse(errs),
				"widgets": widgetsOut,
			})
			return
		}
		s.log.Error().Err(err).Msg("Failed to render sources")
		s.writeError(w, http.StatusInternalServerError, "failed to render sources")
		return
	}

	report, err := s.container.Generator.Plan(r.Context(), out)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	plan := make([]planEntryResponse, 0, len(report.Entries))
	for _, e := range report.Entries {
		entry := planEntryResponse{
			WidgetID:      e.WidgetID,
			Width:         e.Width,
			Height:        e.Height,
			Embedded:      e.Embedded,
			PSRAMBytes:    e.PSRAM,
			InternalBytes: e.Internal,
		}
		if e.Err != nil {
			entry.Error = e.Err.Error()
		}
		plan = append(plan, entry)
	}

	files := make([]fileResponse, 0, len(out.Files))
	for _, f := range out.Files {
		files = append(files, fileResponse{Name: f.Name, Size: len(f.Content), Content: string(f.Content)})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"files":    files,
		"widgets":  widgetsOut,
		"uses":     out.Session.Uses(),
		"plan":     plan,
		"psram":    report.PSRAM,
		"internal": report.Internal,
	})
}

func (s *Server) writeConfigError(w http.ResponseWriter, err error) {
	var errs validation.Errors
	errs.Add(err)
	var inv *validation.Invalid
	if !errors.As(err, &inv) {
		// YAML syntax errors carry their own position text
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"errors": toValidationResponse(errs),
	})
}

func toValidationResponse(errs validation.Errors) []validationErrorResponse {
	out := make([]validationErrorResponse, 0, len(errs))
	for _, inv := range errs {
		out = append(out, validationErrorResponse{
			Path:   inv.Path,
			Reason: inv.Reason,
			Line:   inv.Line,
			Column: inv.Column,
		})
	}
	return out
}

// handleListRuns returns recent generation runs.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.container.HistoryRepo.List(limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRun returns one run with its manifest.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.container.HistoryRepo.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handlePreviewArcLabel renders an arc label from query parameters.
func (s *Server) handlePreviewArcLabel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := map[string]int{"radius": 100, "start": 0, "end": 360, "rotation": 0}
	for name := range params {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, name+" must be an integer")
			return
		}
		params[name] = n
	}
	for _, name := range []string{"start", "end", "rotation"} {
		if params[name] < 0 || params[name] > 360 {
			s.writeError(w, http.StatusBadRequest, name+" must be between 0 and 360")
			return
		}
	}
	if params["radius"] <= 0 || params["radius"] > 1000 {
		s.writeError(w, http.StatusBadRequest, "radius must be between 1 and 1000")
		return
	}

	text := q.Get("text")
	if text == "" {
		text = "arclabel"
	}
	geo := arclabel.Translate(params["start"], params["end"], params["rotation"], params["radius"])

	s.writePNG(w, func(out io.Writer) error {
		return preview.RenderArcLabel(out, preview.ArcLabel{
			Text:   text,
			Radius: params["radius"],
			Start:  geo.Start,
			End:    geo.End,
			Size:   geo.Size,
		})
	})
}

// writePNG renders into memory first so a failed render still gets a clean
// JSON error instead of a truncated image.
func (s *Server) writePNG(w http.ResponseWriter, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.log.Error().Err(err).Msg("Failed to render preview")
		s.writeError(w, http.StatusInternalServerError, "failed to render preview")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write preview")
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
