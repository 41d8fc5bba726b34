package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"mytube/internal/adapters/http/middleware"
	"mytube/internal/application/orchestrators"
	"mytube/internal/application/projections"
	"mytube/internal/domain/progress"
)

//go:embed templates/*.html
var templateFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set), preventing XSS.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	if md == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

func parseKioskTemplate() (*template.Template, error) {
	return template.New("kiosk.html").ParseFS(templateFS, "templates/kiosk.html")
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("json_encode_failed", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (s *server) view(p progress.Progress) projections.SessionView {
	return projections.QueryGetSessionView(projections.GetSessionViewQuery{
		Progress:  p,
		StartedAt: s.clock.Started(),
		Now:       timeNow(),
	}, projections.GetSessionViewDeps{
		Catalog:      s.deps.Catalog,
		LimitChoices: s.deps.Settings.LimitChoices,
		ColorDone:    s.deps.Settings.ColorDone,
		ColorUndone:  s.deps.Settings.ColorUndone,
	})
}

func colorOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

type galleryItem struct {
	Index        int
	Name         string
	ThumbnailURL string
}

// handleKiosk handles GET /
func (s *server) handleKiosk(w http.ResponseWriter, r *http.Request) {
	p := orchestrators.ExecuteLoadSession(r.Context(), s.deps.Session)

	clips := s.deps.Catalog.ListClips()
	gallery := make([]galleryItem, 0, len(clips))
	for _, c := range clips {
		gallery = append(gallery, galleryItem{
			Index:        c.Index,
			Name:         c.Name,
			ThumbnailURL: fmt.Sprintf("/media/thumbnail?index=%d", c.Index),
		})
	}

	data := map[string]any{
		"Title":        s.deps.Settings.Title,
		"Information":  s.info,
		"Gallery":      gallery,
		"View":         s.view(p),
		"PINRequired":  s.deps.Settings.PINHash != "",
		"ParentalOpen": middleware.IsParental(r.Context()),
		"CSRFToken":    csrf.Token(r),
		"ColorDone":    colorOr(s.deps.Settings.ColorDone, projections.DefaultColorDone),
	}
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// handleGetSession handles GET /api/session
func (s *server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p := orchestrators.ExecuteLoadSession(r.Context(), s.deps.Session)
	writeJSON(w, http.StatusOK, s.view(p))
}

type selectResponse struct {
	Outcome progress.Outcome        `json:"outcome"`
	ClipURL string                  `json:"clip_url,omitempty"`
	View    projections.SessionView `json:"view"`
}

// handleSelectClip handles POST /api/session/select
func (s *server) handleSelectClip(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Index *int `json:"index"`
	}
	if err := strictDecode(r, &input); err != nil || input.Index == nil {
		writeJSONError(w, http.StatusBadRequest, "index is required")
		return
	}

	res := orchestrators.ExecuteSelectClip(r.Context(), orchestrators.SelectClipInput{Index: *input.Index}, s.deps.Session)
	out := selectResponse{Outcome: res.Outcome, View: s.view(res.Progress)}
	if res.Outcome == progress.OutcomePlayable {
		out.ClipURL = fmt.Sprintf("/media/clip?index=%d", res.Clip.Index)
	}
	writeJSON(w, http.StatusOK, out)
}

type finishResponse struct {
	Phase   progress.Phase          `json:"phase"`
	InfoURL string                  `json:"info_url,omitempty"`
	View    projections.SessionView `json:"view"`
}

// handleFinishClip handles POST /api/session/finish
func (s *server) handleFinishClip(w http.ResponseWriter, r *http.Request) {
	res := orchestrators.ExecuteFinishClip(r.Context(), s.deps.Session)
	out := finishResponse{Phase: res.Phase, View: s.view(res.Progress)}
	if res.Info != orchestrators.InfoNone {
		out.InfoURL = "/media/info?kind=" + string(res.Info)
	}
	writeJSON(w, http.StatusOK, out)
}
