package web

import (
	"net/http"
	"strconv"

	"mytube/internal/application/orchestrators"
	"mytube/internal/domain/clip"
)

// Media is only ever served from paths the catalog or config produced;
// request parameters select an entry and never form a path.

func (s *server) clipFromQuery(r *http.Request) (clip.Clip, bool) {
	idx, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		return clip.Clip{}, false
	}
	return s.deps.Catalog.Get(idx)
}

// handleMediaClip handles GET /media/clip?index=N
func (s *server) handleMediaClip(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clipFromQuery(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, c.MediaPath)
}

// handleMediaThumbnail handles GET /media/thumbnail?index=N
func (s *server) handleMediaThumbnail(w http.ResponseWriter, r *http.Request) {
	c, ok := s.clipFromQuery(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, c.ThumbnailPath)
}

// handleMediaInfo handles GET /media/info?kind=one_more|finished
func (s *server) handleMediaInfo(w http.ResponseWriter, r *http.Request) {
	terminal := s.deps.Session.Terminal
	if terminal == nil {
		http.NotFound(w, r)
		return
	}
	var (
		path string
		ok   bool
	)
	switch orchestrators.InfoKind(r.URL.Query().Get("kind")) {
	case orchestrators.InfoOneMore:
		path, ok = terminal.OnOneRemaining()
	case orchestrators.InfoFinished:
		path, ok = terminal.OnLimitReached()
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}
