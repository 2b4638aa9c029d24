package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/cme-volume-scraper/internal/volume"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const notAvailable = "N/A"

type homeRow struct {
	ID          int64
	Label       string
	LastUpdated string
	Counts      []string
	ScrapedAt   string
}

type homePage struct {
	Labels  []string
	Rows    []homeRow
	Columns int
}

type viewField struct {
	Name  string
	Value string
}

type viewPage struct {
	URL         string
	Label       string
	LastUpdated string
	Fields      []viewField
	Timestamp   string
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	readings, err := s.scraper.Recent(r.Context(), s.cfg.API.RecentLimit)
	if err != nil {
		s.logger.Error("load recent readings failed", zap.Error(err))
		s.renderHTML(w, http.StatusInternalServerError, "error.html", err.Error())
		return
	}
	page := homePage{
		Labels:  volume.CountLabels[:],
		Rows:    make([]homeRow, 0, len(readings)),
		Columns: volume.CountFields + 4,
	}
	for _, rd := range readings {
		row := homeRow{
			ID:          rd.ID,
			Label:       displayString(rd.Label),
			LastUpdated: displayString(rd.LastUpdated),
			ScrapedAt:   rd.ScrapedAt.Format(time.RFC3339),
		}
		for _, c := range rd.Counts() {
			row.Counts = append(row.Counts, displayCount(c))
		}
		page.Rows = append(page.Rows, row)
	}
	s.renderHTML(w, http.StatusOK, "home.html", page)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) {
	ext, err := s.scraper.Extract(r.Context())
	if err != nil {
		s.logger.Warn("live extraction failed", zap.Error(err))
		s.renderHTML(w, http.StatusInternalServerError, "error.html", err.Error())
		return
	}
	page := viewPage{
		URL:         ext.URL,
		Label:       displayString(ext.Reading.Label),
		LastUpdated: displayString(ext.Reading.LastUpdated),
		Timestamp:   s.clock.Now().Format(time.DateTime),
	}
	for i, c := range ext.Reading.Counts() {
		page.Fields = append(page.Fields, viewField{Name: volume.CountLabels[i], Value: displayCount(c)})
	}
	s.renderHTML(w, http.StatusOK, "view.html", page)
}

func (s *Server) renderHTML(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("render template failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Warn("write page failed", zap.Error(err))
	}
}

func displayString(v *string) string {
	if v == nil || *v == "" {
		return notAvailable
	}
	return *v
}

func displayCount(v *int64) string {
	if v == nil {
		return notAvailable
	}
	return strconv.FormatInt(*v, 10)
}
