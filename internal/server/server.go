package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/topicmap/internal/database"
	"github.com/TobiSchelling/topicmap/internal/graph"
	"github.com/TobiSchelling/topicmap/internal/metrics"
	"github.com/TobiSchelling/topicmap/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for browsing snapshots and downloading exports.
type Server struct {
	db       *database.DB
	pipeline *pipeline.Pipeline
	opts     graph.Options
	pages    map[string]*template.Template
	mux      *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB, p *pipeline.Pipeline, opts graph.Options) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown":    renderMarkdown,
		"formatRange": database.FormatRange,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "snapshot.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pipeline: p, opts: opts, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("GET /snapshots/{id}", s.handleSnapshot)
	s.mux.HandleFunc("POST /topics/{id}/notes", s.handleTopicNotes)
	s.mux.HandleFunc("GET /timespans/{id}/graph.gexf", s.handleGraph)
	s.mux.HandleFunc("GET /timespans/{id}/media.csv", s.handleMediaTable)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

type topicView struct {
	database.Topic
	Snapshots []database.Snapshot
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	topics, err := s.db.GetAllTopics()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	views := make([]topicView, 0, len(topics))
	for _, t := range topics {
		snaps, _ := s.db.GetSnapshots(t.ID)
		views = append(views, topicView{Topic: t, Snapshots: snaps})
	}

	s.render(w, "index.html", map[string]any{
		"Topics": views,
	})
}

type timespanView struct {
	database.Timespan
	FocusName string
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	snap, err := s.db.GetSnapshot(id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if snap == nil {
		http.NotFound(w, r)
		return
	}
	topic, _ := s.db.GetTopic(snap.TopicID)
	timespans, _ := s.db.GetTimespansForSnapshot(id)

	focusNames := make(map[int64]string)
	if foci, err := s.db.GetTopicFoci(snap.TopicID); err == nil {
		for _, f := range foci {
			focusNames[f.ID] = f.FocalSetName + ": " + f.Name
		}
	}
	views := make([]timespanView, len(timespans))
	for i, ts := range timespans {
		views[i] = timespanView{Timespan: ts, FocusName: focusNames[ts.FocusID]}
	}

	s.render(w, "snapshot.html", map[string]any{
		"Snapshot":  snap,
		"Topic":     topic,
		"Timespans": views,
	})
}

func (s *Server) handleTopicNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	notes := strings.TrimSpace(r.FormValue("notes"))
	if err := s.db.SetTopicNotes(id, notes); err != nil {
		log.Printf("Error saving notes for topic %d: %v", id, err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	opts := s.opts
	if v := r.URL.Query().Get("max_sources"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.MaxSources = n
		}
	}
	if v := r.URL.Query().Get("color_field"); v != "" {
		opts.ColorField = v
	}

	data, err := s.pipeline.ExportGraph(r.Context(), id, opts)
	if err != nil {
		s.exportError(w, r, id, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="timespan-%d.gexf"`, id))
	w.Write(data)
}

func (s *Server) handleMediaTable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.pipeline.ExportMediaTable(r.Context(), &buf, id); err != nil {
		s.exportError(w, r, id, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="timespan-%d-media.csv"`, id))
	w.Write(buf.Bytes())
}

func (s *Server) exportError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if errors.Is(err, pipeline.ErrTimespanNotFound) {
		http.NotFound(w, r)
		return
	}
	log.Printf("Error exporting timespan %d: %v", id, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, p *pipeline.Pipeline, opts graph.Options, port int) error {
	srv, err := New(db, p, opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
