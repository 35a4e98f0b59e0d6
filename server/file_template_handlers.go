package server

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-portal/guard"
	"github.com/jrsteele09/go-portal/internal/utils"
	"github.com/jrsteele09/go-portal/session"
	"github.com/jrsteele09/go-portal/users"
	"github.com/rs/zerolog/log"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	layoutTemplate  = "layout.html"
	partialTemplate = "partials.html"
)

//go:embed templates/*
var templateFiles embed.FS

// pageNames are the templates rendered inside the layout
var pageNames = []string{
	"index", "pricing", "portfolio", "services", "service", "contact",
	"login", "register", "pending", "loading", "error", "not_found",
	"dashboard", "plans", "invoices", "requests", "settings",
}

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2 Jan 2006")
	},
	"optDate": func(t *time.Time) string {
		d := utils.Value(t)
		if d.IsZero() {
			return "-"
		}
		return d.Format("2 Jan 2006")
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"fullName": func(u *users.User) string {
		return u.FullName()
	},
}

func TemplateFilesFS() fs.FS {
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// ParseTemplate parses a page together with the shared layout and partials
func ParseTemplate(name string) (*template.Template, error) {
	return template.New(layoutTemplate).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), layoutTemplate, partialTemplate, name)
}

type pages struct {
	templates map[string]*template.Template
}

func loadPages() (*pages, error) {
	p := &pages{templates: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tmpl, err := ParseTemplate(name + ".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.templates[name] = tmpl
	}
	return p, nil
}

// PageData is the model every page template receives
type PageData struct {
	AppName       string
	Title         string
	Path          string
	Flash         string
	Error         string
	User          *users.User
	Authenticated bool
	Approved      bool
	Year          int
	Fields        map[string]string
	Form          any
	Data          any
}

// pageData fills the common fields from the request and its session
func (s *Server) pageData(w http.ResponseWriter, r *http.Request, title string) PageData {
	data := PageData{
		AppName: s.config.GetAppName(),
		Title:   title,
		Path:    r.URL.Path,
		Flash:   takeFlash(w, r),
		Error:   r.URL.Query().Get("error"),
		Year:    NowTimeFunc().Year(),
		Fields:  map[string]string{},
	}
	if msg, ok := r.Context().Value(ContextKeyFlash).(string); ok && data.Flash == "" {
		data.Flash = msg
	}
	if sc := sessionFrom(r); sc != nil {
		snap := sc.Manager.Snapshot()
		if sc.Manager.IsAuthenticated() {
			data.User = snap.User
			data.Authenticated = true
			data.Approved = snap.IsApproved()
		}
	}
	return data
}

// render executes the named page into a buffer so a template failure can still become an error page
func (s *Server) render(w http.ResponseWriter, status int, name string, data PageData) {
	tmpl, ok := s.pages.templates[name]
	if !ok {
		log.Error().Str("template", name).Msg("unknown template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, layoutTemplate, data); err != nil {
		log.Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "500 - Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with a link back to the failed URL
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	data := s.pageData(w, r, "Something went wrong")
	data.Error = msg
	data.Data = map[string]string{"RetryURL": r.URL.RequestURI()}
	s.render(w, status, "error", data)
}

// renderLoading shows a placeholder that reloads itself until the session settles
func (s *Server) renderLoading(w http.ResponseWriter, r *http.Request) {
	data := s.pageData(w, r, "Loading")
	data.Data = map[string]string{"RetryURL": r.URL.RequestURI()}
	w.Header().Set("Cache-Control", "no-store")
	s.render(w, http.StatusOK, "loading", data)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusNotFound, "not_found", s.pageData(w, r, "Page not found"))
}

// sessionErrorRedirect sends a request whose backend session ended to login, returning to
// returnTo (the current page when empty) afterwards
func (s *Server) sessionErrorRedirect(w http.ResponseWriter, r *http.Request, err error, returnTo string) bool {
	if !errors.Is(err, session.ErrSessionExpired) {
		return false
	}
	setFlash(w, r, session.UserMessage(err))
	target := loginURLFor(r)
	if returnTo != "" {
		target = guard.LoginURL(returnTo, "")
	}
	redirectSuccess(w, r, target)
	return true
}
