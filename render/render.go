// Package render executes the embedded HTML templates. The pages are thin
// placeholders; the handlers own all behavior.
package render

import (
	"embed"
	"html/template"
	"net/http"

	"echothoughts.com/echothoughts/logging"
	"echothoughts.com/echothoughts/models"
	"echothoughts.com/echothoughts/session"
)

//go:embed templates/*.html
var files embed.FS

var pages *template.Template

func Init() error {
	t, err := template.ParseFS(files, "templates/*.html")
	if err != nil {
		return err
	}
	pages = t
	return nil
}

// Context is the root object every template executes against.
type Context struct {
	User    *models.User
	Flashes []session.Flash
	Data    map[string]any
}

func Page(w http.ResponseWriter, r *http.Request, name string, user *models.User, data map[string]any) {
	PageStatus(w, r, http.StatusOK, name, user, data)
}

func PageStatus(w http.ResponseWriter, r *http.Request, status int, name string, user *models.User, data map[string]any) {
	ctx := Context{
		User:    user,
		Flashes: session.Flashes(w, r),
		Data:    data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, ctx); err != nil {
		logging.L.Error().Err(err).Str("template", name).Msg("render failed")
	}
}
