package echoweb

import (
	"html/template"
	"io"
	iofs "io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const pagesDir = "templates/pages"

// renderer executes page templates. Files prefixed with `_` hold the layout and
// partials shared by every page; each other file defines the "title" and "content" of one page.
type renderer struct {
	pages map[string]*template.Template
}

var _ echo.Renderer = (*renderer)(nil) // interface compliance check

func newRenderer(fsys iofs.FS, dir string) (*renderer, error) {
	fps, err := iofs.Glob(fsys, path.Join(dir, "*.gohtml"))
	if err != nil {
		return nil, err
	}

	var shared, pages []string
	for _, fp := range fps {
		if strings.HasPrefix(path.Base(fp), "_") {
			shared = append(shared, fp)
		} else {
			pages = append(pages, fp)
		}
	}

	r := &renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, fp := range pages {
		name := strings.TrimSuffix(path.Base(fp), ".gohtml")
		tmpl, err := template.ParseFS(fsys, append(append([]string{}, shared...), fp)...)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", fp)
		}
		r.pages[name] = tmpl.Option("missingkey=error")
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}
