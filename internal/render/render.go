package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"pos": func(m Marker) template.CSS {
		return template.CSS(fmt.Sprintf("left:%.2f%%;top:%.2f%%", m.X, m.Y))
	},
}).ParseFS(templateFS, "templates/*.tmpl"))

// Page writes the full board page.
func Page(w io.Writer, v View) error {
	return templates.ExecuteTemplate(w, "page", v)
}

// Attendees writes the attendee list fragment.
func Attendees(w io.Writer, title string, rows []AttendeeRow) error {
	return templates.ExecuteTemplate(w, "attendees", struct {
		Title string
		Rows  []AttendeeRow
		Count int
	}{title, rows, len(rows)})
}
