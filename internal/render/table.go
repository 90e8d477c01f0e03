package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/dashboard"
	"github.com/canxphung/DA_CNPM_242/farm_dashboard/internal/models"
)

type tableBody struct {
	Rows         []dashboard.TableRow
	EmptyMessage string
	Columns      int
}

type pageLink struct {
	Kind     dashboard.PageItemKind
	Label    string
	Aria     string
	Href     string
	Active   bool
	Disabled bool
	Ellipsis bool
}

// HTMLTable draws table views as a tbody and a Bootstrap pagination list.
// It keeps the most recent drawing.
type HTMLTable struct {
	pageURL func(page int) string
	view    dashboard.TableView
	body    template.HTML
	pager   template.HTML
}

// NewHTMLTable creates a table target linking page buttons with pageURL
func NewHTMLTable(pageURL func(page int) string) *HTMLTable {
	return &HTMLTable{pageURL: pageURL}
}

// RenderTable implements dashboard.TableTarget
func (t *HTMLTable) RenderTable(view dashboard.TableView) error {
	var body, pager bytes.Buffer
	if err := templates.ExecuteTemplate(&body, "table-body", tableBody{
		Rows:         view.Rows,
		EmptyMessage: view.EmptyMessage,
		Columns:      len(models.TableFields),
	}); err != nil {
		return fmt.Errorf("failed to render table body: %w", err)
	}
	if err := templates.ExecuteTemplate(&pager, "pagination", t.links(view.Pagination)); err != nil {
		return fmt.Errorf("failed to render pagination: %w", err)
	}

	t.view = view
	t.body = template.HTML(body.String())
	t.pager = template.HTML(pager.String())
	return nil
}

// View returns the last drawn view
func (t *HTMLTable) View() dashboard.TableView {
	return t.view
}

// Body returns the last drawn tbody
func (t *HTMLTable) Body() template.HTML {
	return t.body
}

// Pagination returns the last drawn pagination list
func (t *HTMLTable) Pagination() template.HTML {
	return t.pager
}

func (t *HTMLTable) links(items []dashboard.PageItem) []pageLink {
	// an empty table has no page to link to
	if len(items) <= 2 {
		return nil
	}
	out := make([]pageLink, 0, len(items))
	for _, it := range items {
		l := pageLink{Kind: it.Kind, Active: it.Active, Disabled: it.Disabled}
		switch it.Kind {
		case dashboard.PagePrev:
			l.Label, l.Aria = "«", "Previous"
		case dashboard.PageNext:
			l.Label, l.Aria = "»", "Next"
		case dashboard.PageEllipsis:
			l.Ellipsis = true
		default:
			l.Label = strconv.Itoa(it.Page)
			l.Aria = "Page " + l.Label
		}
		if !l.Disabled && !l.Ellipsis && t.pageURL != nil {
			l.Href = t.pageURL(it.Page)
		}
		out = append(out, l)
	}
	return out
}
