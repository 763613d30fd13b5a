package table

import (
	"fmt"

	"github.com/pitabwire/bazaar/model"
)

// maxInlinePages is the largest page count shown without ellipses.
const maxInlinePages = 7

// Window is the pagination state of one list: the current 1-based page,
// the page size, and the total number of matching records.
type Window struct {
	CurrentPage  int
	ItemsPerPage int
	TotalResults int
}

// TotalPages is ceil(TotalResults/ItemsPerPage), never less than 1.
func (w Window) TotalPages() int {
	per := w.ItemsPerPage
	if per < 1 {
		per = 1
	}
	total := w.TotalResults
	if total < 0 {
		total = 0
	}
	pages := (total + per - 1) / per
	if pages < 1 {
		return 1
	}
	return pages
}

// Range returns the 1-based indices of the first and last record on the
// current page. An empty result set yields (0, 0).
func (w Window) Range() (start, end int) {
	if w.TotalResults <= 0 {
		return 0, 0
	}
	start = (w.CurrentPage-1)*w.ItemsPerPage + 1
	end = w.CurrentPage * w.ItemsPerPage
	if end > w.TotalResults {
		end = w.TotalResults
	}
	return start, end
}

// Summary is the "X-Y of N" text of the paginator.
func (w Window) Summary() string {
	start, end := w.Range()
	return fmt.Sprintf("%d-%d of %d", start, end, w.TotalResults)
}

// ResultsText is the long form shown under tables,
// "Showing X-Y of N results".
func (w Window) ResultsText() string {
	return "Showing " + w.Summary() + " results"
}

// Pages returns the page-number strip. Up to seven pages are listed in
// full. Beyond that the strip always holds the first and last page, the
// current page with its direct neighbours, and an ellipsis wherever pages
// are skipped.
func (w Window) Pages() []model.PageItem {
	tp := w.TotalPages()
	cp := w.CurrentPage
	item := func(p int) model.PageItem {
		return model.PageItem{Page: p, Current: p == cp}
	}

	if tp <= maxInlinePages {
		items := make([]model.PageItem, 0, tp)
		for p := 1; p <= tp; p++ {
			items = append(items, item(p))
		}
		return items
	}

	items := []model.PageItem{item(1)}
	if cp > 3 {
		items = append(items, model.PageItem{Ellipsis: true})
	}
	lo := max(2, cp-1)
	hi := min(tp-1, cp+1)
	for p := lo; p <= hi; p++ {
		if containsPage(items, p) {
			continue
		}
		items = append(items, item(p))
	}
	if cp < tp-2 {
		items = append(items, model.PageItem{Ellipsis: true})
	}
	if !containsPage(items, tp) {
		items = append(items, item(tp))
	}
	return items
}

// Previous returns the page the previous button targets and whether the
// button is enabled. The target is clamped into [1, TotalPages].
func (w Window) Previous() (int, bool) {
	if w.CurrentPage <= 1 {
		return 1, false
	}
	return w.clamp(w.CurrentPage - 1), true
}

// Next returns the page the next button targets and whether the button is
// enabled.
func (w Window) Next() (int, bool) {
	tp := w.TotalPages()
	if w.CurrentPage >= tp {
		return tp, false
	}
	return w.clamp(w.CurrentPage + 1), true
}

// Clamp returns the window with CurrentPage forced into [1, TotalPages].
func (w Window) Clamp() Window {
	w.CurrentPage = w.clamp(w.CurrentPage)
	return w
}

func (w Window) clamp(p int) int {
	if p < 1 {
		return 1
	}
	if tp := w.TotalPages(); p > tp {
		return tp
	}
	return p
}

// Descriptor renders the paginator strip for the window.
func (w Window) Descriptor() model.PaginationDescriptor {
	start, end := w.Range()
	prev, prevOK := w.Previous()
	next, nextOK := w.Next()
	return model.PaginationDescriptor{
		Summary:     w.Summary(),
		Start:       start,
		End:         end,
		Total:       w.TotalResults,
		CurrentPage: w.CurrentPage,
		TotalPages:  w.TotalPages(),
		Pages:       w.Pages(),
		Previous:    model.PageControl{Page: prev, Enabled: prevOK},
		Next:        model.PageControl{Page: next, Enabled: nextOK},
	}
}

// Paginator is the interactive paginator. It never changes the page
// itself; it asks OnPageChange to.
type Paginator struct {
	Window       Window
	OnPageChange func(page int)
}

// Previous fires OnPageChange with the previous page. It is a no-op on the
// first page and reports whether the callback fired.
func (p Paginator) Previous() bool {
	page, ok := p.Window.Previous()
	if !ok {
		return false
	}
	p.fire(page)
	return true
}

// Next fires OnPageChange with the next page. It is a no-op on the last
// page.
func (p Paginator) Next() bool {
	page, ok := p.Window.Next()
	if !ok {
		return false
	}
	p.fire(page)
	return true
}

// Select fires OnPageChange with the given page, clamped into range.
// Selecting the current page does nothing.
func (p Paginator) Select(page int) bool {
	page = p.Window.clamp(page)
	if page == p.Window.CurrentPage {
		return false
	}
	p.fire(page)
	return true
}

func (p Paginator) fire(page int) {
	if p.OnPageChange != nil {
		p.OnPageChange(page)
	}
}

// Paginate renders the rows of the current page together with the
// paginator strip.
func Paginate[R any](columns []Column[R], rows []R, w Window) (model.TableView, model.PaginationDescriptor) {
	return Render(columns, rows), w.Descriptor()
}

func containsPage(items []model.PageItem, p int) bool {
	for _, it := range items {
		if !it.Ellipsis && it.Page == p {
			return true
		}
	}
	return false
}
