package table

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pitabwire/bazaar/model"
)

// StatusAll is the status filter value that disables status filtering.
const StatusAll = "all"

// FilterState is the value of a filter bar. Status defaults to StatusAll;
// Date is an ISO date (YYYY-MM-DD) or empty.
type FilterState struct {
	Search string `json:"search"`
	Status string `json:"status"`
	Date   string `json:"date,omitempty"`
}

// DefaultFilterState returns the cleared filter.
func DefaultFilterState() FilterState {
	return FilterState{Status: StatusAll}
}

// IsDefault reports whether no filter is active.
func (s FilterState) IsDefault() bool {
	return strings.TrimSpace(s.Search) == "" && (s.Status == "" || s.Status == StatusAll) && s.Date == ""
}

// ListParams converts the filter into backend query parameters for the
// given page. The search text is trimmed and an "all" status is omitted.
func (s FilterState) ListParams(page, pageSize int) model.ListParams {
	p := model.ListParams{
		Page:     page,
		PageSize: pageSize,
		Text:     strings.TrimSpace(s.Search),
		Date:     s.Date,
	}
	if s.Status != "" && s.Status != StatusAll {
		p.Status = s.Status
	}
	return p
}

// FilterController owns the state of one list screen: the draft filter the
// admin is editing, the applied filter the data was fetched with, and the
// current page. Editing the draft never triggers a fetch; applying or
// clearing does, and both reset the page to 1.
type FilterController struct {
	Draft   FilterState
	Applied FilterState
	Page    int
}

// NewFilterController returns a controller with cleared filters on page 1.
func NewFilterController() *FilterController {
	return &FilterController{
		Draft:   DefaultFilterState(),
		Applied: DefaultFilterState(),
		Page:    1,
	}
}

// SetSearch edits the draft search text.
func (c *FilterController) SetSearch(v string) { c.Draft.Search = v }

// SetStatus edits the draft status.
func (c *FilterController) SetStatus(v string) { c.Draft.Status = v }

// SetDate edits the draft date.
func (c *FilterController) SetDate(v string) { c.Draft.Date = v }

// Apply commits the draft and resets to page 1.
func (c *FilterController) Apply() {
	c.Applied = c.Draft
	c.Page = 1
}

// Clear resets draft and applied filters and returns to page 1.
func (c *FilterController) Clear() {
	c.Draft = DefaultFilterState()
	c.Applied = DefaultFilterState()
	c.Page = 1
}

// SetPage moves to another page of the applied filter.
func (c *FilterController) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	c.Page = page
}

// Params returns the backend query for the applied filter and page.
func (c *FilterController) Params(pageSize int) model.ListParams {
	return c.Applied.ListParams(c.Page, pageSize)
}

// ControllerFromQuery rebuilds the controller from a list request's query
// string. The shell sends the filter values it shows (q, status, date), the
// page, and optionally an "apply" or "clear" intent. Edits go through the
// bar described by cfg, so values for hidden controls are dropped.
func ControllerFromQuery(cfg FilterBarConfig, q url.Values) *FilterController {
	c := NewFilterController()
	bar := BindFilterBar(cfg, c)
	bar.SearchChanged(q.Get("q"))
	if s := q.Get("status"); s != "" {
		bar.StatusChanged(s)
	}
	bar.DateChanged(q.Get("date"))
	c.Applied = c.Draft
	if p, err := strconv.Atoi(q.Get("page")); err == nil {
		c.SetPage(p)
	}

	switch {
	case q.Has("clear"):
		bar.ClearAll()
	case q.Has("apply"):
		bar.Apply()
	}
	return c
}

// FilterBarConfig is the static configuration of a filter bar.
type FilterBarConfig struct {
	SearchPlaceholder string
	StatusLabel       string
	StatusOptions     []model.OptionDescriptor
	ShowStatus        bool
	ShowDate          bool
	DateLabel         string
}

// FilterBar is a controlled filter bar. It holds no state of its own: it
// reports edits and intents through its callbacks and renders whatever
// state it is given.
type FilterBar struct {
	Config         FilterBarConfig
	OnSearchChange func(string)
	OnStatusChange func(string)
	OnDateChange   func(string)
	OnApply        func()
	OnClearAll     func()
}

// BindFilterBar wires a filter bar's callbacks to a controller.
func BindFilterBar(cfg FilterBarConfig, c *FilterController) FilterBar {
	return FilterBar{
		Config:         cfg,
		OnSearchChange: c.SetSearch,
		OnStatusChange: c.SetStatus,
		OnDateChange:   c.SetDate,
		OnApply:        c.Apply,
		OnClearAll:     c.Clear,
	}
}

// SearchChanged reports a search edit.
func (b FilterBar) SearchChanged(v string) {
	if b.OnSearchChange != nil {
		b.OnSearchChange(v)
	}
}

// StatusChanged reports a status edit. Hidden controls ignore edits.
func (b FilterBar) StatusChanged(v string) {
	if b.Config.ShowStatus && b.OnStatusChange != nil {
		b.OnStatusChange(v)
	}
}

// DateChanged reports a date edit. Hidden controls ignore edits.
func (b FilterBar) DateChanged(v string) {
	if b.Config.ShowDate && b.OnDateChange != nil {
		b.OnDateChange(v)
	}
}

// Apply reports the apply intent.
func (b FilterBar) Apply() {
	if b.OnApply != nil {
		b.OnApply()
	}
}

// ClearAll reports the clear intent.
func (b FilterBar) ClearAll() {
	if b.OnClearAll != nil {
		b.OnClearAll()
	}
}

// Descriptor renders the bar with the given state.
func (b FilterBar) Descriptor(state FilterState) model.FilterBarDescriptor {
	d := model.FilterBarDescriptor{
		SearchPlaceholder: b.Config.SearchPlaceholder,
		Search:            state.Search,
		ShowStatus:        b.Config.ShowStatus,
		ShowDate:          b.Config.ShowDate,
		Status:            state.Status,
	}
	if d.Status == "" {
		d.Status = StatusAll
	}
	if b.Config.ShowStatus {
		d.StatusLabel = b.Config.StatusLabel
		d.StatusOptions = b.Config.StatusOptions
	}
	if b.Config.ShowDate {
		d.DateLabel = b.Config.DateLabel
		d.Date = state.Date
	}
	return d
}
