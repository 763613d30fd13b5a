package table

import (
	"net/url"
	"testing"

	"github.com/pitabwire/bazaar/model"
)

func TestFilterState_ListParams(t *testing.T) {
	s := FilterState{Search: "  shoes ", Status: StatusAll, Date: "2024-05-01"}
	p := s.ListParams(2, 10)
	if p.Page != 2 || p.PageSize != 10 {
		t.Errorf("page = %d/%d, want 2/10", p.Page, p.PageSize)
	}
	if p.Text != "shoes" {
		t.Errorf("Text = %q, want %q", p.Text, "shoes")
	}
	if p.Status != "" {
		t.Errorf("Status = %q, want empty for %q", p.Status, StatusAll)
	}
	if p.Date != "2024-05-01" {
		t.Errorf("Date = %q", p.Date)
	}

	s.Status = "Active"
	if got := s.ListParams(1, 10).Status; got != "Active" {
		t.Errorf("Status = %q, want Active", got)
	}
}

func TestFilterState_IsDefault(t *testing.T) {
	if !DefaultFilterState().IsDefault() {
		t.Error("DefaultFilterState().IsDefault() = false")
	}
	if (FilterState{Search: "x", Status: StatusAll}).IsDefault() {
		t.Error("search filter reported as default")
	}
	if (FilterState{Status: "Pending"}).IsDefault() {
		t.Error("status filter reported as default")
	}
}

func TestFilterController_draft_does_not_apply(t *testing.T) {
	c := NewFilterController()
	c.SetPage(4)
	c.SetSearch("lamp")
	c.SetStatus("Published")

	if c.Applied.Search != "" || c.Applied.Status != StatusAll {
		t.Errorf("Applied = %+v, want default before Apply", c.Applied)
	}
	if c.Page != 4 {
		t.Errorf("Page = %d, want 4", c.Page)
	}
}

func TestFilterController_Apply_resets_page(t *testing.T) {
	c := NewFilterController()
	c.SetPage(3)
	c.SetSearch("lamp")
	c.Apply()

	if c.Page != 1 {
		t.Errorf("Page = %d, want 1", c.Page)
	}
	if c.Applied.Search != "lamp" {
		t.Errorf("Applied.Search = %q, want lamp", c.Applied.Search)
	}
	if got := c.Params(10).Text; got != "lamp" {
		t.Errorf("Params().Text = %q", got)
	}
}

func TestFilterController_Clear(t *testing.T) {
	c := NewFilterController()
	c.SetSearch("lamp")
	c.SetStatus("Suspended")
	c.SetDate("2024-01-01")
	c.Apply()
	c.SetPage(5)
	c.Clear()

	if c.Page != 1 {
		t.Errorf("Page = %d, want 1", c.Page)
	}
	if !c.Draft.IsDefault() || !c.Applied.IsDefault() {
		t.Errorf("filters not cleared: draft=%+v applied=%+v", c.Draft, c.Applied)
	}
}

func TestFilterController_SetPage_minimum(t *testing.T) {
	c := NewFilterController()
	c.SetPage(0)
	if c.Page != 1 {
		t.Errorf("Page = %d, want 1", c.Page)
	}
}

func TestControllerFromQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantPage int
		wantText string
		wantStat string
	}{
		{"empty", "", 1, "", StatusAll},
		{"paged", "q=lamp&status=Active&page=3", 3, "lamp", "Active"},
		{"apply resets page", "q=lamp&page=3&apply=1", 1, "lamp", StatusAll},
		{"clear resets all", "q=lamp&status=Active&page=3&clear=1", 1, "", StatusAll},
		{"bad page", "page=abc", 1, "", StatusAll},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			c := ControllerFromQuery(FilterBarConfig{ShowStatus: true, ShowDate: true}, q)
			if c.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", c.Page, tt.wantPage)
			}
			if c.Applied.Search != tt.wantText {
				t.Errorf("Search = %q, want %q", c.Applied.Search, tt.wantText)
			}
			if c.Applied.Status != tt.wantStat {
				t.Errorf("Status = %q, want %q", c.Applied.Status, tt.wantStat)
			}
		})
	}
}

// --- FilterBar ---

func statusOptions() []model.OptionDescriptor {
	return []model.OptionDescriptor{
		{Label: "All", Value: StatusAll},
		{Label: "Active", Value: "Active"},
		{Label: "Suspended", Value: "Suspended"},
	}
}

func TestFilterBar_hidden_controls_ignore_edits(t *testing.T) {
	c := NewFilterController()
	bar := BindFilterBar(FilterBarConfig{SearchPlaceholder: "Search"}, c)

	bar.SearchChanged("x")
	bar.StatusChanged("Active")
	bar.DateChanged("2024-01-01")

	if c.Draft.Search != "x" {
		t.Errorf("Draft.Search = %q, want x", c.Draft.Search)
	}
	if c.Draft.Status != StatusAll {
		t.Errorf("Draft.Status = %q, want %q", c.Draft.Status, StatusAll)
	}
	if c.Draft.Date != "" {
		t.Errorf("Draft.Date = %q, want empty", c.Draft.Date)
	}
}

func TestFilterBar_apply_and_clear(t *testing.T) {
	c := NewFilterController()
	bar := BindFilterBar(FilterBarConfig{ShowStatus: true, StatusOptions: statusOptions()}, c)

	bar.StatusChanged("Suspended")
	c.SetPage(2)
	bar.Apply()
	if c.Applied.Status != "Suspended" || c.Page != 1 {
		t.Errorf("after Apply: status=%q page=%d", c.Applied.Status, c.Page)
	}

	bar.ClearAll()
	if c.Applied.Status != StatusAll {
		t.Errorf("after ClearAll: status=%q", c.Applied.Status)
	}
}

func TestFilterBar_nil_callbacks(t *testing.T) {
	bar := FilterBar{Config: FilterBarConfig{ShowStatus: true, ShowDate: true}}
	bar.SearchChanged("x")
	bar.StatusChanged("x")
	bar.DateChanged("x")
	bar.Apply()
	bar.ClearAll()
}

func TestFilterBar_Descriptor(t *testing.T) {
	bar := FilterBar{Config: FilterBarConfig{
		SearchPlaceholder: "Search categories",
		StatusLabel:       "Status",
		StatusOptions:     statusOptions(),
		ShowStatus:        true,
	}}
	d := bar.Descriptor(FilterState{Search: "bags"})
	if d.Search != "bags" {
		t.Errorf("Search = %q", d.Search)
	}
	if d.Status != StatusAll {
		t.Errorf("Status = %q, want %q", d.Status, StatusAll)
	}
	if len(d.StatusOptions) != 3 {
		t.Errorf("StatusOptions = %d, want 3", len(d.StatusOptions))
	}
	if d.ShowDate || d.DateLabel != "" {
		t.Errorf("date control rendered while hidden: %+v", d)
	}
}

func TestControllerFromQuery_hiddenControlsAreIgnored(t *testing.T) {
	q := url.Values{"q": {"lamp"}, "status": {"Active"}, "date": {"2024-05-01"}}

	c := ControllerFromQuery(FilterBarConfig{}, q)
	p := c.Params(10)
	if p.Text != "lamp" {
		t.Errorf("Text = %q, want lamp", p.Text)
	}
	if p.Status != "" || p.Date != "" {
		t.Errorf("hidden filters leaked into params: status=%q date=%q", p.Status, p.Date)
	}

	c = ControllerFromQuery(FilterBarConfig{ShowStatus: true}, q)
	p = c.Params(10)
	if p.Status != "Active" {
		t.Errorf("Status = %q, want Active", p.Status)
	}
	if p.Date != "" {
		t.Errorf("Date = %q, want empty while the date control is hidden", p.Date)
	}
}
