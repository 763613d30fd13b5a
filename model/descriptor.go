package model

import "time"

// Request lifecycle states reported with every view.
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateLoaded  = "loaded"
	StateError   = "error"
)

// Placeholder is shown for any missing display value.
const Placeholder = "—"

// NotAvailable is shown for missing numeric or contact values where the
// console historically used "N/A".
const NotAvailable = "N/A"

// NavigationTree is the sidebar structure returned to the shell.
type NavigationTree struct {
	Items []NavigationNode `json:"items"`
}

// NavigationNode is a single sidebar entry.
type NavigationNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Route string `json:"route"`
}

// BreadcrumbDescriptor is a single breadcrumb entry.
type BreadcrumbDescriptor struct {
	Label string `json:"label"`
	Route string `json:"route,omitempty"`
}

// OptionDescriptor is a resolved option for dropdowns and filters.
type OptionDescriptor struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ActionDescriptor is a control rendered inside a cell or a detail header.
type ActionDescriptor struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Icon       string `json:"icon,omitempty"`
	Style      string `json:"style,omitempty"`
	Type       string `json:"type"`
	NavigateTo string `json:"navigate_to,omitempty"`
	Endpoint   string `json:"endpoint,omitempty"`
}

// Action types.
const (
	ActionNavigate = "navigate"
	ActionConfirm  = "confirm"
)

// ConfirmationDescriptor describes an open confirmation dialog. It is created
// when an action is requested and disappears when it is confirmed or
// cancelled.
type ConfirmationDescriptor struct {
	Token          string    `json:"token"`
	Resource       string    `json:"resource"`
	TargetID       string    `json:"target_id"`
	Action         string    `json:"action"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Confirm        string    `json:"confirm"`
	Cancel         string    `json:"cancel"`
	Style          string    `json:"style"`
	Icon           string    `json:"icon"`
	Busy           bool      `json:"busy"`
	ConfirmURL     string    `json:"confirm_url"`
	CancelURL      string    `json:"cancel_url"`
	ExpiresAt      time.Time `json:"expires_at"`
	RequiresReason bool      `json:"requires_reason,omitempty"`
}

// Cell is one rendered table cell. Kind tells the shell which widget to
// paint; Text is always set so a plain renderer still works.
type Cell struct {
	Text      string             `json:"text"`
	Kind      string             `json:"kind,omitempty"`
	Tone      string             `json:"tone,omitempty"`
	Secondary string             `json:"secondary,omitempty"`
	Initial   string             `json:"initial,omitempty"`
	Href      string             `json:"href,omitempty"`
	Actions   []ActionDescriptor `json:"actions,omitempty"`
}

// Cell kinds.
const (
	CellText    = "text"
	CellStatus  = "status"
	CellLink    = "link"
	CellAvatar  = "avatar"
	CellActions = "actions"
)

// HeaderCell is a table column header.
type HeaderCell struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// RowView is one rendered table row, one cell per column in column order.
type RowView struct {
	Cells []Cell `json:"cells"`
}

// TableView is a rendered table.
type TableView struct {
	Headers []HeaderCell `json:"headers"`
	Rows    []RowView    `json:"rows"`
}

// PageItem is one entry of the paginator strip: a page number or an
// ellipsis marker.
type PageItem struct {
	Page     int  `json:"page,omitempty"`
	Ellipsis bool `json:"ellipsis,omitempty"`
	Current  bool `json:"current,omitempty"`
}

// PageControl is the previous or next button of the paginator.
type PageControl struct {
	Page    int  `json:"page"`
	Enabled bool `json:"enabled"`
}

// PaginationDescriptor is the rendered paginator strip.
type PaginationDescriptor struct {
	Summary     string      `json:"summary"`
	Start       int         `json:"start"`
	End         int         `json:"end"`
	Total       int         `json:"total"`
	CurrentPage int         `json:"current_page"`
	TotalPages  int         `json:"total_pages"`
	Pages       []PageItem  `json:"pages"`
	Previous    PageControl `json:"previous"`
	Next        PageControl `json:"next"`
}

// FilterBarDescriptor is the rendered filter bar with its current values.
type FilterBarDescriptor struct {
	SearchPlaceholder string             `json:"search_placeholder"`
	Search            string             `json:"search"`
	ShowStatus        bool               `json:"show_status"`
	StatusLabel       string             `json:"status_label,omitempty"`
	StatusOptions     []OptionDescriptor `json:"status_options,omitempty"`
	Status            string             `json:"status"`
	ShowDate          bool               `json:"show_date"`
	DateLabel         string             `json:"date_label,omitempty"`
	Date              string             `json:"date,omitempty"`
}

// ListView is a fully resolved resource list: filter bar, table, and
// paginator.
type ListView struct {
	Resource   string               `json:"resource"`
	Title      string               `json:"title"`
	Subtitle   string               `json:"subtitle,omitempty"`
	State      string               `json:"state"`
	Filter     FilterBarDescriptor  `json:"filter"`
	Table      TableView            `json:"table"`
	Pagination PaginationDescriptor `json:"pagination"`
	Actions    []ActionDescriptor   `json:"actions,omitempty"`
	Empty      string               `json:"empty,omitempty"`
}

// DetailField is a label/value pair on a detail screen.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Kind  string `json:"kind,omitempty"`
	Tone  string `json:"tone,omitempty"`
}

// DetailSection groups detail fields under a heading.
type DetailSection struct {
	Title  string        `json:"title"`
	Fields []DetailField `json:"fields"`
}

// DetailView is a single-record screen. When the record does not exist,
// Found is false and Message carries the placeholder text.
type DetailView struct {
	Resource   string                 `json:"resource"`
	ID         string                 `json:"id"`
	Title      string                 `json:"title"`
	State      string                 `json:"state"`
	Found      bool                   `json:"found"`
	Message    string                 `json:"message,omitempty"`
	Breadcrumb []BreadcrumbDescriptor `json:"breadcrumb,omitempty"`
	Sections   []DetailSection        `json:"sections,omitempty"`
	Actions    []ActionDescriptor     `json:"actions,omitempty"`
}

// StatCard is one dashboard tile.
type StatCard struct {
	ID     string        `json:"id"`
	Label  string        `json:"label"`
	Value  string        `json:"value"`
	Detail []DetailField `json:"detail,omitempty"`
}

// RecentTable is a small dashboard table of recent activity.
type RecentTable struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Table TableView `json:"table"`
	Route string    `json:"route"`
}

// DashboardView is the resolved dashboard screen.
type DashboardView struct {
	State  string        `json:"state"`
	Cards  []StatCard    `json:"cards"`
	Recent []RecentTable `json:"recent"`
}

// CommandResponse is the response to a confirmed action or submitted form.
type CommandResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Errors  []FieldError   `json:"errors,omitempty"`
}
