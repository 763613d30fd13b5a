// Package views resolves console screens. Each resource view fetches
// records through the data access layer, maps them to closed display rows,
// and renders tables, paginators, filter bars, detail screens, and the
// actions an admin may take.
package views

import (
	"context"
	"strconv"
	"strings"

	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

// Row is a display row that knows which record it shows.
type Row interface {
	RowID() string
	RowStatus() string
}

// Action is a record action. Actions always go through a confirmation
// before they reach the backend.
type Action struct {
	ID             string
	Label          string
	Icon           string
	Style          string
	Title          string
	Message        string
	Confirm        string
	RequiresReason bool

	// When limits the action to records in one of these statuses. Empty
	// means any status.
	When []string

	// InRow shows the action in the table row as well as on the detail
	// screen.
	InRow bool

	exec func(ctx context.Context, id, reason string) error
}

// AvailableFor reports whether the action applies to a record in status.
func (a Action) AvailableFor(status string) bool {
	if len(a.When) == 0 {
		return true
	}
	for _, s := range a.When {
		if strings.EqualFold(s, status) {
			return true
		}
	}
	return false
}

// View is one resource's screens.
type View interface {
	Resource() string
	Title() string
	FilterBar() table.FilterBarConfig
	List(ctx context.Context, caps model.CapabilitySet, fc *table.FilterController) (model.ListView, error)
	Detail(ctx context.Context, caps model.CapabilitySet, id string) (model.DetailView, error)
	Action(id string) (Action, bool)
	Guard(ctx context.Context, id string, a Action) error
	Execute(ctx context.Context, p confirm.Pending) error
}

// resourceView implements View for records of type T shown as rows of
// type R.
type resourceView[T any, R Row] struct {
	name     string
	singular string
	title    string
	subtitle string
	empty    string
	filter   table.FilterBarConfig
	pageSize int

	creatable bool
	editable  bool

	client   *client.Resource[T]
	tracker  *query.Tracker
	format   Formatter
	toRow    func(T, Formatter) R
	columns  []table.Column[R]
	titleOf  func(T) string
	statusOf func(T) string
	sections func(T, Formatter) []model.DetailSection
	actions  []Action
}

func (v *resourceView[T, R]) Resource() string { return v.name }

func (v *resourceView[T, R]) Title() string { return v.title }

func (v *resourceView[T, R]) FilterBar() table.FilterBarConfig { return v.filter }

// Action returns the action with the given id.
func (v *resourceView[T, R]) Action(id string) (Action, bool) {
	for _, a := range v.actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// Guard fails with CONFLICT when the record's current status does not offer
// a. Actions open to every status skip the lookup.
func (v *resourceView[T, R]) Guard(ctx context.Context, id string, a Action) error {
	if len(a.When) == 0 {
		return nil
	}
	rec, err := v.client.Get(ctx, id)
	if err != nil {
		return err
	}
	if status := v.statusOf(rec); !a.AvailableFor(status) {
		return model.NewConflictError(a.Label + " is not available while the " +
			strings.ToLower(v.singular) + " is " + strings.ToLower(v.format.Text(status)))
	}
	return nil
}

// Execute runs a confirmed action against the backend.
func (v *resourceView[T, R]) Execute(ctx context.Context, p confirm.Pending) error {
	a, ok := v.Action(p.Action)
	if !ok || a.exec == nil {
		return model.NewBadRequestError("Unknown action " + strconv.Quote(p.Action))
	}
	return a.exec(ctx, p.TargetID, p.Reason)
}

// List renders one page of the resource for the filter and page held by fc.
// Row numbers continue across pages. A page past the end is re-read as the
// last page.
func (v *resourceView[T, R]) List(ctx context.Context, caps model.CapabilitySet, fc *table.FilterController) (model.ListView, error) {
	lv := model.ListView{
		Resource: v.name,
		Title:    v.title,
		Subtitle: v.subtitle,
		Filter:   table.BindFilterBar(v.filter, fc).Descriptor(fc.Applied),
	}

	params := fc.Params(v.pageSize)
	res, err := v.fetchPage(ctx, params)
	if err == nil {
		window := table.Window{CurrentPage: params.Page, ItemsPerPage: params.PageSize, TotalResults: res.Value.Total}
		if last := window.TotalPages(); res.Value.Total > 0 && params.Page > last {
			fc.SetPage(last)
			params = fc.Params(v.pageSize)
			res, err = v.fetchPage(ctx, params)
		}
	}
	lv.State = res.State
	if err != nil {
		return lv, err
	}

	page := res.Value
	rows := make([]R, len(page.Items))
	for i, item := range page.Items {
		rows[i] = v.toRow(item, v.format)
	}
	window := table.Window{CurrentPage: params.Page, ItemsPerPage: params.PageSize, TotalResults: page.Total}.Clamp()
	offset := (window.CurrentPage - 1) * params.PageSize
	lv.Table, lv.Pagination = table.Paginate(v.tableColumns(caps, offset), rows, window)

	if len(rows) == 0 {
		lv.Empty = "No " + v.name + " found"
		if v.empty != "" {
			lv.Empty = v.empty
		}
	}
	if v.creatable && caps.Has(model.ManageCapability(v.name)) {
		lv.Actions = []model.ActionDescriptor{{
			ID:         "add",
			Label:      "Add " + v.singular,
			Icon:       "plus",
			Style:      "primary",
			Type:       model.ActionNavigate,
			NavigateTo: "/" + v.name + "/new",
		}}
	}
	return lv, nil
}

func (v *resourceView[T, R]) fetchPage(ctx context.Context, params model.ListParams) (query.Result[model.Page[T]], error) {
	key := query.Key(model.RequestContextFrom(ctx).Scope(), v.name, "list")
	return query.Run(ctx, v.tracker, key, v.name, func(ctx context.Context) (model.Page[T], error) {
		return v.client.List(ctx, params)
	})
}

// tableColumns wraps the resource columns with the row number and actions
// columns.
func (v *resourceView[T, R]) tableColumns(caps model.CapabilitySet, offset int) []table.Column[R] {
	canManage := caps.Has(model.ManageCapability(v.name))
	cols := make([]table.Column[R], 0, len(v.columns)+2)
	cols = append(cols, table.Column[R]{
		Key:   "rowNum",
		Label: "#",
		Render: func(_ any, _ R, i int) model.Cell {
			return model.Cell{Text: strconv.Itoa(offset + i + 1)}
		},
	})
	cols = append(cols, v.columns...)
	cols = append(cols, table.Column[R]{
		Key:   "actions",
		Label: "Actions",
		Render: func(_ any, row R, _ int) model.Cell {
			acts := []model.ActionDescriptor{v.viewAction(row.RowID())}
			if canManage {
				for _, a := range v.actions {
					if a.InRow && a.AvailableFor(row.RowStatus()) {
						acts = append(acts, v.descriptor(a, row.RowID()))
					}
				}
			}
			return model.Cell{Kind: model.CellActions, Actions: acts}
		},
	})
	return cols
}

func (v *resourceView[T, R]) viewAction(id string) model.ActionDescriptor {
	return model.ActionDescriptor{
		ID:         "view",
		Label:      "View",
		Icon:       "eye",
		Type:       model.ActionNavigate,
		NavigateTo: "/" + v.name + "/" + id,
	}
}

func (v *resourceView[T, R]) descriptor(a Action, id string) model.ActionDescriptor {
	return model.ActionDescriptor{
		ID:       a.ID,
		Label:    a.Label,
		Icon:     a.Icon,
		Style:    a.Style,
		Type:     model.ActionConfirm,
		Endpoint: ActionEndpoint(v.name, id, a.ID),
	}
}

// Detail renders one record. A record the backend does not know is a
// not-found screen, not an error.
func (v *resourceView[T, R]) Detail(ctx context.Context, caps model.CapabilitySet, id string) (model.DetailView, error) {
	dv := model.DetailView{
		Resource:   v.name,
		ID:         id,
		Breadcrumb: []model.BreadcrumbDescriptor{{Label: v.title, Route: "/" + v.name}},
	}

	key := query.Key(model.RequestContextFrom(ctx).Scope(), v.name, "detail")
	res, err := query.Run(ctx, v.tracker, key, v.name, func(ctx context.Context) (T, error) {
		return v.client.Get(ctx, id)
	})
	if model.IsCode(err, model.ErrNotFound) {
		dv.State = model.StateLoaded
		dv.Title = v.singular + " not found"
		dv.Message = "This " + strings.ToLower(v.singular) + " could not be found. It may have been deleted."
		dv.Breadcrumb = append(dv.Breadcrumb, model.BreadcrumbDescriptor{Label: model.Placeholder})
		return dv, nil
	}
	dv.State = res.State
	if err != nil {
		return dv, err
	}

	rec := res.Value
	dv.Found = true
	dv.Title = v.format.Text(v.titleOf(rec))
	dv.Breadcrumb = append(dv.Breadcrumb, model.BreadcrumbDescriptor{Label: dv.Title})
	dv.Sections = v.sections(rec, v.format)

	if caps.Has(model.ManageCapability(v.name)) {
		if v.editable {
			dv.Actions = append(dv.Actions, model.ActionDescriptor{
				ID:         "edit",
				Label:      "Edit",
				Icon:       "pencil",
				Type:       model.ActionNavigate,
				NavigateTo: "/" + v.name + "/" + id + "/edit",
			})
		}
		status := v.statusOf(rec)
		for _, a := range v.actions {
			if a.AvailableFor(status) {
				dv.Actions = append(dv.Actions, v.descriptor(a, id))
			}
		}
	}
	return dv, nil
}

// ActionEndpoint is the console route that opens the confirmation of an
// action.
func ActionEndpoint(resource, id, action string) string {
	return "/ui/views/" + resource + "/" + id + "/actions/" + action
}

// Confirmation renders the dialog of an open confirmation.
func Confirmation(a Action, p confirm.Pending) model.ConfirmationDescriptor {
	icon := "success"
	if a.Style == StyleDanger {
		icon = "error"
	}
	return model.ConfirmationDescriptor{
		Token:          p.Token,
		Resource:       p.Resource,
		TargetID:       p.TargetID,
		Action:         p.Action,
		Title:          a.Title,
		Message:        a.Message,
		Confirm:        a.Confirm,
		Cancel:         "Cancel",
		Style:          a.Style,
		Icon:           icon,
		Busy:           p.Busy,
		ConfirmURL:     "/ui/confirmations/" + p.Token + "/confirm",
		CancelURL:      "/ui/confirmations/" + p.Token,
		ExpiresAt:      p.ExpiresAt,
		RequiresReason: a.RequiresReason,
	}
}
