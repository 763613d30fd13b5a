package views

import (
	"context"
	"time"

	"github.com/pitabwire/bazaar/internal/audit"
	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

// AuditRow is an audit trail table row.
type AuditRow struct {
	ID       string
	At       string
	Admin    string
	Resource string
	Target   string
	Action   string
	Reason   string
	Outcome  string
}

func (r AuditRow) RowID() string     { return r.ID }
func (r AuditRow) RowStatus() string { return r.Outcome }

// AuditToRow maps an audit entry to its row.
func AuditToRow(e audit.Entry, f Formatter) AuditRow {
	admin := e.Email
	if admin == "" {
		admin = e.SubjectID
	}
	return AuditRow{
		ID:       e.ID,
		At:       e.At.UTC().Format(time.DateTime),
		Admin:    f.Text(admin),
		Resource: f.Text(e.Resource),
		Target:   f.Text(e.TargetID),
		Action:   f.Text(e.Action),
		Reason:   f.Text(e.Reason),
		Outcome:  f.Text(e.Outcome),
	}
}

var auditColumns = []table.Column[AuditRow]{
	textColumn("at", "Time", func(r AuditRow) string { return r.At }),
	textColumn("admin", "Admin", func(r AuditRow) string { return r.Admin }),
	textColumn("resource", "Resource", func(r AuditRow) string { return r.Resource }),
	textColumn("target", "Record", func(r AuditRow) string { return r.Target }),
	textColumn("action", "Action", func(r AuditRow) string { return r.Action }),
	textColumn("reason", "Reason", func(r AuditRow) string { return r.Reason }),
	{
		Key:   "outcome",
		Label: "Outcome",
		Value: func(r AuditRow) any { return r.Outcome },
		Render: func(v any, _ AuditRow, _ int) model.Cell {
			s := table.Stringify(v)
			tone := ToneSuccess
			if s != audit.OutcomeSucceeded {
				tone = ToneDanger
			}
			return model.Cell{Text: s, Kind: model.CellStatus, Tone: tone}
		},
	},
}

// AuditFilter is the filter bar of the audit screen. Its status control
// picks a resource.
func (r *Registry) AuditFilter() table.FilterBarConfig {
	opts := []model.OptionDescriptor{{Label: "All", Value: table.StatusAll}}
	for _, v := range r.views {
		opts = append(opts, model.OptionDescriptor{Label: v.Title(), Value: v.Resource()})
	}
	return table.FilterBarConfig{
		SearchPlaceholder: "Search by admin id...",
		StatusLabel:       "Resource",
		StatusOptions:     opts,
		ShowStatus:        true,
	}
}

// Audit lists confirmed actions newest first. The status filter selects a
// resource and the search text an admin id.
func (r *Registry) Audit(ctx context.Context, caps model.CapabilitySet, fc *table.FilterController) (model.ListView, error) {
	if r.audit == nil {
		return model.ListView{}, model.NewNotFoundError("The audit trail is disabled")
	}
	if !caps.Has(model.ViewCapability(model.ResourceAudit)) {
		return model.ListView{}, model.NewForbiddenError("Insufficient permissions to view the audit trail")
	}

	lv := model.ListView{
		Resource: model.ResourceAudit,
		Title:    "Audit Log",
		Subtitle: "Confirmed actions taken in the console",
		Filter:   table.BindFilterBar(r.AuditFilter(), fc).Descriptor(fc.Applied),
	}

	params := fc.Params(r.pageSize)
	list := func(p model.ListParams) ([]audit.Entry, int, error) {
		return r.audit.List(ctx, audit.Filter{
			Resource:  p.Status,
			SubjectID: p.Text,
			Limit:     p.PageSize,
			Offset:    (p.Page - 1) * p.PageSize,
		})
	}
	entries, total, err := list(params)
	if last := (table.Window{ItemsPerPage: params.PageSize, TotalResults: total}).TotalPages(); err == nil && total > 0 && params.Page > last {
		fc.SetPage(last)
		params = fc.Params(r.pageSize)
		entries, total, err = list(params)
	}
	if err != nil {
		lv.State = model.StateError
		return lv, err
	}
	lv.State = model.StateLoaded
	rows := mapRows(entries, r.format, AuditToRow)
	window := table.Window{CurrentPage: params.Page, ItemsPerPage: params.PageSize, TotalResults: total}.Clamp()
	lv.Table, lv.Pagination = table.Paginate(auditColumns, rows, window)
	if len(rows) == 0 {
		lv.Empty = "No actions recorded"
	}
	return lv, nil
}
