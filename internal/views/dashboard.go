package views

import (
	"context"

	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

// recentLimit caps the rows of each recent-activity table.
const recentLimit = 5

// Dashboard renders the statistics cards and recent-activity tables the
// admin may see. Counters missing from the payload read as zero.
func (r *Registry) Dashboard(ctx context.Context, caps model.CapabilitySet) (model.DashboardView, error) {
	dv := model.DashboardView{Cards: []model.StatCard{}, Recent: []model.RecentTable{}}
	if !caps.Has(model.ViewCapability(model.ResourceDashboard)) {
		return dv, model.NewForbiddenError("Insufficient permissions to view the dashboard")
	}

	key := query.Key(model.RequestContextFrom(ctx).Scope(), model.ResourceDashboard, "summary")
	res, err := query.Run(ctx, r.tracker, key, model.ResourceDashboard, r.account.Dashboard)
	dv.State = res.State
	if err != nil {
		return dv, err
	}
	d := res.Value
	f := r.format

	card := func(resource, label string, c model.Counter, detail ...model.DetailField) {
		if !caps.Has(model.ViewCapability(resource)) {
			return
		}
		dv.Cards = append(dv.Cards, model.StatCard{ID: resource, Label: label, Value: f.Number(c.Total), Detail: detail})
	}
	count := func(label string, n int) model.DetailField {
		return field(label, f.Number(n))
	}

	card(model.ResourceUsers, "Total Users", d.Users,
		count("Active", d.Users.Active), count("Blocked", d.Users.Blocked))
	card(model.ResourceVendors, "Total Vendors", d.Vendors,
		count("Pending", d.Vendors.Pending), count("Approved", d.Vendors.Approved), count("Rejected", d.Vendors.Rejected))
	card(model.ResourceCategories, "Total Categories", d.Categories,
		count("Active", d.Categories.Active))
	card(model.ResourceOrders, "Total Orders", d.Orders,
		count("Pending", d.Orders.Pending), count("Delivered", d.Orders.Delivered))
	card(model.ResourceProducts, "Total Products", d.Products,
		count("Pending", d.Products.Pending), count("Approved", d.Products.Approved), count("Rejected", d.Products.Rejected))
	if caps.Has(model.ViewCapability(model.ResourceOrders)) {
		dv.Cards = append(dv.Cards, model.StatCard{ID: "revenue", Label: "Total Revenue", Value: f.Amount(d.RevenueTotal)})
	}

	if caps.Has(model.ViewCapability(model.ResourceProducts)) {
		rows := mapRows(head(d.RecentProducts), f, ProductToRow)
		dv.Recent = append(dv.Recent, model.RecentTable{
			ID:    model.ResourceProducts,
			Title: "Recent Products",
			Route: "/products",
			Table: table.Render([]table.Column[ProductRow]{
				textColumn("productName", "Product", func(r ProductRow) string { return r.Name }),
				textColumn("category", "Category", func(r ProductRow) string { return r.Category }),
				textColumn("price", "Price", func(r ProductRow) string { return r.Price }),
				statusColumn(func(r ProductRow) string { return r.Status }),
			}, rows),
		})
	}
	if caps.Has(model.ViewCapability(model.ResourceUsers)) {
		rows := mapRows(head(d.RecentUsers), f, UserToRow)
		dv.Recent = append(dv.Recent, model.RecentTable{
			ID:    model.ResourceUsers,
			Title: "Recent Users",
			Route: "/users",
			Table: table.Render([]table.Column[UserRow]{
				avatarColumn("fullName", "Full Name",
					func(r UserRow) string { return r.FullName },
					func(r UserRow) string { return r.Email }),
				textColumn("phone", "Phone Number", func(r UserRow) string { return r.Phone }),
				statusColumn(func(r UserRow) string { return r.Status }),
			}, rows),
		})
	}
	if caps.Has(model.ViewCapability(model.ResourceVendors)) {
		rows := mapRows(head(d.RecentVendors), f, VendorToRow)
		dv.Recent = append(dv.Recent, model.RecentTable{
			ID:    model.ResourceVendors,
			Title: "Recent Vendors",
			Route: "/vendors",
			Table: table.Render([]table.Column[VendorRow]{
				avatarColumn("fullName", "Vendor",
					func(r VendorRow) string { return r.FullName },
					func(r VendorRow) string { return r.Email }),
				textColumn("dateJoined", "Date Joined", func(r VendorRow) string { return r.DateJoined }),
				statusColumn(func(r VendorRow) string { return r.Status }),
			}, rows),
		})
	}
	return dv, nil
}

func head[T any](items []T) []T {
	if len(items) > recentLimit {
		return items[:recentLimit]
	}
	return items
}

func mapRows[T, R any](items []T, f Formatter, toRow func(T, Formatter) R) []R {
	rows := make([]R, len(items))
	for i, item := range items {
		rows[i] = toRow(item, f)
	}
	return rows
}
