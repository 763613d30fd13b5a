package views

import (
	"github.com/pitabwire/bazaar/internal/audit"
	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/model"
)

// DefaultPageSize is the list page size when none is configured.
const DefaultPageSize = 10

// deps is what every resource view shares.
type deps struct {
	tracker  *query.Tracker
	format   Formatter
	pageSize int
}

// Registry holds the console screens in sidebar order.
type Registry struct {
	views  []View
	byName map[string]View

	resources *client.Resources
	account   *client.Account
	audit     audit.Store
	tracker   *query.Tracker
	format    Formatter
	pageSize  int
}

// Option configures a Registry.
type Option func(*Registry)

// WithAudit enables the audit trail screen.
func WithAudit(s audit.Store) Option {
	return func(r *Registry) { r.audit = s }
}

// WithFormatter sets the display formatter.
func WithFormatter(f Formatter) Option {
	return func(r *Registry) { r.format = f }
}

// WithPageSize sets the list page size.
func WithPageSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// NewRegistry builds every resource view over res. account serves the
// dashboard and the profile screen.
func NewRegistry(res *client.Resources, account *client.Account, tracker *query.Tracker, opts ...Option) *Registry {
	r := &Registry{
		byName:    make(map[string]View),
		resources: res,
		account:   account,
		tracker:   tracker,
		format:    NewFormatter("en"),
		pageSize:  DefaultPageSize,
	}
	for _, o := range opts {
		o(r)
	}

	d := deps{tracker: tracker, format: r.format, pageSize: r.pageSize}
	r.register(newProductsView(res.Products, d))
	r.register(newVendorsView(res.Vendors, d))
	r.register(newCategoriesView(res.Categories, d))
	r.register(newUsersView(res.Users, d))
	r.register(newOrdersView(res.Orders, d))
	r.register(newPayoutsView(res.Payouts, d))
	r.register(newTeamView(res.Team, d))
	return r
}

func (r *Registry) register(v View) {
	r.views = append(r.views, v)
	r.byName[v.Resource()] = v
}

// Get returns the view of a resource.
func (r *Registry) Get(resource string) (View, bool) {
	v, ok := r.byName[resource]
	return v, ok
}

// Views returns every resource view in sidebar order.
func (r *Registry) Views() []View {
	return r.views
}

type navEntry struct {
	id         string
	label      string
	icon       string
	route      string
	capability string
}

var navigation = []navEntry{
	{model.ResourceDashboard, "Dashboard", "home", "/", model.ViewCapability(model.ResourceDashboard)},
	{model.ResourceProducts, "Products", "package", "/products", model.ViewCapability(model.ResourceProducts)},
	{model.ResourceVendors, "Vendors", "store", "/vendors", model.ViewCapability(model.ResourceVendors)},
	{model.ResourceCategories, "Categories", "grid", "/categories", model.ViewCapability(model.ResourceCategories)},
	{model.ResourceUsers, "Users", "users", "/users", model.ViewCapability(model.ResourceUsers)},
	{model.ResourceOrders, "Orders", "cart", "/orders", model.ViewCapability(model.ResourceOrders)},
	{model.ResourcePayouts, "Earning & Payout", "wallet", "/payouts", model.ViewCapability(model.ResourcePayouts)},
	{model.ResourceTeam, "Team", "shield", "/team", model.ViewCapability(model.ResourceTeam)},
	{model.ResourceAudit, "Audit Log", "list", "/audit", model.ViewCapability(model.ResourceAudit)},
	{model.ResourceProfile, "Profile", "user", "/profile", model.ViewCapability(model.ResourceProfile)},
}

// Navigation returns the sidebar entries the admin may open. Logout is
// always present.
func (r *Registry) Navigation(caps model.CapabilitySet) model.NavigationTree {
	tree := model.NavigationTree{Items: []model.NavigationNode{}}
	for _, e := range navigation {
		if e.id == model.ResourceAudit && r.audit == nil {
			continue
		}
		if !caps.Has(e.capability) {
			continue
		}
		tree.Items = append(tree.Items, model.NavigationNode{ID: e.id, Label: e.label, Icon: e.icon, Route: e.route})
	}
	tree.Items = append(tree.Items, model.NavigationNode{ID: "logout", Label: "Logout", Icon: "logout", Route: "/ui/auth/logout"})
	return tree
}
