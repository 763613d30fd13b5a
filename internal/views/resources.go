package views

import (
	"context"
	"strconv"

	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

func statusOptions(values ...string) []model.OptionDescriptor {
	opts := []model.OptionDescriptor{{Label: "All", Value: table.StatusAll}}
	for _, v := range values {
		opts = append(opts, model.OptionDescriptor{Label: v, Value: v})
	}
	return opts
}

func deleteAction(singular, message string) Action {
	return Action{
		ID:      "delete",
		Label:   "Delete",
		Icon:    "trash",
		Style:   StyleDanger,
		Title:   "Delete " + singular,
		Message: message,
		Confirm: "Delete " + singular,
		InRow:   true,
	}
}

// bindDelete wires a delete action to c.
func bindDelete[T any](a Action, c *client.Resource[T]) Action {
	a.exec = func(ctx context.Context, id, _ string) error {
		return c.Delete(ctx, id)
	}
	return a
}

// bindStatus wires an action to a status or approval sub-route of c.
func bindStatus[T any](a Action, c *client.Resource[T], route, backendAction string) Action {
	a.exec = func(ctx context.Context, id, _ string) error {
		_, err := c.UpdateStatus(ctx, id, route, client.ActionBody{Action: backendAction})
		return err
	}
	return a
}

// bindReasoned is bindStatus for endpoints that take a reason with every
// action.
func bindReasoned[T any](a Action, c *client.Resource[T], route, backendAction string) Action {
	a.exec = func(ctx context.Context, id, reason string) error {
		_, err := c.UpdateStatus(ctx, id, route, client.ReasonedActionBody{Action: backendAction, Reason: reason})
		return err
	}
	return a
}

// --- categories ---

// CategoryRow is a category table row.
type CategoryRow struct {
	ID             string
	Name           string
	ActiveProducts string
	DateAdded      string
	Status         string
}

func (r CategoryRow) RowID() string     { return r.ID }
func (r CategoryRow) RowStatus() string { return r.Status }

// CategoryToRow maps a category to its row.
func CategoryToRow(c model.Category, f Formatter) CategoryRow {
	return CategoryRow{
		ID:             c.ID,
		Name:           f.Text(c.Name),
		ActiveProducts: f.Count(c.ActiveProducts),
		DateAdded:      f.Date(c.CreatedAt),
		Status:         f.Text(c.Status),
	}
}

func newCategoriesView(res *client.Resource[model.Category], d deps) *resourceView[model.Category, CategoryRow] {
	return &resourceView[model.Category, CategoryRow]{
		name:     model.ResourceCategories,
		singular: "Category",
		title:    "Categories",
		subtitle: "Manage your categories",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by name...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Active", "Suspended"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Date Added",
		},
		pageSize:  d.pageSize,
		creatable: true,
		editable:  true,
		client:    res,
		tracker:   d.tracker,
		format:    d.format,
		toRow:     CategoryToRow,
		columns: []table.Column[CategoryRow]{
			textColumn("name", "Category", func(r CategoryRow) string { return r.Name }),
			textColumn("activeProducts", "Active Products", func(r CategoryRow) string { return r.ActiveProducts }),
			textColumn("dateAdded", "Date Added", func(r CategoryRow) string { return r.DateAdded }),
			statusColumn(func(r CategoryRow) string { return r.Status }),
		},
		titleOf:  func(c model.Category) string { return c.Name },
		statusOf: func(c model.Category) string { return c.Status },
		sections: func(c model.Category, f Formatter) []model.DetailSection {
			return []model.DetailSection{{
				Title: "General Information",
				Fields: []model.DetailField{
					field("Category Name", f.Text(c.Name)),
					field("Description", f.Text(c.Description)),
					field("Active Products", f.Count(c.ActiveProducts)),
					field("Date Added", f.Date(c.CreatedAt)),
					statusField(c.Status),
				},
			}}
		},
		actions: []Action{
			bindDelete(deleteAction("Category",
				"This action will permanently remove the category and its products from your store. Products will revert to draft status. This cannot be undone."), res),
		},
	}
}

// --- products ---

// ProductRow is a product table row.
type ProductRow struct {
	ID        string
	Name      string
	SKU       string
	Category  string
	Inventory string
	Price     string
	DateAdded string
	Status    string
}

func (r ProductRow) RowID() string     { return r.ID }
func (r ProductRow) RowStatus() string { return r.Status }

// ProductToRow maps a product to its row.
func ProductToRow(p model.Product, f Formatter) ProductRow {
	return ProductRow{
		ID:        p.ID,
		Name:      f.Text(p.Name),
		SKU:       f.Text(p.SKU),
		Category:  f.Text(p.Category),
		Inventory: f.Count(p.Inventory),
		Price:     f.Money(p.Price),
		DateAdded: f.Date(p.CreatedAt),
		Status:    f.Text(p.Status),
	}
}

func productSections(p model.Product, f Formatter) []model.DetailSection {
	discountType := f.Text(p.DiscountType)
	weight := f.Text(p.WeightKg)
	sections := []model.DetailSection{
		{
			Title: "General Information",
			Fields: []model.DetailField{
				field("Product Category", f.Text(p.Category)),
				field("SKU", f.Text(p.SKU)),
				field("Quantity Available (Stock)", f.Count(p.Inventory)),
				field("Vendor", f.Text(p.VendorName)),
				field("Description", f.Text(p.Description)),
				statusField(p.Status),
			},
		},
		{
			Title: "Pricing",
			Fields: []model.DetailField{
				field("Pricing", f.Money(p.Price)),
				field("VAT Amount (%)", f.Percent(p.VAT)),
				field("Discount Type", discountType),
				field("Discount Percentage (%)", f.Percent(p.Discount)),
			},
		},
		{
			Title: "Shipping",
			Fields: []model.DetailField{
				field("Weight (kg)", weight),
				field("Dimensions [Height x Length x Width] (cm)", f.Text(p.Dimensions)),
			},
		},
	}
	images := model.DetailSection{Title: "Product Images", Fields: []model.DetailField{}}
	for i, u := range p.Images {
		images.Fields = append(images.Fields, model.DetailField{
			Label: "Image " + strconv.Itoa(i+1),
			Value: u,
			Kind:  "image",
		})
	}
	return append(sections, images)
}

func newProductsView(res *client.Resource[model.Product], d deps) *resourceView[model.Product, ProductRow] {
	return &resourceView[model.Product, ProductRow]{
		name:     model.ResourceProducts,
		singular: "Product",
		title:    "Products Portfolio",
		subtitle: "Manage and approve products",
		empty:    "No products found",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by product name, SKU, or category...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Pending", "Published", "Suspended", "Rejected"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Date Added",
		},
		pageSize: d.pageSize,
		client:   res,
		tracker:  d.tracker,
		format:   d.format,
		toRow:    ProductToRow,
		columns: []table.Column[ProductRow]{
			textColumn("productName", "Product", func(r ProductRow) string { return r.Name }),
			textColumn("sku", "SKU", func(r ProductRow) string { return r.SKU }),
			textColumn("category", "Category", func(r ProductRow) string { return r.Category }),
			textColumn("inventory", "Inventory", func(r ProductRow) string { return r.Inventory }),
			textColumn("price", "Price", func(r ProductRow) string { return r.Price }),
			textColumn("dateAdded", "Date Added", func(r ProductRow) string { return r.DateAdded }),
			statusColumn(func(r ProductRow) string { return r.Status }),
		},
		titleOf:  func(p model.Product) string { return p.Name },
		statusOf: func(p model.Product) string { return p.Status },
		sections: productSections,
		actions: []Action{
			bindStatus(Action{
				ID:      client.ActionApprove,
				Label:   "Approve",
				Icon:    "check",
				Style:   StylePrimary,
				Title:   "Approve Product",
				Message: "Approving this product will publish it to the catalog and make it available for purchase.",
				Confirm: "Approve Product",
				When:    []string{"Pending"},
			}, res, client.RouteApproval, client.ActionApprove),
			bindStatus(Action{
				ID:      client.ActionReject,
				Label:   "Reject",
				Icon:    "x",
				Style:   StyleDanger,
				Title:   "Reject Product",
				Message: "Rejecting the product request will deny its approval and remove the application from the pending list. This action cannot be undone.",
				Confirm: "Reject Product",
				When:    []string{"Pending"},
			}, res, client.RouteApproval, client.ActionReject),
			bindStatus(Action{
				ID:      client.ActionSuspend,
				Label:   "Suspend",
				Icon:    "pause",
				Style:   StyleDanger,
				Title:   "Suspend Product",
				Message: "Are you sure you want to suspend this product? The vendor's access will be temporarily disabled until reactivated.",
				Confirm: "Suspend Product",
				When:    []string{"Published"},
			}, res, client.RouteStatus, client.ActionSuspend),
			bindStatus(Action{
				ID:      client.ActionReactivate,
				Label:   "Reactivate",
				Icon:    "refresh",
				Style:   StylePrimary,
				Title:   "Reactivate Product",
				Message: "Reactivating this product will restore it to the catalog and make it available for purchase again.",
				Confirm: "Reactivate Product",
				When:    []string{"Suspended"},
			}, res, client.RouteStatus, client.ActionReactivate),
			bindDelete(deleteAction("Product",
				"Deleting the product will permanently remove it from the catalog. This action cannot be undone."), res),
		},
	}
}

// --- vendors ---

// VendorRow is a vendor table row.
type VendorRow struct {
	ID         string
	FullName   string
	Business   string
	Email      string
	Phone      string
	Revenue    string
	DateJoined string
	Status     string
}

func (r VendorRow) RowID() string     { return r.ID }
func (r VendorRow) RowStatus() string { return r.Status }

// VendorToRow maps a vendor to its row.
func VendorToRow(v model.Vendor, f Formatter) VendorRow {
	return VendorRow{
		ID:         v.ID,
		FullName:   f.Name(v.FirstName, v.LastName),
		Business:   f.Text(v.BusinessName),
		Email:      f.Text(v.Email),
		Phone:      f.Text(v.Phone),
		Revenue:    f.Money(v.Revenue),
		DateJoined: f.Date(v.CreatedAt),
		Status:     f.Text(v.Status),
	}
}

func vendorSections(v model.Vendor, f Formatter) []model.DetailSection {
	status := []model.DetailField{statusField(v.Status)}
	if v.RejectionReason != "" {
		status = append(status, field("Rejection Reason", v.RejectionReason))
	}
	return []model.DetailSection{
		{
			Title: "Business Information",
			Fields: []model.DetailField{
				field("Vendor ID", f.Text(v.ID)),
				field("Business Name", f.Text(v.BusinessName)),
				field("Tax ID / EIN", f.Text(v.TaxID)),
				field("Business Registration Number", f.Text(v.RegistrationNumber)),
				field("Business Address", f.Text(v.Address)),
			},
		},
		{
			Title: "Contact Information",
			Fields: []model.DetailField{
				field("Primary Contact", f.Name(v.FirstName, v.LastName)),
				field("Contact Email", f.Text(v.Email)),
				field("Phone Number", f.Text(v.Phone)),
			},
		},
		{
			Title: "Bank Details",
			Fields: []model.DetailField{
				field("Bank Name", f.Text(v.BankName)),
				field("Account Holder Name", f.Text(v.AccountHolder)),
				field("Account Number", f.Text(v.AccountMask)),
			},
		},
		{
			Title: "Performance",
			Fields: []model.DetailField{
				field("Revenue", f.Money(v.Revenue)),
				field("Date Joined", f.Date(v.CreatedAt)),
			},
		},
		{Title: "Status", Fields: status},
	}
}

func newVendorsView(res *client.Resource[model.Vendor], d deps) *resourceView[model.Vendor, VendorRow] {
	return &resourceView[model.Vendor, VendorRow]{
		name:     model.ResourceVendors,
		singular: "Vendor",
		title:    "Vendor Management",
		subtitle: "Manage and approve vendor registrations",
		empty:    "No vendors found",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by name, email, or phone...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Pending", "Active", "Rejected", "Inactive"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Date Joined",
		},
		pageSize: d.pageSize,
		client:   res,
		tracker:  d.tracker,
		format:   d.format,
		toRow:    VendorToRow,
		columns: []table.Column[VendorRow]{
			textColumn("vendorId", "Vendor ID", func(r VendorRow) string { return r.ID }),
			avatarColumn("fullName", "Full Name",
				func(r VendorRow) string { return r.FullName },
				func(r VendorRow) string { return r.Business }),
			textColumn("email", "Email", func(r VendorRow) string { return r.Email }),
			textColumn("phone", "Phone Number", func(r VendorRow) string { return r.Phone }),
			textColumn("revenue", "Revenue", func(r VendorRow) string { return r.Revenue }),
			textColumn("dateJoined", "Date Joined", func(r VendorRow) string { return r.DateJoined }),
			statusColumn(func(r VendorRow) string { return r.Status }),
		},
		titleOf: func(v model.Vendor) string {
			if n := (Formatter{}).Name(v.FirstName, v.LastName); n != model.Placeholder {
				return n
			}
			return v.BusinessName
		},
		statusOf: func(v model.Vendor) string { return v.Status },
		sections: vendorSections,
		actions: []Action{
			bindReasoned(Action{
				ID:      client.ActionApprove,
				Label:   "Approve",
				Icon:    "check",
				Style:   StylePrimary,
				Title:   "Approve Vendor",
				Message: "Approving this vendor will grant them access to the platform. They will be able to start selling their products.",
				Confirm: "Approve Vendor",
				When:    []string{"Pending"},
			}, res, client.RouteApproval, client.ActionApprove),
			bindReasoned(Action{
				ID:             client.ActionReject,
				Label:          "Reject",
				Icon:           "x",
				Style:          StyleDanger,
				Title:          "Reject Vendor",
				Message:        "Rejecting the vendor request will deny their account approval and remove the application from the pending list. This action cannot be undone.",
				Confirm:        "Reject Vendor",
				RequiresReason: true,
				When:           []string{"Pending"},
			}, res, client.RouteApproval, client.ActionReject),
			bindReasoned(Action{
				ID:      client.ActionDeactivate,
				Label:   "Deactivate",
				Icon:    "pause",
				Style:   StyleDanger,
				Title:   "Deactivate Vendor",
				Message: "Deactivating the vendor will disable their store and hide their products until reactivated.",
				Confirm: "Deactivate Vendor",
				When:    []string{"Active"},
			}, res, client.RouteStatus, client.ActionDeactivate),
			bindReasoned(Action{
				ID:      client.ActionActivate,
				Label:   "Activate",
				Icon:    "refresh",
				Style:   StylePrimary,
				Title:   "Activate Vendor",
				Message: "Activating the vendor will restore their store and make their products available again.",
				Confirm: "Activate Vendor",
				When:    []string{"Inactive"},
			}, res, client.RouteStatus, client.ActionActivate),
			bindDelete(deleteAction("Vendor",
				"Deleting the vendor will permanently remove their account, associated data, and access from the system. This action cannot be undone."), res),
		},
	}
}

// --- users ---

// UserRow is a customer table row.
type UserRow struct {
	ID          string
	FullName    string
	Email       string
	Phone       string
	TotalOrders string
	LastOrder   string
	Status      string
}

func (r UserRow) RowID() string     { return r.ID }
func (r UserRow) RowStatus() string { return r.Status }

// UserToRow maps a customer to its row.
func UserToRow(u model.User, f Formatter) UserRow {
	return UserRow{
		ID:          u.ID,
		FullName:    f.Name(u.FirstName, u.LastName),
		Email:       f.Text(u.Email),
		Phone:       f.Text(u.Phone),
		TotalOrders: f.Count(u.TotalOrders),
		LastOrder:   f.Date(u.LastOrderAt),
		Status:      f.Text(u.Status),
	}
}

func newUsersView(res *client.Resource[model.User], d deps) *resourceView[model.User, UserRow] {
	return &resourceView[model.User, UserRow]{
		name:     model.ResourceUsers,
		singular: "User",
		title:    "Users Management",
		subtitle: "Manage users",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by name, email, or phone...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Active", "Inactive", "Blocked"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Last Order On",
		},
		pageSize: d.pageSize,
		client:   res,
		tracker:  d.tracker,
		format:   d.format,
		toRow:    UserToRow,
		columns: []table.Column[UserRow]{
			textColumn("userId", "User ID", func(r UserRow) string { return r.ID }),
			avatarColumn("fullName", "Full Name",
				func(r UserRow) string { return r.FullName },
				func(r UserRow) string { return r.Email }),
			textColumn("email", "Email", func(r UserRow) string { return r.Email }),
			textColumn("phone", "Phone Number", func(r UserRow) string { return r.Phone }),
			textColumn("totalOrders", "Total Orders", func(r UserRow) string { return r.TotalOrders }),
			textColumn("lastOrder", "Last Order", func(r UserRow) string { return r.LastOrder }),
			statusColumn(func(r UserRow) string { return r.Status }),
		},
		titleOf:  func(u model.User) string { return (Formatter{}).Name(u.FirstName, u.LastName) },
		statusOf: func(u model.User) string { return u.Status },
		sections: func(u model.User, f Formatter) []model.DetailSection {
			return []model.DetailSection{
				{
					Title: "Personal Information",
					Fields: []model.DetailField{
						field("User ID", f.Text(u.ID)),
						field("Email", f.Text(u.Email)),
						field("Phone", f.Text(u.Phone)),
						field("Member Since", f.Date(u.CreatedAt)),
						field("Address", f.Text(u.Address)),
					},
				},
				{
					Title: "Activity",
					Fields: []model.DetailField{
						field("Total Orders", f.Count(u.TotalOrders)),
						field("Last Order", f.Date(u.LastOrderAt)),
						statusField(u.Status),
					},
				},
			}
		},
		actions: []Action{
			bindStatus(Action{
				ID:      client.ActionBlock,
				Label:   "Inactivate",
				Icon:    "ban",
				Style:   StyleDanger,
				Title:   "Inactivate User",
				Message: "Inactivating the user will disable their account and restrict their access to the platform. You can reactivate them later if needed.",
				Confirm: "Inactivate User",
				When:    []string{"Active"},
			}, res, client.RouteStatus, client.ActionBlock),
			bindStatus(Action{
				ID:      client.ActionUnblock,
				Label:   "Activate",
				Icon:    "refresh",
				Style:   StylePrimary,
				Title:   "Activate User",
				Message: "Activating the user will restore their account and grant them full access to the platform.",
				Confirm: "Activate User",
				When:    []string{"Inactive", "Blocked"},
			}, res, client.RouteStatus, client.ActionUnblock),
			bindDelete(deleteAction("User",
				"Deleting the user will permanently remove their account, order history, and access from the system. This action cannot be undone."), res),
		},
	}
}

// --- team ---

// TeamRow is a team member table row.
type TeamRow struct {
	ID        string
	FullName  string
	Email     string
	Phone     string
	DateAdded string
	Status    string
}

func (r TeamRow) RowID() string     { return r.ID }
func (r TeamRow) RowStatus() string { return r.Status }

// TeamToRow maps a subadmin to its row.
func TeamToRow(s model.Subadmin, f Formatter) TeamRow {
	return TeamRow{
		ID:        s.ID,
		FullName:  f.Name(s.FirstName, s.LastName),
		Email:     f.Text(s.Email),
		Phone:     f.Text(s.Phone),
		DateAdded: f.Date(s.CreatedAt),
		Status:    f.Text(s.Status),
	}
}

func newTeamView(res *client.Resource[model.Subadmin], d deps) *resourceView[model.Subadmin, TeamRow] {
	return &resourceView[model.Subadmin, TeamRow]{
		name:     model.ResourceTeam,
		singular: "Admin",
		title:    "Team Management",
		subtitle: "Manage your admins.",
		empty:    "No team members found",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by name, id, email...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Active", "Suspended"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Date Added",
		},
		pageSize:  d.pageSize,
		creatable: true,
		editable:  true,
		client:    res,
		tracker:   d.tracker,
		format:    d.format,
		toRow:     TeamToRow,
		columns: []table.Column[TeamRow]{
			textColumn("userId", "User ID", func(r TeamRow) string { return r.ID }),
			avatarColumn("fullName", "Full Name",
				func(r TeamRow) string { return r.FullName },
				func(r TeamRow) string { return r.Email }),
			textColumn("email", "Email", func(r TeamRow) string { return r.Email }),
			textColumn("phone", "Phone Number", func(r TeamRow) string { return r.Phone }),
			textColumn("dateAdded", "Date Added", func(r TeamRow) string { return r.DateAdded }),
			statusColumn(func(r TeamRow) string { return r.Status }),
		},
		titleOf:  func(s model.Subadmin) string { return (Formatter{}).Name(s.FirstName, s.LastName) },
		statusOf: func(s model.Subadmin) string { return s.Status },
		sections: func(s model.Subadmin, f Formatter) []model.DetailSection {
			return []model.DetailSection{{
				Title: "Personal Information",
				Fields: []model.DetailField{
					field("User ID", f.Text(s.ID)),
					field("Email", f.Text(s.Email)),
					field("Phone", f.Text(s.Phone)),
					field("Role", f.Text(s.Role)),
					field("Member Since", f.Date(s.CreatedAt)),
					statusField(s.Status),
				},
			}}
		},
		actions: []Action{
			bindStatus(Action{
				ID:      client.ActionDeactivate,
				Label:   "Inactivate",
				Icon:    "ban",
				Style:   StyleDanger,
				Title:   "Inactivate User",
				Message: "Are you sure you want to inactivate this user? The user's access will be temporarily disabled until reactivated.",
				Confirm: "Inactivate User",
				When:    []string{"Active"},
			}, res, client.RouteStatus, client.ActionDeactivate),
			bindStatus(Action{
				ID:      client.ActionActivate,
				Label:   "Reactivate",
				Icon:    "refresh",
				Style:   StylePrimary,
				Title:   "Reactivate User",
				Message: "Reactivating this user will restore their access to the system.",
				Confirm: "Reactivate User",
				When:    []string{"Suspended", "Inactive"},
			}, res, client.RouteStatus, client.ActionActivate),
			bindDelete(deleteAction("User",
				"Deleting the user will permanently remove their account, associated data, and access from the system. This action cannot be undone."), res),
		},
	}
}

// --- orders ---

// OrderRow is an order table row.
type OrderRow struct {
	ID            string
	Number        string
	Customer      string
	CustomerEmail string
	Vendor        string
	Items         string
	Total         string
	PaymentMethod string
	Date          string
	Status        string
}

func (r OrderRow) RowID() string     { return r.ID }
func (r OrderRow) RowStatus() string { return r.Status }

// OrderToRow maps an order to its row.
func OrderToRow(o model.Order, f Formatter) OrderRow {
	number := o.OrderNumber
	if number == "" {
		number = o.ID
	}
	return OrderRow{
		ID:            o.ID,
		Number:        f.Text(number),
		Customer:      f.Text(o.CustomerName),
		CustomerEmail: o.CustomerEmail,
		Vendor:        f.Text(o.VendorName),
		Items:         f.Count(o.ItemCount),
		Total:         f.Money(o.Total),
		PaymentMethod: f.Text(o.PaymentMethod),
		Date:          f.Date(o.CreatedAt),
		Status:        f.Text(o.Status),
	}
}

func newOrdersView(res *client.Resource[model.Order], d deps) *resourceView[model.Order, OrderRow] {
	return &resourceView[model.Order, OrderRow]{
		name:     model.ResourceOrders,
		singular: "Order",
		title:    "Orders",
		subtitle: "Manage your orders",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by order number, customer, or vendor...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Pending", "Processing", "Shipped", "Delivered", "Cancelled"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Order Date",
		},
		pageSize: d.pageSize,
		client:   res,
		tracker:  d.tracker,
		format:   d.format,
		toRow:    OrderToRow,
		columns: []table.Column[OrderRow]{
			textColumn("orderNumber", "Order ID", func(r OrderRow) string { return r.Number }),
			avatarColumn("customer", "Customer",
				func(r OrderRow) string { return r.Customer },
				func(r OrderRow) string { return r.CustomerEmail }),
			textColumn("vendor", "Vendor", func(r OrderRow) string { return r.Vendor }),
			textColumn("items", "Items", func(r OrderRow) string { return r.Items }),
			textColumn("total", "Amount", func(r OrderRow) string { return r.Total }),
			textColumn("paymentMethod", "Payment Method", func(r OrderRow) string { return r.PaymentMethod }),
			textColumn("date", "Date", func(r OrderRow) string { return r.Date }),
			statusColumn(func(r OrderRow) string { return r.Status }),
		},
		titleOf: func(o model.Order) string {
			if o.OrderNumber != "" {
				return "#" + o.OrderNumber
			}
			return o.ID
		},
		statusOf: func(o model.Order) string { return o.Status },
		sections: func(o model.Order, f Formatter) []model.DetailSection {
			return []model.DetailSection{
				{
					Title: "Order",
					Fields: []model.DetailField{
						field("Order Date", f.Date(o.CreatedAt)),
						field("Items", f.Count(o.ItemCount)),
						field("Total", f.Money(o.Total)),
						field("Payment Method", f.Text(o.PaymentMethod)),
						statusField(o.Status),
					},
				},
				{
					Title: "Customer Information",
					Fields: []model.DetailField{
						field("Name", f.Text(o.CustomerName)),
						field("Email", f.Text(o.CustomerEmail)),
					},
				},
				{
					Title:  "Vendor",
					Fields: []model.DetailField{field("Store", f.Text(o.VendorName))},
				},
			}
		},
	}
}

// --- payouts ---

// PayoutRow is a payout request table row.
type PayoutRow struct {
	ID         string
	Vendor     string
	Site       string
	BankMask   string
	BankHolder string
	Amount     string
	Commission string
	Period     string
	Status     string
}

func (r PayoutRow) RowID() string     { return r.ID }
func (r PayoutRow) RowStatus() string { return r.Status }

// PayoutToRow maps a payout to its row.
func PayoutToRow(p model.Payout, f Formatter) PayoutRow {
	return PayoutRow{
		ID:         p.ID,
		Vendor:     f.Text(p.VendorName),
		Site:       p.VendorSite,
		BankMask:   f.Text(p.BankMask),
		BankHolder: p.BankHolder,
		Amount:     f.Money(p.Amount),
		Commission: f.Money(p.Commission),
		Period:     f.Text(p.Period),
		Status:     f.Text(p.Status),
	}
}

func newPayoutsView(res *client.Resource[model.Payout], d deps) *resourceView[model.Payout, PayoutRow] {
	return &resourceView[model.Payout, PayoutRow]{
		name:     model.ResourcePayouts,
		singular: "Payout",
		title:    "Earning & Payout",
		subtitle: "Review and release vendor payouts",
		empty:    "No payout requests found",
		filter: table.FilterBarConfig{
			SearchPlaceholder: "Search by vendor...",
			StatusLabel:       "Status",
			StatusOptions:     statusOptions("Pending", "Approved", "Rejected"),
			ShowStatus:        true,
			ShowDate:          true,
			DateLabel:         "Requested On",
		},
		pageSize: d.pageSize,
		client:   res,
		tracker:  d.tracker,
		format:   d.format,
		toRow:    PayoutToRow,
		columns: []table.Column[PayoutRow]{
			avatarColumn("vendorName", "Vendor",
				func(r PayoutRow) string { return r.Vendor },
				func(r PayoutRow) string { return r.Site }),
			avatarColumn("bankMask", "Bank Account",
				func(r PayoutRow) string { return r.BankMask },
				func(r PayoutRow) string { return r.BankHolder }),
			textColumn("amount", "Amount", func(r PayoutRow) string { return r.Amount }),
			textColumn("commission", "Commission", func(r PayoutRow) string { return r.Commission }),
			textColumn("period", "Period", func(r PayoutRow) string { return r.Period }),
			statusColumn(func(r PayoutRow) string { return r.Status }),
		},
		titleOf:  func(p model.Payout) string { return p.VendorName },
		statusOf: func(p model.Payout) string { return p.Status },
		sections: func(p model.Payout, f Formatter) []model.DetailSection {
			return []model.DetailSection{
				{
					Title: "Payout",
					Fields: []model.DetailField{
						field("Amount", f.Money(p.Amount)),
						field("Commission", f.Money(p.Commission)),
						field("Period", f.Text(p.Period)),
						field("Requested On", f.Date(p.CreatedAt)),
						statusField(p.Status),
					},
				},
				{
					Title: "Vendor",
					Fields: []model.DetailField{
						field("Vendor", f.Text(p.VendorName)),
						field("Website", f.Text(p.VendorSite)),
						field("Bank Account", f.Text(p.BankMask)),
						field("Account Holder Name", f.Text(p.BankHolder)),
					},
				},
			}
		},
		actions: []Action{
			bindStatus(Action{
				ID:      client.ActionApprove,
				Label:   "Release",
				Icon:    "check",
				Style:   StylePrimary,
				Title:   "Release Payment",
				Message: "Are you sure you want to release the payment? The payout request will be approved and payment will be disbursed to the vendor's bank account.",
				Confirm: "Release Payment",
				When:    []string{"Pending"},
				InRow:   true,
			}, res, client.RouteApproval, client.ActionApprove),
			bindStatus(Action{
				ID:      client.ActionReject,
				Label:   "Reject",
				Icon:    "x",
				Style:   StyleDanger,
				Title:   "Reject Payout",
				Message: "Rejecting the payout request will return the funds to the vendor's balance. The vendor can submit a new request.",
				Confirm: "Reject Payout",
				When:    []string{"Pending"},
			}, res, client.RouteApproval, client.ActionReject),
		},
	}
}
