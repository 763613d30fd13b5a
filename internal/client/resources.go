package client

import (
	"slices"
	"strings"

	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/model"
)

// Backend actions sent in {action} bodies.
const (
	ActionApprove    = "approve"
	ActionReject     = "reject"
	ActionSuspend    = "suspend"
	ActionReactivate = "reactivate"
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
	ActionBlock      = "block"
	ActionUnblock    = "unblock"
)

// Sub-routes of a record accepting an {action} body.
const (
	RouteStatus   = "status"
	RouteApproval = "approval"
)

// ActionBody is the body of a status or approval change.
type ActionBody struct {
	Action string `json:"action"`
}

// ReasonedActionBody is the vendor variant, which always carries a reason.
type ReasonedActionBody struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// CategoryCreate is the body of a new category.
type CategoryCreate struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CategoryUpdate is the body of a category edit. Empty fields are left
// unchanged.
type CategoryUpdate struct {
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

// SubadminCreate is the body of a new team member.
type SubadminCreate struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// SubadminUpdate is the body of a team member edit.
type SubadminUpdate struct {
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Resources groups the typed clients of every console collection.
type Resources struct {
	Categories *Resource[model.Category]
	Products   *Resource[model.Product]
	Vendors    *Resource[model.Vendor]
	Team       *Resource[model.Subadmin]
	Users      *Resource[model.User]
	Orders     *Resource[model.Order]
	Payouts    *Resource[model.Payout]
}

// NewResources binds every collection to c and qc.
func NewResources(c *Client, qc *cache.QueryCache) *Resources {
	return &Resources{
		Categories: NewResource(c, qc, CategoriesEndpoint),
		Products:   NewResource(c, qc, ProductsEndpoint),
		Vendors:    NewResource(c, qc, VendorsEndpoint),
		Team:       NewResource(c, qc, TeamEndpoint),
		Users:      NewResource(c, qc, UsersEndpoint),
		Orders:     NewResource(c, qc, OrdersEndpoint),
		Payouts:    NewResource(c, qc, PayoutsEndpoint),
	}
}

// listShapes returns the usual lookup order for a collection whose list key
// is key: data.<key>, data.content, content, data, then a bare array.
func listShapes(key string) []ListStrategy {
	return []ListStrategy{
		ListAt("data." + key),
		ListAt("data.content"),
		ListAt("content"),
		ListAt("data"),
		Root,
	}
}

// totalPaths returns the total lookup order for a collection whose counter
// is data.<key>.
func totalPaths(key string) []string {
	return []string{"data." + key, "data.total", "data.totalElements", "totalElements", "total"}
}

var CategoriesEndpoint = Endpoint[model.Category]{
	Name: model.ResourceCategories,
	Path: "admin/categories",
	Lists: []ListStrategy{
		ListAt("data.categories"),
		ListAt("content"),
		ListAt("data"),
		Root,
	},
	Totals:  totalPaths("totalCategories"),
	Objects: []string{"data.category", "data", "$"},
	IDKeys:  []string{"_id", "categoryId", "id"},
	Decode:  DecodeCategory,
}

var ProductsEndpoint = Endpoint[model.Product]{
	Name:    model.ResourceProducts,
	Path:    "admin/products",
	Lists:   listShapes("products"),
	Totals:  totalPaths("totalProducts"),
	Objects: []string{"data.product", "data", "$"},
	IDKeys:  []string{"_id", "productId", "id"},
	Decode:  DecodeProduct,
}

var VendorsEndpoint = Endpoint[model.Vendor]{
	Name:    model.ResourceVendors,
	Path:    "admin/vendors",
	Lists:   listShapes("vendors"),
	Totals:  totalPaths("totalVendors"),
	Objects: []string{"data.vendor", "data", "$"},
	IDKeys:  []string{"_id", "vendorId", "id"},
	Decode:  DecodeVendor,
}

var TeamEndpoint = Endpoint[model.Subadmin]{
	Name: model.ResourceTeam,
	Path: "admin/subadmins",
	Lists: []ListStrategy{
		ListAt("data.content"),
		ListAt("data.subadmins"),
		ListAt("data.data"),
		ListAt("data"),
		Root,
	},
	Totals:  totalPaths("totalSubadmins"),
	Objects: []string{"data.subadmin", "data", "$"},
	IDKeys:  []string{"_id", "id"},
	Decode:  DecodeSubadmin,
}

var UsersEndpoint = Endpoint[model.User]{
	Name:    model.ResourceUsers,
	Path:    "admin/users",
	Lists:   listShapes("users"),
	Totals:  totalPaths("totalUsers"),
	Objects: []string{"data.user", "data", "$"},
	IDKeys:  []string{"_id", "userId", "id"},
	Decode:  DecodeUser,
}

var OrdersEndpoint = Endpoint[model.Order]{
	Name:    model.ResourceOrders,
	Path:    "admin/orders",
	Lists:   listShapes("orders"),
	Totals:  totalPaths("totalOrders"),
	Objects: []string{"data.order", "data", "$"},
	IDKeys:  []string{"_id", "orderId", "id"},
	Decode:  DecodeOrder,
}

var PayoutsEndpoint = Endpoint[model.Payout]{
	Name:    model.ResourcePayouts,
	Path:    "admin/payouts",
	Lists:   listShapes("payouts"),
	Totals:  totalPaths("totalPayouts"),
	Objects: []string{"data.payout", "data", "$"},
	IDKeys:  []string{"_id", "payoutId", "id"},
	Decode:  DecodePayout,
}

// --- decoders ---

// DecodeCategory maps a backend category. isActive stands in for a missing
// status.
func DecodeCategory(r Record) model.Category {
	return model.Category{
		ID:             r.String("_id", "categoryId", "id"),
		Name:           r.String("name", "categoryName"),
		Description:    r.String("description"),
		Status:         statusOf(r, "Active", "Suspended"),
		ActiveProducts: r.Int("productCount", "activeProducts"),
		CreatedAt:      r.String("createdAt", "dateAdded"),
	}
}

// DecodeProduct maps a backend product. A missing status reads as Published
// for active products and Pending otherwise.
func DecodeProduct(r Record) model.Product {
	p := model.Product{
		ID:           r.String("_id", "productId", "id"),
		Name:         r.String("name", "productName", "title"),
		SKU:          r.String("sku", "skuCode"),
		Category:     r.String("category.name", "category.categoryName", "category", "categoryName"),
		VendorName:   r.String("vendor.businessName", "vendor.name", "vendorName", "storeName"),
		Description:  r.String("description"),
		Status:       statusOf(r, "Published", "Pending"),
		Inventory:    r.Int("stock", "inventory", "quantity"),
		Price:        r.Float("price", "unitPrice", "pricing"),
		VAT:          r.Float("vat", "vatAmount", "tax"),
		DiscountType: r.String("discountType"),
		Discount:     r.Float("discount", "discountPercentage", "discountPercent"),
		WeightKg:     r.String("shippingDetails.weight", "weight", "weightKg"),
		Images:       productImages(r),
		CreatedAt:    r.String("createdAt", "dateAdded"),
	}
	if p.Status == "" {
		p.Status = "Pending"
	}
	h := r.String("shippingDetails.height")
	l := r.String("shippingDetails.length")
	w := r.String("shippingDetails.width")
	if h != "" && l != "" && w != "" {
		p.Dimensions = h + " x " + l + " x " + w
	} else {
		p.Dimensions = r.String("dimensions", "size")
	}
	return p
}

// productImages gathers image URLs from the images array (strings, possibly
// comma separated, or {url}/{image} objects) and the single-image fields,
// which take precedence in the order thumbnail, imageUrl, featureImage.
func productImages(r Record) []string {
	var images []string
	switch v, _ := r.Lookup("images"); imgs := v.(type) {
	case string:
		images = splitList(imgs)
	case []any:
		for _, item := range imgs {
			if s, ok := item.(string); ok {
				images = append(images, splitList(s)...)
				continue
			}
			if u := AsRecord(item).String("url", "image"); u != "" {
				images = append(images, u)
			}
		}
	}
	for _, key := range []string{"featureImage", "imageUrl", "thumbnail"} {
		if u := r.String(key); u != "" && !slices.Contains(images, u) {
			images = append([]string{u}, images...)
		}
	}
	return images
}

// DecodeVendor maps a backend vendor.
func DecodeVendor(r Record) model.Vendor {
	return model.Vendor{
		ID:                 r.String("_id", "vendorId", "id"),
		BusinessName:       r.String("businessName", "storeName", "business.name"),
		FirstName:          r.String("firstname", "firstName"),
		LastName:           r.String("lastname", "lastName"),
		Email:              r.String("email"),
		Phone:              r.String("phone", "phoneNumber"),
		Address:            r.String("businessAddress", "address"),
		TaxID:              r.String("taxId", "ein"),
		RegistrationNumber: r.String("registrationNumber", "businessRegistrationNumber"),
		BankName:           r.String("bankDetails.bankName", "bankName"),
		AccountHolder:      r.String("bankDetails.accountName", "bankDetails.accountHolder", "accountName"),
		AccountMask:        MaskAccount(r.String("bankDetails.accountNumber", "accountNumber")),
		Status:             statusOf(r, "Active", "Inactive"),
		RejectionReason:    r.String("rejectionReason", "reason"),
		Revenue:            r.Float("revenue", "totalRevenue"),
		CreatedAt:          r.String("createdAt", "dateJoined"),
	}
}

// DecodeSubadmin maps a backend subadmin.
func DecodeSubadmin(r Record) model.Subadmin {
	return model.Subadmin{
		ID:        r.String("_id", "id"),
		FirstName: r.String("firstname", "firstName"),
		LastName:  r.String("lastname", "lastName"),
		Email:     r.String("email"),
		Phone:     r.String("phone", "phoneNumber"),
		Role:      r.String("role"),
		Status:    statusOf(r, "Active", "Suspended"),
		CreatedAt: r.String("createdAt", "dateAdded"),
	}
}

// DecodeUser maps a backend customer. A blocked flag wins over isActive.
func DecodeUser(r Record) model.User {
	u := model.User{
		ID:          r.String("_id", "userId", "id"),
		FirstName:   r.String("firstname", "firstName"),
		LastName:    r.String("lastname", "lastName"),
		Email:       r.String("email"),
		Phone:       r.String("phone", "phoneNumber"),
		Address:     r.String("address"),
		Status:      statusOf(r, "Active", "Inactive"),
		TotalOrders: r.Int("totalOrders", "ordersCount"),
		LastOrderAt: r.String("lastOrderAt", "lastOrder"),
		CreatedAt:   r.String("createdAt"),
	}
	if blocked, ok := r.Bool("isBlocked", "blocked"); ok && blocked && r.String("status") == "" {
		u.Status = "Blocked"
	}
	return u
}

// DecodeOrder maps a backend order.
func DecodeOrder(r Record) model.Order {
	o := model.Order{
		ID:            r.String("_id", "orderId", "id"),
		OrderNumber:   r.String("orderNumber", "invoiceId", "orderId"),
		CustomerName:  r.String("customer.name", "customerName"),
		CustomerEmail: r.String("customer.email", "customerEmail"),
		VendorName:    r.String("vendor.businessName", "vendor.name", "vendorName"),
		PaymentMethod: r.String("paymentMethod"),
		Status:        statusOf(r, "", ""),
		Total:         r.Float("total", "totalAmount", "amount"),
		ItemCount:     r.Int("itemCount"),
		CreatedAt:     r.String("createdAt", "date"),
	}
	if o.CustomerName == "" {
		o.CustomerName = fullName(r.String("customer.firstname"), r.String("customer.lastname"))
	}
	if o.ItemCount == nil {
		if items := r.Records("items", "products"); items != nil {
			n := len(items)
			o.ItemCount = &n
		}
	}
	return o
}

// DecodePayout maps a backend payout request.
func DecodePayout(r Record) model.Payout {
	return model.Payout{
		ID:         r.String("_id", "payoutId", "id"),
		VendorName: r.String("vendor.businessName", "vendor.name", "vendorName"),
		VendorSite: r.String("vendor.website", "vendorSite"),
		BankMask:   MaskAccount(r.String("bankAccount.accountNumber", "accountNumber", "bankMask")),
		BankHolder: r.String("bankAccount.accountName", "bankHolder", "accountName"),
		Period:     r.String("period"),
		Status:     statusOf(r, "", ""),
		Amount:     r.Float("amount"),
		Commission: r.Float("commission"),
		CreatedAt:  r.String("createdAt"),
	}
}

// DecodeProfile maps the signed-in admin's profile.
func DecodeProfile(r Record) model.Profile {
	active, _ := r.Bool("isActive")
	return model.Profile{
		ID:        r.String("_id", "id"),
		Email:     r.String("email"),
		FirstName: r.String("firstname", "firstName"),
		LastName:  r.String("lastname", "lastName"),
		IsActive:  active,
		Role:      r.String("role"),
	}
}

// statusOf reads "status" and normalizes its case ("pending" -> "Pending").
// Without one it falls back to isActive: active for true, inactive for false.
// With no isActive flag either the status is empty.
func statusOf(r Record, active, inactive string) string {
	if s := r.String("status"); s != "" {
		return capitalize(s)
	}
	if on, ok := r.Bool("isActive"); ok {
		if on {
			return active
		}
		return inactive
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// MaskAccount keeps the last four characters of an account number. Values
// that are already masked are returned unchanged.
func MaskAccount(n string) string {
	n = strings.TrimSpace(n)
	if n == "" || strings.Contains(n, "*") {
		return n
	}
	if len(n) <= 4 {
		return "****" + n
	}
	return "********" + n[len(n)-4:]
}

func fullName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
