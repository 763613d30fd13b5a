package model

// Resource names. They double as route segments, cache tag types, and
// capability namespaces.
const (
	ResourceCategories = "categories"
	ResourceProducts   = "products"
	ResourceVendors    = "vendors"
	ResourceUsers      = "users"
	ResourceOrders     = "orders"
	ResourceTeam       = "team"
	ResourcePayouts    = "payouts"
	ResourceDashboard  = "dashboard"
	ResourceProfile    = "profile"
	ResourceAudit      = "audit"
)

// ListTagID is the tag id shared by every cached list of a resource.
const ListTagID = "LIST"

// Tag identifies a group of cached responses. {Type, ID} covers a single
// record, {Type, "LIST"} every list of that resource.
type Tag struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String returns "type:id".
func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

// ItemTag returns the tag of a single record.
func ItemTag(resource, id string) Tag {
	return Tag{Type: resource, ID: id}
}

// ListTag returns the tag shared by all lists of a resource.
func ListTag(resource string) Tag {
	return Tag{Type: resource, ID: ListTagID}
}

// ListParams are the query parameters of a paginated list read.
type ListParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
	Status   string `json:"status,omitempty"`
	Text     string `json:"text,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Page is one page of records decoded from a backend list response.
type Page[T any] struct {
	Items      []T
	Total      int
	Page       int
	PageSize   int
	TotalPages int
	// Source names the envelope shape the items were extracted from.
	Source string
}

// Category is a product category.
type Category struct {
	ID             string
	Name           string
	Description    string
	Status         string
	ActiveProducts *int
	CreatedAt      string
}

// Product is a vendor product awaiting or past moderation. VAT and Discount
// are percentages.
type Product struct {
	ID           string
	Name         string
	SKU          string
	Category     string
	VendorName   string
	Description  string
	Status       string
	Inventory    *int
	Price        *float64
	VAT          *float64
	DiscountType string
	Discount     *float64
	WeightKg     string
	Dimensions   string
	Images       []string
	CreatedAt    string
}

// Vendor is a seller account. AccountMask shows only the last four digits of
// the payout account.
type Vendor struct {
	ID                 string
	BusinessName       string
	FirstName          string
	LastName           string
	Email              string
	Phone              string
	Address            string
	TaxID              string
	RegistrationNumber string
	BankName           string
	AccountHolder      string
	AccountMask        string
	Status             string
	RejectionReason    string
	Revenue            *float64
	CreatedAt          string
}

// Subadmin is a console team member.
type Subadmin struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Role      string
	Status    string
	CreatedAt string
}

// User is a marketplace customer.
type User struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Address     string
	Status      string
	TotalOrders *int
	LastOrderAt string
	CreatedAt   string
}

// Order is a customer order.
type Order struct {
	ID            string
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	VendorName    string
	PaymentMethod string
	Status        string
	Total         *float64
	ItemCount     *int
	CreatedAt     string
}

// Payout is a vendor payout request.
type Payout struct {
	ID         string
	VendorName string
	VendorSite string
	BankMask   string
	BankHolder string
	Period     string
	Status     string
	Amount     *float64
	Commission *float64
	CreatedAt  string
}

// Profile is the signed-in admin's own account.
type Profile struct {
	ID        string `json:"_id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	IsActive  bool   `json:"isActive"`
	Role      string `json:"role"`
}

// Counter groups the dashboard counters of one resource. Absent counters
// decode as zero.
type Counter struct {
	Total     int `json:"total"`
	Active    int `json:"active,omitempty"`
	Blocked   int `json:"blocked,omitempty"`
	Pending   int `json:"pending,omitempty"`
	Approved  int `json:"approved,omitempty"`
	Rejected  int `json:"rejected,omitempty"`
	Delivered int `json:"delivered,omitempty"`
}

// Dashboard is the aggregate statistics payload of the dashboard view.
type Dashboard struct {
	Users          Counter
	Vendors        Counter
	Categories     Counter
	Orders         Counter
	Products       Counter
	RevenueTotal   float64
	RecentProducts []Product
	RecentUsers    []User
	RecentVendors  []Vendor
}
