package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/model"
)

// recordingBackend answers with a fixed body per "METHOD path" and keeps
// every request it saw.
type recordingBackend struct {
	mu       sync.Mutex
	routes   map[string]func() (int, string)
	requests []seenRequest
}

type seenRequest struct {
	Method  string
	Path    string
	Escaped string
	Query   url.Values
	Body    map[string]any
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{routes: map[string]func() (int, string){}}
}

func (b *recordingBackend) on(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = func() (int, string) { return status, body }
}

func (b *recordingBackend) seen() []seenRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]seenRequest(nil), b.requests...)
}

func (b *recordingBackend) count(method, path string) int {
	n := 0
	for _, r := range b.seen() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (b *recordingBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.requests = append(b.requests, seenRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Escaped: r.URL.EscapedPath(),
		Query:   r.URL.Query(),
		Body:    body,
	})
	route, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, `{"message":"no route"}`)
		return
	}
	status, resp := route()
	writeJSON(w, status, resp)
}

func newTestResources(t *testing.T, backend *recordingBackend) (*Resources, *Account) {
	t.Helper()
	c, _ := newTestClient(t, backend.ServeHTTP)
	qc := cache.New(cache.NewMemoryStore(0), time.Minute)
	return NewResources(c, qc), NewAccount(c, qc)
}

const categoriesPage = `{"data":{"categories":[
	{"_id":"c1","name":"Shoes","productCount":4,"isActive":true,"createdAt":"2024-05-01T10:00:00Z"},
	{"categoryId":"c2","name":"Hats","status":"suspended"}
],"totalCategories":12}}`

// --- ListQuery ---

func TestListQuery(t *testing.T) {
	q := ListQuery(model.ListParams{Page: 0, PageSize: 10, Status: "all", Text: "  lamp ", Date: ""})
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "10", q.Get("pageSize"))
	assert.Equal(t, "lamp", q.Get("text"))
	assert.False(t, q.Has("status"))
	assert.False(t, q.Has("date"))

	q = ListQuery(model.ListParams{Page: 3, Status: "Pending", Text: "   ", Date: "2024-05-01"})
	assert.Equal(t, "3", q.Get("page"))
	assert.False(t, q.Has("pageSize"))
	assert.Equal(t, "Pending", q.Get("status"))
	assert.False(t, q.Has("text"))
	assert.Equal(t, "2024-05-01", q.Get("date"))
}

// --- List ---

func TestResource_List(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/categories", http.StatusOK, categoriesPage)
	res, _ := newTestResources(t, backend)

	page, err := res.Categories.List(sessionCtx(), model.ListParams{Page: 2, PageSize: 5, Status: "Active"})
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "c1", page.Items[0].ID)
	assert.Equal(t, "Active", page.Items[0].Status)
	assert.Equal(t, 4, *page.Items[0].ActiveProducts)
	assert.Equal(t, "c2", page.Items[1].ID)
	assert.Equal(t, "Suspended", page.Items[1].Status)
	assert.Nil(t, page.Items[1].ActiveProducts)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, "data.categories", page.Source)

	reqs := backend.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "2", reqs[0].Query.Get("page"))
	assert.Equal(t, "Active", reqs[0].Query.Get("status"))
}

func TestResource_ListUnknownShapeIsEmpty(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/products", http.StatusOK, `{"data":{"message":"maintenance"}}`)
	res, _ := newTestResources(t, backend)

	page, err := res.Products.List(sessionCtx(), model.ListParams{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 1, page.TotalPages)
}

func TestResource_ListIsCachedUntilMutation(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/categories", http.StatusOK, categoriesPage)
	backend.on(http.MethodDelete, "/api/admin/categories/c1", http.StatusOK, `{"message":"deleted"}`)
	res, _ := newTestResources(t, backend)
	ctx := sessionCtx()
	params := model.ListParams{Page: 1, PageSize: 10}

	_, err := res.Categories.List(ctx, params)
	require.NoError(t, err)
	_, err = res.Categories.List(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count(http.MethodGet, "/api/admin/categories"))

	require.NoError(t, res.Categories.Delete(ctx, "c1"))

	_, err = res.Categories.List(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count(http.MethodGet, "/api/admin/categories"))
}

func TestResource_failedMutationKeepsCache(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/categories", http.StatusOK, categoriesPage)
	backend.on(http.MethodDelete, "/api/admin/categories/c1", http.StatusConflict, `{"message":"in use"}`)
	res, _ := newTestResources(t, backend)
	ctx := sessionCtx()
	params := model.ListParams{Page: 1, PageSize: 10}

	_, err := res.Categories.List(ctx, params)
	require.NoError(t, err)
	err = res.Categories.Delete(ctx, "c1")
	assert.True(t, model.IsCode(err, model.ErrConflict))

	_, err = res.Categories.List(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count(http.MethodGet, "/api/admin/categories"))
}

// --- Get ---

func TestResource_Get(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/vendors/v1", http.StatusOK,
		`{"data":{"vendor":{"_id":"v1","businessName":"Acme","status":"pending","bankDetails":{"accountNumber":"0123456789"}}}}`)
	res, _ := newTestResources(t, backend)

	v, err := res.Vendors.Get(sessionCtx(), "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", v.BusinessName)
	assert.Equal(t, "Pending", v.Status)
	assert.Equal(t, "********6789", v.AccountMask)
}

func TestResource_GetNotFound(t *testing.T) {
	backend := newRecordingBackend()
	res, _ := newTestResources(t, backend)

	_, err := res.Products.Get(sessionCtx(), "missing")
	assert.True(t, model.IsCode(err, model.ErrNotFound), "got %v", err)
}

func TestResource_GetEscapesID(t *testing.T) {
	backend := newRecordingBackend()
	res, _ := newTestResources(t, backend)

	_, _ = res.Products.Get(sessionCtx(), "a/b")
	reqs := backend.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/admin/products/a%2Fb", reqs[0].Escaped)
}

// --- mutations ---

func TestResource_UpdateStatus(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodPut, "/api/admin/vendors/v1/approval", http.StatusOK, `{"data":{"_id":"v1","status":"Rejected"}}`)
	res, _ := newTestResources(t, backend)

	rec, err := res.Vendors.UpdateStatus(sessionCtx(), "v1", RouteApproval,
		ReasonedActionBody{Action: ActionReject, Reason: "Incomplete documents"})
	require.NoError(t, err)
	assert.Equal(t, "Rejected", rec.String("status"))

	reqs := backend.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "reject", reqs[0].Body["action"])
	assert.Equal(t, "Incomplete documents", reqs[0].Body["reason"])
}

func TestResource_CreateAndUpdate(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodPost, "/api/admin/subadmins", http.StatusCreated, `{"data":{"_id":"s9"}}`)
	backend.on(http.MethodPut, "/api/admin/subadmins/s9", http.StatusOK, `{"data":{"_id":"s9","firstname":"Ada"}}`)
	res, _ := newTestResources(t, backend)
	ctx := sessionCtx()

	rec, err := res.Team.Create(ctx, SubadminCreate{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "s9", res.Team.IDOf(rec))

	rec, err = res.Team.Update(ctx, "s9", SubadminUpdate{FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", rec.String("firstname"))

	reqs := backend.seen()
	require.Len(t, reqs, 2)
	assert.Equal(t, "secret1", reqs[0].Body["password"])
	assert.NotContains(t, reqs[1].Body, "email")
}

// --- account ---

func TestAccount_Login(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodPost, "/api/admin/auth/login", http.StatusOK,
		`{"data":{"token":"jwt-abc","admin":{"_id":"a1","email":"root@example.com","role":"admin","isActive":true}}}`)
	_, acct := newTestResources(t, backend)

	res, err := acct.Login(context.Background(), "root@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", res.Token)
	assert.Equal(t, "a1", res.Profile.ID)
	assert.Equal(t, "admin", res.Profile.Role)
	assert.True(t, res.Profile.IsActive)
}

func TestAccount_LoginWithoutToken(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodPost, "/api/admin/auth/login", http.StatusOK, `{"message":"ok"}`)
	_, acct := newTestResources(t, backend)

	_, err := acct.Login(context.Background(), "root@example.com", "hunter22")
	assert.True(t, model.IsCode(err, model.ErrUnauthorized))
}

func TestAccount_ForgotPasswordAndVerify(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodPost, "/api/admin/auth/forgot-password", http.StatusOK, `{"message":"Code sent"}`)
	backend.on(http.MethodPost, "/api/admin/auth/verify-otp", http.StatusOK, `{"data":{"message":"Verified"}}`)
	_, acct := newTestResources(t, backend)
	ctx := context.Background()

	msg, err := acct.ForgotPassword(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Code sent", msg)

	msg, err = acct.VerifyOTP(ctx, "root@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "Verified", msg)
	assert.Equal(t, "123456", backend.seen()[1].Body["otp"])
}

func TestAccount_ProfileCachedUntilUpdate(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/profile", http.StatusOK, `{"data":{"_id":"a1","firstname":"Root"}}`)
	backend.on(http.MethodPut, "/api/admin/profile", http.StatusOK, `{"data":{"_id":"a1","firstname":"Rooty"}}`)
	_, acct := newTestResources(t, backend)
	ctx := sessionCtx()

	p, err := acct.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Root", p.FirstName)
	_, _ = acct.Profile(ctx)
	assert.Equal(t, 1, backend.count(http.MethodGet, "/api/admin/profile"))

	p, err = acct.UpdateProfile(ctx, ProfileUpdate{FullName: "Rooty Admin"})
	require.NoError(t, err)
	assert.Equal(t, "Rooty", p.FirstName)

	_, _ = acct.Profile(ctx)
	assert.Equal(t, 2, backend.count(http.MethodGet, "/api/admin/profile"))
}

func TestAccount_Dashboard(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/dashboard", http.StatusOK, `{"data":{
		"users":{"total":120,"active":100,"blocked":20},
		"vendors":{"total":8,"pending":3},
		"products":{"approved":50,"pending":5,"rejected":1,"total":56},
		"revenue":{"total":"1520.75"},
		"recentActivities":{
			"products":[{"_id":"p1","name":"Lamp","price":25,"status":"pending"}],
			"users":[{"_id":"u1","firstname":"Ada","lastname":"L"}],
			"vendors":[]
		}
	}}`)
	_, acct := newTestResources(t, backend)

	d, err := acct.Dashboard(sessionCtx())
	require.NoError(t, err)
	assert.Equal(t, model.Counter{Total: 120, Active: 100, Blocked: 20}, d.Users)
	assert.Equal(t, 3, d.Vendors.Pending)
	assert.Equal(t, model.Counter{}, d.Orders)
	assert.Equal(t, 56, d.Products.Total)
	assert.InDelta(t, 1520.75, d.RevenueTotal, 0.001)
	require.Len(t, d.RecentProducts, 1)
	assert.Equal(t, "Pending", d.RecentProducts[0].Status)
	require.Len(t, d.RecentUsers, 1)
	assert.Empty(t, d.RecentVendors)
}

func TestDashboardCacheDroppedByResourceMutation(t *testing.T) {
	backend := newRecordingBackend()
	backend.on(http.MethodGet, "/api/admin/dashboard", http.StatusOK, `{"data":{}}`)
	backend.on(http.MethodPut, "/api/admin/products/p1/approval", http.StatusOK, `{}`)
	res, acct := newTestResources(t, backend)
	ctx := sessionCtx()

	_, err := acct.Dashboard(ctx)
	require.NoError(t, err)
	_, err = res.Products.UpdateStatus(ctx, "p1", RouteApproval, ActionBody{Action: ActionApprove})
	require.NoError(t, err)
	_, err = acct.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.count(http.MethodGet, "/api/admin/dashboard"))
}

func TestDecodeDashboard_nil(t *testing.T) {
	d := DecodeDashboard(nil)
	assert.Equal(t, 0, d.Users.Total)
	assert.NotNil(t, d.RecentProducts)
	assert.NotNil(t, d.RecentUsers)
	assert.NotNil(t, d.RecentVendors)
}
