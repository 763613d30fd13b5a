package client

import (
	"context"
	"net/http"

	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/model"
)

// Credentials is the body of a login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is a successful login. Profile is zero when the backend did
// not embed the admin in its response.
type LoginResult struct {
	Token   string
	Profile model.Profile
}

// ProfileUpdate is the body of a profile edit. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Account covers the endpoints that are not resource collections:
// authentication, the signed-in admin's profile, and the dashboard.
type Account struct {
	client *Client
	cache  *cache.QueryCache
}

// NewAccount binds the account endpoints to c and qc.
func NewAccount(c *Client, qc *cache.QueryCache) *Account {
	return &Account{client: c, cache: qc}
}

// Login exchanges credentials for a backend token.
func (a *Account) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, err := a.client.Do(ctx, Request{
		Resource: "auth",
		Method:   http.MethodPost,
		Path:     a.client.paths.Login,
		Body:     Credentials{Email: email, Password: password},
	})
	if err != nil {
		return LoginResult{}, err
	}
	root := AsRecord(body)
	token := root.String("data.token", "data.accessToken", "token", "accessToken")
	if token == "" {
		return LoginResult{}, model.NewUnauthorizedError("The marketplace did not issue a session token")
	}
	res := LoginResult{Token: token}
	if p := root.Object("data.admin", "data.user", "data.profile", "admin", "user"); p != nil {
		res.Profile = DecodeProfile(p)
	}
	return res, nil
}

// ForgotPassword asks the backend to send a reset code to email and returns
// the backend's confirmation message.
func (a *Account) ForgotPassword(ctx context.Context, email string) (string, error) {
	body, err := a.client.Do(ctx, Request{
		Resource: "auth",
		Method:   http.MethodPost,
		Path:     a.client.paths.ForgotPassword,
		Body:     map[string]string{"email": email},
	})
	if err != nil {
		return "", err
	}
	return AsRecord(body).String("message", "data.message"), nil
}

// VerifyOTP checks a one-time code sent by ForgotPassword.
func (a *Account) VerifyOTP(ctx context.Context, email, otp string) (string, error) {
	body, err := a.client.Do(ctx, Request{
		Resource: "auth",
		Method:   http.MethodPost,
		Path:     a.client.paths.VerifyOTP,
		Body:     map[string]string{"email": email, "otp": otp},
	})
	if err != nil {
		return "", err
	}
	return AsRecord(body).String("message", "data.message"), nil
}

func profileTag(ctx context.Context) model.Tag {
	return model.ItemTag(model.ResourceProfile, model.RequestContextFrom(ctx).Scope())
}

// Profile reads the signed-in admin.
func (a *Account) Profile(ctx context.Context) (model.Profile, error) {
	tag := profileTag(ctx)
	key := cache.Key(model.ResourceProfile, tag.ID)
	return cache.Fetch(ctx, a.cache, key, []model.Tag{tag}, func(ctx context.Context) (model.Profile, error) {
		body, err := a.client.Do(ctx, Request{
			Resource: model.ResourceProfile,
			Method:   http.MethodGet,
			Path:     a.client.paths.Profile,
		})
		if err != nil {
			return model.Profile{}, err
		}
		rec := ExtractObject(body, "data.admin", "data", "$")
		if rec == nil {
			return model.Profile{}, model.NewNotFoundError("Profile not found")
		}
		return DecodeProfile(rec), nil
	})
}

// UpdateProfile edits the signed-in admin and returns the stored profile.
func (a *Account) UpdateProfile(ctx context.Context, upd ProfileUpdate) (model.Profile, error) {
	body, err := a.client.Do(ctx, Request{
		Resource: model.ResourceProfile,
		Method:   http.MethodPut,
		Path:     a.client.paths.Profile,
		Body:     upd,
	})
	if err != nil {
		return model.Profile{}, err
	}
	_ = a.cache.Invalidate(ctx, profileTag(ctx))
	rec := ExtractObject(body, "data.admin", "data", "$")
	return DecodeProfile(rec), nil
}

// Dashboard reads the aggregate statistics. Missing sections decode as
// zeros and empty lists.
func (a *Account) Dashboard(ctx context.Context) (model.Dashboard, error) {
	tag := model.ListTag(model.ResourceDashboard)
	key := cache.Key(model.ResourceDashboard, model.RequestContextFrom(ctx).Scope())
	return cache.Fetch(ctx, a.cache, key, []model.Tag{tag}, func(ctx context.Context) (model.Dashboard, error) {
		body, err := a.client.Do(ctx, Request{
			Resource: model.ResourceDashboard,
			Method:   http.MethodGet,
			Path:     a.client.paths.Dashboard,
		})
		if err != nil {
			return model.Dashboard{}, err
		}
		return DecodeDashboard(ExtractObject(body, "data", "$")), nil
	})
}

// DecodeDashboard maps the dashboard payload. A nil record yields an empty
// dashboard.
func DecodeDashboard(r Record) model.Dashboard {
	d := model.Dashboard{
		Users:          decodeCounter(r.Object("users")),
		Vendors:        decodeCounter(r.Object("vendors")),
		Categories:     decodeCounter(r.Object("categories")),
		Orders:         decodeCounter(r.Object("orders")),
		Products:       decodeCounter(r.Object("products")),
		RecentProducts: []model.Product{},
		RecentUsers:    []model.User{},
		RecentVendors:  []model.Vendor{},
	}
	if rev := r.Float("revenue.total", "revenue"); rev != nil {
		d.RevenueTotal = *rev
	}
	for _, p := range r.Records("recentActivities.products") {
		d.RecentProducts = append(d.RecentProducts, DecodeProduct(p))
	}
	for _, u := range r.Records("recentActivities.users") {
		d.RecentUsers = append(d.RecentUsers, DecodeUser(u))
	}
	for _, v := range r.Records("recentActivities.vendors") {
		d.RecentVendors = append(d.RecentVendors, DecodeVendor(v))
	}
	return d
}

func decodeCounter(r Record) model.Counter {
	return model.Counter{
		Total:     intOr(r.Int("total")),
		Active:    intOr(r.Int("active")),
		Blocked:   intOr(r.Int("blocked")),
		Pending:   intOr(r.Int("pending")),
		Approved:  intOr(r.Int("approved")),
		Rejected:  intOr(r.Int("rejected")),
		Delivered: intOr(r.Int("delivered")),
	}
}

func intOr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
