package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pitabwire/bazaar/model"
)

func TestViews_productListForwardsFilters(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())

	h.Backend.On("GET", "admin/products").RespondWith(http.StatusOK, ProductPage(23,
		ProductFixture("p11", "Desk Lamp", "published"),
		ProductFixture("p12", "Floor Lamp", "pending"),
	))

	var lv model.ListView
	AssertJSON(t, b.GET("/ui/views/products?q=lamp&status=pending&page=2"), http.StatusOK, &lv)

	req := h.Backend.LastRequest("GET", "admin/products")
	require.NotNil(t, req)
	assert.Equal(t, "2", req.QueryParams["page"])
	assert.Equal(t, "lamp", req.QueryParams["text"])
	assert.Equal(t, "pending", req.QueryParams["status"])

	assert.Equal(t, model.StateLoaded, lv.State)
	require.Len(t, lv.Table.Rows, 2)
	assert.Equal(t, 23, lv.Pagination.Total)
	assert.Equal(t, 2, lv.Pagination.CurrentPage)
	assert.Equal(t, 3, lv.Pagination.TotalPages)
}

func TestViews_listIsCachedPerSession(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())
	h.Backend.On("GET", "admin/products").RespondWith(http.StatusOK,
		ProductPage(1, ProductFixture("p1", "Desk Lamp", "published")))

	AssertStatus(t, b.GET("/ui/views/products"), http.StatusOK)
	AssertStatus(t, b.GET("/ui/views/products"), http.StatusOK)
	h.Backend.AssertCalled(t, "GET", "admin/products", 1)

	// Another admin never sees the first admin's cached page.
	other := h.NewBrowser()
	other.MustLogin(AdminLogin())
	AssertStatus(t, other.GET("/ui/views/products"), http.StatusOK)
	h.Backend.AssertCalled(t, "GET", "admin/products", 2)
}

func TestViews_detailAndNotFound(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())

	h.Backend.On("GET", "admin/products/p1").RespondWith(http.StatusOK,
		map[string]any{"data": ProductFixture("p1", "Desk Lamp", "published")})

	var dv model.DetailView
	AssertJSON(t, b.GET("/ui/views/products/p1"), http.StatusOK, &dv)
	assert.True(t, dv.Found)
	assert.Equal(t, "p1", dv.ID)
	assert.NotEmpty(t, dv.Sections)

	var missing model.DetailView
	AssertJSON(t, b.GET("/ui/views/products/nope"), http.StatusNotFound, &missing)
	assert.False(t, missing.Found)
}

func TestViews_createCategoryInvalidatesList(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())

	h.Backend.On("GET", "admin/categories").RespondWith(http.StatusOK,
		map[string]any{"data": map[string]any{"categories": []any{}, "totalCategories": 0}})
	h.Backend.On("POST", "admin/categories").RespondWith(http.StatusCreated,
		map[string]any{"data": map[string]any{"_id": "c1", "name": "Garden"}})

	AssertStatus(t, b.GET("/ui/views/categories"), http.StatusOK)

	var resp model.CommandResponse
	AssertJSON(t, b.POST("/ui/views/categories", map[string]string{"name": "Garden"}), http.StatusCreated, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "Garden", h.Backend.LastRequest("POST", "admin/categories").Body["name"])

	AssertStatus(t, b.GET("/ui/views/categories"), http.StatusOK)
	h.Backend.AssertCalled(t, "GET", "admin/categories", 2)
}

func TestViews_createValidation(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())

	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	AssertJSON(t, b.POST("/ui/views/categories", map[string]string{"name": ""}), http.StatusUnprocessableEntity, &body)
	assert.Equal(t, model.ErrValidationError, body.Error.Code)
	require.NotEmpty(t, body.Error.Details)
	assert.Equal(t, "name", body.Error.Details[0].Field)
	h.Backend.AssertNotCalled(t, "POST", "admin/categories")
}

func TestViews_backendValidationErrorsAreFieldErrors(t *testing.T) {
	h := NewTestHarness(t)
	b := h.NewBrowser()
	b.MustLogin(AdminLogin())

	h.Backend.On("POST", "admin/categories").RespondWith(http.StatusBadRequest,
		map[string]any{"message": "Category already exists"})

	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	AssertJSON(t, b.POST("/ui/views/categories", map[string]string{"name": "Garden"}), http.StatusUnprocessableEntity, &body)
	assert.Equal(t, "Category already exists", body.Error.Message)
}
