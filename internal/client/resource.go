package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/model"
)

// Endpoint describes one backend collection and how to read its responses.
type Endpoint[T any] struct {
	// Name is the console resource name, used for cache tags and metrics.
	Name string
	// Path is the collection path, e.g. "admin/categories".
	Path string
	// Lists are tried in order to find the items of a list response.
	Lists []ListStrategy
	// Totals are tried in order for the total record count.
	Totals []string
	// Objects are tried in order to find the record of a single read.
	Objects []string
	// IDKeys are the aliases of the record id.
	IDKeys []string
	Decode func(Record) T
}

// Resource is a typed client for one backend collection. Reads go through
// the query cache; successful mutations invalidate the record, every list of
// the resource, and the dashboard.
type Resource[T any] struct {
	client *Client
	cache  *cache.QueryCache
	ep     Endpoint[T]
}

// NewResource binds ep to the backend client and query cache. A nil cache
// disables caching.
func NewResource[T any](c *Client, qc *cache.QueryCache, ep Endpoint[T]) *Resource[T] {
	if len(ep.Objects) == 0 {
		ep.Objects = []string{"data", "$"}
	}
	if len(ep.IDKeys) == 0 {
		ep.IDKeys = []string{"_id", "id"}
	}
	return &Resource[T]{client: c, cache: qc, ep: ep}
}

// Name returns the resource name.
func (r *Resource[T]) Name() string {
	return r.ep.Name
}

// ListQuery encodes list parameters for the backend. The page is 1-based;
// status is omitted for "all", text is trimmed and dropped when blank, and
// date is only sent when set.
func ListQuery(p model.ListParams) url.Values {
	q := url.Values{}
	page := p.Page
	if page < 1 {
		page = 1
	}
	q.Set("page", strconv.Itoa(page))
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if s := strings.TrimSpace(p.Status); s != "" && s != table.StatusAll {
		q.Set("status", s)
	}
	if t := strings.TrimSpace(p.Text); t != "" {
		q.Set("text", t)
	}
	if d := strings.TrimSpace(p.Date); d != "" {
		q.Set("date", d)
	}
	return q
}

// List reads one page of the collection.
func (r *Resource[T]) List(ctx context.Context, p model.ListParams) (model.Page[T], error) {
	q := ListQuery(p)
	key := cache.Key(r.ep.Name, model.RequestContextFrom(ctx).Scope(), "list", q.Encode())
	tags := []model.Tag{model.ListTag(r.ep.Name)}
	return cache.Fetch(ctx, r.cache, key, tags, func(ctx context.Context) (model.Page[T], error) {
		body, err := r.client.Do(ctx, Request{
			Resource: r.ep.Name,
			Method:   http.MethodGet,
			Path:     r.ep.Path,
			Query:    q,
		})
		if err != nil {
			return model.Page[T]{}, err
		}
		return r.decodePage(body, p), nil
	})
}

func (r *Resource[T]) decodePage(body any, p model.ListParams) model.Page[T] {
	records, source, _ := ExtractList(body, r.ep.Lists)
	items := make([]T, 0, len(records))
	for _, rec := range records {
		items = append(items, r.ep.Decode(rec))
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	total := ExtractTotal(body, r.ep.Totals, len(items))
	return model.Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   p.PageSize,
		TotalPages: ExtractTotal(body, []string{"data.totalPages", "totalPages"}, pageCount(total, p.PageSize)),
		Source:     source,
	}
}

// Get reads a single record. A missing record is a NOT_FOUND envelope.
func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	key := cache.Key(r.ep.Name, model.RequestContextFrom(ctx).Scope(), "item", id)
	tags := []model.Tag{model.ItemTag(r.ep.Name, id)}
	return cache.Fetch(ctx, r.cache, key, tags, func(ctx context.Context) (T, error) {
		var zero T
		body, err := r.client.Do(ctx, Request{
			Resource: r.ep.Name,
			Method:   http.MethodGet,
			Path:     r.itemPath(id),
		})
		if err != nil {
			return zero, err
		}
		rec := ExtractObject(body, r.ep.Objects...)
		if rec == nil {
			return zero, model.NewNotFoundError("The requested record was not found")
		}
		return r.ep.Decode(rec), nil
	})
}

// Create posts a new record and returns the backend's copy of it.
func (r *Resource[T]) Create(ctx context.Context, body any) (Record, error) {
	return r.mutate(ctx, "", http.MethodPost, r.ep.Path, body)
}

// Update replaces fields of an existing record.
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (Record, error) {
	return r.mutate(ctx, id, http.MethodPut, r.itemPath(id), body)
}

// UpdateStatus sends body to a record's sub-route, "status" or "approval".
func (r *Resource[T]) UpdateStatus(ctx context.Context, id, route string, body any) (Record, error) {
	return r.mutate(ctx, id, http.MethodPut, r.itemPath(id)+"/"+strings.Trim(route, "/"), body)
}

// Delete removes a record.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.mutate(ctx, id, http.MethodDelete, r.itemPath(id), nil)
	return err
}

func (r *Resource[T]) mutate(ctx context.Context, id, method, path string, body any) (Record, error) {
	resp, err := r.client.Do(ctx, Request{
		Resource: r.ep.Name,
		Method:   method,
		Path:     path,
		Body:     body,
	})
	if err != nil {
		return nil, err
	}

	tags := []model.Tag{model.ListTag(r.ep.Name), model.ListTag(model.ResourceDashboard)}
	if id != "" {
		tags = append(tags, model.ItemTag(r.ep.Name, id))
	}
	// The mutation already happened; a store failure is logged by the cache
	// and must not turn it into an error.
	_ = r.cache.Invalidate(ctx, tags...)
	return ExtractObject(resp, r.ep.Objects...), nil
}

func (r *Resource[T]) itemPath(id string) string {
	return strings.TrimRight(r.ep.Path, "/") + "/" + url.PathEscape(id)
}

// IDOf returns the record id using the endpoint's aliases.
func (r *Resource[T]) IDOf(rec Record) string {
	return rec.String(r.ep.IDKeys...)
}
