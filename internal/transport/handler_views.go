package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/bazaar/internal/table"
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

// viewFor resolves the {resource} URL param and checks the admin may see it.
func viewFor(r *http.Request, registry *views.Registry) (views.View, error) {
	resource := chi.URLParam(r, "resource")
	v, ok := registry.Get(resource)
	if !ok {
		return nil, model.NewNotFoundError("Unknown screen " + resource)
	}
	if !CapabilitiesFrom(r.Context()).Has(model.ViewCapability(resource)) {
		return nil, model.NewForbiddenError("Insufficient permissions to view " + resource)
	}
	return v, nil
}

func handleNavigation(registry *views.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, registry.Navigation(CapabilitiesFrom(r.Context())))
	}
}

func handleDashboard(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dv, err := registry.Dashboard(r.Context(), CapabilitiesFrom(r.Context()))
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, dv)
	}
}

func handleList(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := viewFor(r, registry)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		fc := table.ControllerFromQuery(v.FilterBar(), r.URL.Query())
		lv, err := v.List(r.Context(), CapabilitiesFrom(r.Context()), fc)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, lv)
	}
}

// handleDetail answers 404 with the not-found screen for records the
// backend does not know.
func handleDetail(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := viewFor(r, registry)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		dv, err := v.Detail(r.Context(), CapabilitiesFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		status := http.StatusOK
		if !dv.Found {
			status = http.StatusNotFound
		}
		WriteJSON(w, status, dv)
	}
}

// handleCreate submits the add form of a creatable screen.
func handleCreate(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caps := CapabilitiesFrom(r.Context())
		var (
			resp model.CommandResponse
			err  error
		)
		switch resource := chi.URLParam(r, "resource"); resource {
		case model.ResourceCategories:
			var form views.CategoryForm
			if err = decodeBody(r, &form); err == nil {
				resp, err = registry.CreateCategory(r.Context(), caps, form)
			}
		case model.ResourceTeam:
			var form views.SubadminForm
			if err = decodeBody(r, &form); err == nil {
				resp, err = registry.CreateSubadmin(r.Context(), caps, form)
			}
		default:
			err = model.NewNotFoundError("Records of " + resource + " cannot be added here")
		}
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

// handleUpdate submits the edit form of an editable screen.
func handleUpdate(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caps := CapabilitiesFrom(r.Context())
		id := chi.URLParam(r, "id")
		var (
			resp model.CommandResponse
			err  error
		)
		switch resource := chi.URLParam(r, "resource"); resource {
		case model.ResourceCategories:
			var form views.CategoryEditForm
			if err = decodeBody(r, &form); err == nil {
				resp, err = registry.UpdateCategory(r.Context(), caps, id, form)
			}
		case model.ResourceTeam:
			var form views.SubadminEditForm
			if err = decodeBody(r, &form); err == nil {
				resp, err = registry.UpdateSubadmin(r.Context(), caps, id, form)
			}
		default:
			err = model.NewNotFoundError("Records of " + resource + " cannot be edited here")
		}
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleGetProfile(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !CapabilitiesFrom(r.Context()).Has(model.ViewCapability(model.ResourceProfile)) {
			WriteForbidden(w, r, "Insufficient permissions to view the profile")
			return
		}
		dv, err := registry.Profile(r.Context())
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, dv)
	}
}

func handleUpdateProfile(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !CapabilitiesFrom(r.Context()).Has(model.ManageCapability(model.ResourceProfile)) {
			WriteForbidden(w, r, "Insufficient permissions to edit the profile")
			return
		}
		var form views.ProfileForm
		if err := decodeBody(r, &form); err != nil {
			rs.fail(w, r, err)
			return
		}
		resp, err := registry.UpdateProfile(r.Context(), form)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func handleAudit(registry *views.Registry, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fc := table.ControllerFromQuery(registry.AuditFilter(), r.URL.Query())
		lv, err := registry.Audit(r.Context(), CapabilitiesFrom(r.Context()), fc)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, lv)
	}
}
