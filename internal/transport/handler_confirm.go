package transport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

type confirmBody struct {
	Reason string `json:"reason"`
}

// actionFor resolves a view action and checks the admin may manage the
// resource.
func actionFor(r *http.Request, registry *views.Registry, resource, action string) (views.View, views.Action, error) {
	v, ok := registry.Get(resource)
	if !ok {
		return nil, views.Action{}, model.NewNotFoundError("Unknown screen " + resource)
	}
	a, ok := v.Action(action)
	if !ok {
		return nil, views.Action{}, model.NewNotFoundError("Unknown action " + action)
	}
	if !CapabilitiesFrom(r.Context()).Has(model.ManageCapability(resource)) {
		return nil, views.Action{}, model.NewForbiddenError("Insufficient permissions to manage " + resource)
	}
	return v, a, nil
}

// handleOpenConfirmation opens the confirmation dialog of a record action.
// Status-bound actions read the record first; nothing is changed on the
// backend until the dialog is confirmed.
func handleOpenConfirmation(registry *views.Registry, confirmations *confirm.Manager, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resource := chi.URLParam(r, "resource")
		id := chi.URLParam(r, "id")
		v, a, err := actionFor(r, registry, resource, chi.URLParam(r, "action"))
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		if err := v.Guard(r.Context(), id, a); err != nil {
			rs.fail(w, r, err)
			return
		}
		p, err := confirmations.Open(r.Context(), confirm.Request{
			Resource: resource,
			TargetID: id,
			Action:   a.ID,
		})
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, views.Confirmation(a, p))
	}
}

func handleGetConfirmation(registry *views.Registry, confirmations *confirm.Manager, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := confirmations.Get(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		_, a, err := actionFor(r, registry, p.Resource, p.Action)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, views.Confirmation(a, p))
	}
}

// handleConfirm runs the action of an open confirmation. A failed action
// leaves the dialog open so the admin can retry or cancel.
func handleConfirm(registry *views.Registry, confirmations *confirm.Manager, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")
		var body confirmBody
		if err := decodeOptionalBody(r, &body); err != nil {
			rs.fail(w, r, err)
			return
		}
		reason := strings.TrimSpace(body.Reason)

		open, err := confirmations.Get(r.Context(), token)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		v, a, err := actionFor(r, registry, open.Resource, open.Action)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		if a.RequiresReason && reason == "" && open.Reason == "" {
			rs.fail(w, r, model.NewValidationError([]model.FieldError{{
				Field:   "reason",
				Code:    "REQUIRED",
				Message: "Reason is required",
			}}))
			return
		}

		p, err := confirmations.Confirm(r.Context(), token, reason, v.Execute)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, model.CommandResponse{
			Success: true,
			Message: a.Label + " completed",
			Result: map[string]any{
				"resource": p.Resource,
				"id":       p.TargetID,
				"action":   p.Action,
			},
		})
	}
}

func handleCancelConfirmation(confirmations *confirm.Manager, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := confirmations.Cancel(r.Context(), chi.URLParam(r, "token")); err != nil {
			rs.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
