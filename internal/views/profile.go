package views

import (
	"context"

	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/query"
	"github.com/pitabwire/bazaar/model"
)

// Profile renders the signed-in admin's account screen.
func (r *Registry) Profile(ctx context.Context) (model.DetailView, error) {
	dv := model.DetailView{Resource: model.ResourceProfile, Title: "My Profile"}
	key := query.Key(model.RequestContextFrom(ctx).Scope(), model.ResourceProfile, "detail")
	res, err := query.Run(ctx, r.tracker, key, model.ResourceProfile, r.account.Profile)
	dv.State = res.State
	if err != nil {
		return dv, err
	}
	p := res.Value
	f := r.format

	status := "Inactive"
	if p.IsActive {
		status = "Active"
	}
	dv.ID = p.ID
	dv.Found = true
	dv.Sections = []model.DetailSection{{
		Title: "Personal Information",
		Fields: []model.DetailField{
			field("First Name", f.Text(p.FirstName)),
			field("Last Name", f.Text(p.LastName)),
			field("Email", f.Text(p.Email)),
			field("Role", f.Text(p.Role)),
			statusField(status),
		},
	}}
	dv.Actions = []model.ActionDescriptor{{
		ID:         "edit",
		Label:      "Edit Profile",
		Icon:       "pencil",
		Type:       model.ActionNavigate,
		NavigateTo: "/profile/edit",
	}}
	return dv, nil
}

// UpdateProfile validates and submits a profile edit.
func (r *Registry) UpdateProfile(ctx context.Context, form ProfileForm) (model.CommandResponse, error) {
	if err := Validate(&form); err != nil {
		return model.CommandResponse{}, err
	}
	p, err := r.account.UpdateProfile(ctx, client.ProfileUpdate{
		FullName: form.FullName,
		Email:    form.Email,
		Phone:    form.Phone,
		Address:  form.Address,
	})
	if err != nil {
		return model.CommandResponse{}, err
	}
	return model.CommandResponse{
		Success: true,
		Message: "Profile updated",
		Result:  map[string]any{"id": p.ID, "email": p.Email},
	}, nil
}
