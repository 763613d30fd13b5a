package views

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required,min=6" label:"Password"`
}

func (f *LoginForm) normalize() { f.Email = strings.TrimSpace(f.Email) }

// ForgotPasswordForm requests a password reset code.
type ForgotPasswordForm struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
}

func (f *ForgotPasswordForm) normalize() { f.Email = strings.TrimSpace(f.Email) }

// VerifyOTPForm submits the reset code.
type VerifyOTPForm struct {
	Email string `json:"email" validate:"required,email" label:"Email"`
	OTP   string `json:"otp" validate:"required,numeric,min=4,max=8" label:"Code"`
}

func (f *VerifyOTPForm) normalize() {
	f.Email = strings.TrimSpace(f.Email)
	f.OTP = strings.TrimSpace(f.OTP)
}

// CategoryForm adds a category.
type CategoryForm struct {
	Name        string `json:"name" validate:"required,min=2" label:"Category name"`
	Description string `json:"description" validate:"max=500" label:"Description"`
}

func (f *CategoryForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
}

// CategoryEditForm edits a category. Empty fields are left unchanged.
type CategoryEditForm struct {
	Name   string `json:"name" validate:"omitempty,min=2" label:"Category name"`
	Status string `json:"status" validate:"omitempty,oneof=Active Suspended" label:"Status"`
}

func (f *CategoryEditForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Status = strings.TrimSpace(f.Status)
}

// SubadminForm adds a team member.
type SubadminForm struct {
	FirstName string `json:"firstname" validate:"required,min=2" label:"First name"`
	LastName  string `json:"lastname" validate:"required,min=2" label:"Last name"`
	Email     string `json:"email" validate:"required,email" label:"Email"`
	Password  string `json:"password" validate:"required,min=6" label:"Password"`
}

func (f *SubadminForm) normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
}

// SubadminEditForm edits a team member. Empty fields are left unchanged.
type SubadminEditForm struct {
	FirstName string `json:"firstname" validate:"omitempty,min=2" label:"First name"`
	LastName  string `json:"lastname" validate:"omitempty,min=2" label:"Last name"`
	Email     string `json:"email" validate:"omitempty,email" label:"Email"`
}

func (f *SubadminEditForm) normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = strings.TrimSpace(f.Email)
}

// ProfileForm edits the signed-in admin. Empty fields are left unchanged.
type ProfileForm struct {
	FullName string `json:"fullName" validate:"omitempty,min=2" label:"Full name"`
	Email    string `json:"email" validate:"omitempty,email" label:"Email"`
	Phone    string `json:"phone" validate:"omitempty,min=7,max=20" label:"Phone number"`
	Address  string `json:"address" validate:"omitempty,max=200" label:"Address"`
}

func (f *ProfileForm) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = strings.TrimSpace(f.Address)
}

type normalizer interface{ normalize() }

// Validate trims form and checks it. Field failures come back as a
// VALIDATION_ERROR envelope with one detail per field, named as the shell
// sends them.
func Validate(form any) error {
	if n, ok := form.(normalizer); ok {
		n.normalize()
	}
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return model.NewBadRequestError("Invalid form data")
	}
	details := make([]model.FieldError, 0, len(ve))
	for _, fe := range ve {
		details = append(details, model.FieldError{
			Field:   fe.Field(),
			Code:    strings.ToUpper(fe.Tag()),
			Message: messageFor(fieldLabel(form, fe.StructField()), fe.Tag(), fe.Param()),
		})
	}
	return model.NewValidationError(details)
}

func fieldLabel(form any, structField string) string {
	t := reflect.TypeOf(form)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(structField); ok {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
	}
	return structField
}

func messageFor(label, tag, param string) string {
	switch tag {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return label + " must be at least " + param + " characters"
	case "max":
		return label + " must be at most " + param + " characters"
	case "numeric":
		return label + " must contain only digits"
	case "oneof":
		return label + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	default:
		return label + " is invalid"
	}
}

// --- mutations ---

func requireManage(caps model.CapabilitySet, resource string) error {
	if !caps.Has(model.ManageCapability(resource)) {
		return model.NewForbiddenError("Insufficient permissions to manage " + resource)
	}
	return nil
}

func created(id, message string) model.CommandResponse {
	result := map[string]any{}
	if id != "" {
		result["id"] = id
	}
	return model.CommandResponse{Success: true, Message: message, Result: result}
}

// CreateCategory validates and submits a new category.
func (r *Registry) CreateCategory(ctx context.Context, caps model.CapabilitySet, form CategoryForm) (model.CommandResponse, error) {
	if err := requireManage(caps, model.ResourceCategories); err != nil {
		return model.CommandResponse{}, err
	}
	if err := Validate(&form); err != nil {
		return model.CommandResponse{}, err
	}
	res := r.resources.Categories
	rec, err := res.Create(ctx, client.CategoryCreate{Name: form.Name, Description: form.Description})
	if err != nil {
		return model.CommandResponse{}, err
	}
	return created(res.IDOf(rec), "Category created"), nil
}

// UpdateCategory validates and submits a category edit.
func (r *Registry) UpdateCategory(ctx context.Context, caps model.CapabilitySet, id string, form CategoryEditForm) (model.CommandResponse, error) {
	if err := requireManage(caps, model.ResourceCategories); err != nil {
		return model.CommandResponse{}, err
	}
	if err := Validate(&form); err != nil {
		return model.CommandResponse{}, err
	}
	if _, err := r.resources.Categories.Update(ctx, id, client.CategoryUpdate{Name: form.Name, Status: form.Status}); err != nil {
		return model.CommandResponse{}, err
	}
	return model.CommandResponse{Success: true, Message: "Category updated", Result: map[string]any{"id": id}}, nil
}

// CreateSubadmin validates and submits a new team member.
func (r *Registry) CreateSubadmin(ctx context.Context, caps model.CapabilitySet, form SubadminForm) (model.CommandResponse, error) {
	if err := requireManage(caps, model.ResourceTeam); err != nil {
		return model.CommandResponse{}, err
	}
	if err := Validate(&form); err != nil {
		return model.CommandResponse{}, err
	}
	res := r.resources.Team
	rec, err := res.Create(ctx, client.SubadminCreate{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
	})
	if err != nil {
		return model.CommandResponse{}, err
	}
	return created(res.IDOf(rec), "Admin added"), nil
}

// UpdateSubadmin validates and submits a team member edit.
func (r *Registry) UpdateSubadmin(ctx context.Context, caps model.CapabilitySet, id string, form SubadminEditForm) (model.CommandResponse, error) {
	if err := requireManage(caps, model.ResourceTeam); err != nil {
		return model.CommandResponse{}, err
	}
	if err := Validate(&form); err != nil {
		return model.CommandResponse{}, err
	}
	_, err := r.resources.Team.Update(ctx, id, client.SubadminUpdate{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
	})
	if err != nil {
		return model.CommandResponse{}, err
	}
	return model.CommandResponse{Success: true, Message: "Admin updated", Result: map[string]any{"id": id}}, nil
}
