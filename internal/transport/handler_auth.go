package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/capability"
	"github.com/pitabwire/bazaar/internal/client"
	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/internal/session"
	"github.com/pitabwire/bazaar/internal/views"
	"github.com/pitabwire/bazaar/model"
)

// responder writes failures. UNAUTHORIZED answers drop the session cookie
// and errors that are not envelopes are logged before they become a 500.
type responder struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func (rs responder) fail(w http.ResponseWriter, r *http.Request, err error) {
	ee := AsEnvelope(err)
	switch ee.Code {
	case model.ErrUnauthorized:
		if rs.sessions != nil {
			http.SetCookie(w, rs.sessions.ClearCookie())
		}
	case model.ErrInternalError:
		observability.RequestLogger(r.Context(), rs.logger).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteError(w, r, ee)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewBadRequestError("Invalid JSON body")
	}
	return nil
}

// decodeOptionalBody is decodeBody for endpoints whose body may be empty.
func decodeOptionalBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return model.NewBadRequestError("Invalid JSON body")
}

// sessionResponse is the body of a successful login. Token is the session
// credential for clients that send it as a bearer token instead of the
// cookie.
type sessionResponse struct {
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// roleOf maps the backend role of an admin to a console role. Unknown or
// missing roles get the narrower subadmin grant.
func roleOf(p model.Profile) string {
	if strings.EqualFold(strings.TrimSpace(p.Role), capability.RoleAdmin) {
		return capability.RoleAdmin
	}
	return capability.RoleSubadmin
}

func handleLogin(account *client.Account, sessions *session.Manager, metrics *observability.Metrics, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form views.LoginForm
		if err := decodeBody(r, &form); err != nil {
			rs.fail(w, r, err)
			return
		}
		if err := views.Validate(&form); err != nil {
			metrics.RecordLoginAttempt("invalid")
			rs.fail(w, r, err)
			return
		}

		res, err := account.Login(r.Context(), form.Email, form.Password)
		if err != nil {
			metrics.RecordLoginAttempt("rejected")
			rs.fail(w, r, err)
			return
		}

		profile := res.Profile
		if profile.ID == "" {
			// The login answer did not embed the admin; ask for it with the
			// new token under a throwaway scope.
			profileCtx := model.WithRequestContext(r.Context(), &model.RequestContext{
				SessionID: "login-" + uuid.NewString(),
				Token:     res.Token,
			})
			p, err := account.Profile(profileCtx)
			if err != nil {
				metrics.RecordLoginAttempt("rejected")
				rs.fail(w, r, err)
				return
			}
			profile = p
		}

		subject := profile.ID
		if subject == "" {
			subject = form.Email
		}
		email := profile.Email
		if email == "" {
			email = form.Email
		}
		s, value, err := sessions.Start(r.Context(), session.Identity{
			SubjectID: subject,
			Email:     email,
			Name:      strings.TrimSpace(profile.FirstName + " " + profile.LastName),
			Roles:     []string{roleOf(profile)},
			Token:     res.Token,
		})
		if err != nil {
			metrics.RecordLoginAttempt("error")
			rs.fail(w, r, err)
			return
		}

		metrics.RecordLoginAttempt("succeeded")
		http.SetCookie(w, sessions.Cookie(value, s.ExpiresAt))
		WriteJSON(w, http.StatusOK, sessionResponse{
			SubjectID: s.SubjectID,
			Email:     s.Email,
			Name:      s.Name,
			Roles:     s.Roles,
			Token:     value,
			ExpiresAt: s.ExpiresAt,
		})
	}
}

func handleLogout(sessions *session.Manager, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFrom(r.Context())
		if !ok {
			rs.fail(w, r, model.NewUnauthorizedError("Sign in to continue"))
			return
		}
		if err := sessions.End(context.WithoutCancel(r.Context()), s); err != nil {
			observability.RequestLogger(r.Context(), rs.logger).Warn("logout: end session failed", zap.Error(err))
		}
		http.SetCookie(w, sessions.ClearCookie())
		WriteJSON(w, http.StatusOK, model.CommandResponse{
			Success: true,
			Message: "Signed out",
			Result:  map[string]any{"redirect": model.LoginRoute},
		})
	}
}

func handleForgotPassword(account *client.Account, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form views.ForgotPasswordForm
		if err := decodeBody(r, &form); err != nil {
			rs.fail(w, r, err)
			return
		}
		if err := views.Validate(&form); err != nil {
			rs.fail(w, r, err)
			return
		}
		msg, err := account.ForgotPassword(r.Context(), form.Email)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		if msg == "" {
			msg = "A reset code has been sent to " + form.Email
		}
		WriteJSON(w, http.StatusOK, model.CommandResponse{
			Success: true,
			Message: msg,
			Result:  map[string]any{"email": form.Email, "next": "/auth/verify-otp"},
		})
	}
}

func handleVerifyOTP(account *client.Account, rs responder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form views.VerifyOTPForm
		if err := decodeBody(r, &form); err != nil {
			rs.fail(w, r, err)
			return
		}
		if err := views.Validate(&form); err != nil {
			rs.fail(w, r, err)
			return
		}
		msg, err := account.VerifyOTP(r.Context(), form.Email, form.OTP)
		if err != nil {
			rs.fail(w, r, err)
			return
		}
		if msg == "" {
			msg = "Code verified"
		}
		WriteJSON(w, http.StatusOK, model.CommandResponse{
			Success: true,
			Message: msg,
			Result:  map[string]any{"email": form.Email, "next": model.LoginRoute},
		})
	}
}
