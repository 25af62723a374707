package http

import (
	"net/http"

	"github.com/aussiebroadwan/iworkcore/internal/identity/domain"
	"github.com/aussiebroadwan/iworkcore/internal/identity/service"
	"github.com/aussiebroadwan/iworkcore/pkg/httpx"
	"github.com/aussiebroadwan/iworkcore/pkg/slogx"
)

// AuthHandler serves sign-up, sign-in, session and credential recovery
// endpoints under /auth.
type AuthHandler struct {
	Sessions       *service.SessionService
	PasswordResets *service.PasswordResetService
	Verification   *service.VerificationService

	errs errorWriter
}

// authData is the payload of every response that signs a user in.
type authData struct {
	User         domain.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	TokenType    string            `json:"tokenType"`
	ExpiresIn    int64             `json:"expiresIn"`
}

func newAuthData(u domain.User, p domain.TokenPair) authData {
	return authData{
		User:         u.Public(),
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Phone           string `json:"phone"`
	InviteToken     string `json:"inviteToken"`
}

// HandleSignUp handles POST /auth/signup.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.email("email", req.Email)
	fe.password("password", req.Password)
	fe.confirm("confirmPassword", req.ConfirmPassword, req.Password)
	fe.required("firstName", req.FirstName, "First name is required")
	fe.required("lastName", req.LastName, "Last name is required")
	if !fe.ok(w) {
		return
	}

	res, err := h.Sessions.SignUp(r.Context(), service.SignUpInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		InviteToken: req.InviteToken,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	message := "Account created successfully. Please verify your email."
	if res.User.Role == domain.RoleStaff {
		message = "Account created successfully. Pending approval from HR."
	}
	httpx.WriteSuccess(w, http.StatusCreated, message, newAuthData(res.User, res.Tokens))
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn handles POST /auth/signin. Accounts with two-factor enabled
// get a short-lived tempToken instead of a session.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.email("email", req.Email)
	fe.required("password", req.Password, "Password is required")
	if !fe.ok(w) {
		return
	}

	res, err := h.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	if res.TwoFactorRequired() {
		httpx.WriteJSON(w, http.StatusOK, httpx.Envelope{
			Status:    httpx.Status2FARequired,
			Message:   "2FA verification required.",
			TempToken: res.TwoFactorToken,
		})
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Login successful", newAuthData(res.User, res.Tokens))
}

type twoFactorSignInRequest struct {
	TempToken string `json:"tempToken"`
	Code      string `json:"code"`
}

// HandleTwoFactorSignIn handles POST /auth/2fa/verify, the second step of a
// sign-in that stopped at 2fa_required.
func (h *AuthHandler) HandleTwoFactorSignIn(w http.ResponseWriter, r *http.Request) {
	var req twoFactorSignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.required("tempToken", req.TempToken, "Temporary token is required")
	fe.code("code", req.Code)
	if !fe.ok(w) {
		return
	}

	res, err := h.Sessions.CompleteTwoFactorSignIn(r.Context(), req.TempToken, req.Code)
	if err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "Two-Factor session expired. Please sign in again."},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Login successful", newAuthData(res.User, res.Tokens))
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// HandleRefresh handles POST /auth/refresh-token.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.required("refreshToken", req.RefreshToken, "Refresh token is required")
	if !fe.ok(w) {
		return
	}

	pair, err := h.Sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrInvalidOrExpiredToken, http.StatusUnauthorized, "Invalid or expired refresh token"},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", pair)
}

// HandleLogout handles POST /auth/logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.required("refreshToken", req.RefreshToken, "Refresh token is required")
	if !fe.ok(w) {
		return
	}

	if err := h.Sessions.Logout(r.Context(), httpx.UserIDFromContext(r.Context()), req.RefreshToken); err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// HandleLogoutAll handles POST /auth/logout-all.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.LogoutAll(r.Context(), httpx.UserIDFromContext(r.Context())); err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Logged out from all devices", nil)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// HandleDeleteAccount handles DELETE /auth/delete-account.
func (h *AuthHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req deleteAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.required("password", req.Password, "Password is required")
	if !fe.ok(w) {
		return
	}

	userID := httpx.UserIDFromContext(ctx)
	if err := h.Sessions.DeleteAccount(ctx, userID, req.Password); err != nil {
		h.errs.write(w, r, err)
		return
	}

	log.Info("account deleted", "user_id", userID)
	httpx.WriteSuccess(w, http.StatusOK, "Your account has been permanently deleted.", nil)
}

type emailRequest struct {
	Email string `json:"email"`
}

// HandleForgotPassword handles POST /auth/forgot-password.
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.email("email", req.Email)
	if !fe.ok(w) {
		return
	}

	if err := h.PasswordResets.RequestReset(r.Context(), req.Email); err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrNotFound, http.StatusNotFound, "No account found with that email address"},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Password reset link sent to your email", nil)
}

type resetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// HandleResetPassword handles POST /auth/reset-password/{token}. A
// successful reset revokes every session and signs the user back in.
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token := r.PathValue("token")
	fe := fieldErrors{}
	fe.required("token", token, "Reset token is required")
	fe.password("password", req.Password)
	fe.confirm("confirmPassword", req.ConfirmPassword, req.Password)
	if !fe.ok(w) {
		return
	}

	user, pair, err := h.PasswordResets.CompleteReset(r.Context(), token, req.Password)
	if err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrInvalidOrExpiredToken, http.StatusBadRequest, "Invalid or expired reset token"},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Password reset successful", newAuthData(user, pair))
}

// HandleSendVerification handles POST /auth/send-verification-email for the
// signed-in user.
func (h *AuthHandler) HandleSendVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.Verification.SendVerification(r.Context(), httpx.UserIDFromContext(r.Context())); err != nil {
		h.errs.write(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Verification email sent successfully", nil)
}

// HandleVerifyEmail handles GET /auth/verify-email/{token}, the link sent
// by email.
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.Verification.Verify(r.Context(), r.PathValue("token"))
	if err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrInvalidOrExpiredToken, http.StatusBadRequest, "Invalid or expired verification token"},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Email verified successfully", map[string]any{
		"user": user.Public(),
	})
}

// HandleResendVerification handles POST /auth/resend-verification-email for
// callers who are not signed in.
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	fe.email("email", req.Email)
	if !fe.ok(w) {
		return
	}

	if err := h.Verification.Resend(r.Context(), req.Email); err != nil {
		h.errs.write(w, r, err,
			errorMapping{service.ErrNotFound, http.StatusNotFound, "No user found with that email address"},
		)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "Verification email resent successfully", nil)
}
