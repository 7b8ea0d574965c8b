package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/notify"
	"github.com/Skotchmaster/grocery_web/internal/orders"
	"github.com/Skotchmaster/grocery_web/internal/wishlist"
)

type SessionHTTP struct {
	API      *apiclient.Client
	Users    *auth.Manager
	Admins   *auth.Manager
	Cart     *cart.Service
	Wishlist *wishlist.Service
	Orders   *orders.Service
	Notify   *notify.Poller
	Wait     time.Duration
}

type roleView struct {
	State   string          `json:"state"`
	Profile json.RawMessage `json:"profile,omitempty"`
}

type sessionView struct {
	User      roleView `json:"user"`
	Admin     roleView `json:"admin"`
	CartCount int      `json:"cartCount"`
}

func viewOf(s auth.Snapshot) roleView {
	return roleView{State: s.State.String(), Profile: s.Profile}
}

// Session reports both roles. The admin session is only restored when no
// user is signed in, since restoring it drops any user keys.
func (h *SessionHTTP) Session(c echo.Context) error {
	ctx := c.Request().Context()
	dev := device.FromContext(c)

	user := h.Users.Ensure(ctx, dev, h.Wait)
	out := sessionView{User: viewOf(user), Admin: roleView{State: auth.StateAnonymous.String()}}

	switch user.State {
	case auth.StateRestoring:
		return c.JSON(http.StatusAccepted, Envelope{Data: out, Loading: true})
	case auth.StateAuthenticated:
		out.CartCount = h.Cart.Snapshot(dev).Count
	default:
		admin := h.Admins.Ensure(ctx, dev, h.Wait)
		out.Admin = viewOf(admin)
		if admin.State == auth.StateRestoring {
			return c.JSON(http.StatusAccepted, Envelope{Data: out, Loading: true})
		}
	}
	return ok(c, http.StatusOK, out)
}

type credentialsRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (h *SessionHTTP) forgetCollections(dev string) {
	h.Cart.Forget(dev)
	h.Wishlist.Forget(dev)
	h.Orders.Forget(dev)
}

func (h *SessionHTTP) SignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.signin")
	dev := device.FromContext(c)

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "signin_error", fmt.Errorf("invalid body: %w", errValidation), "Login failed")
	}

	s, err := h.Users.Login(ctx, dev, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "signin_error", err, "Login failed")
	}
	h.Notify.Forget(dev)

	cred := h.Users.Credentials(dev)
	if _, err := h.Cart.Fetch(ctx, cred); err != nil {
		l.Warn("signin_cart_fetch_error", "error", err)
	}
	if _, err := h.Wishlist.Fetch(ctx, cred); err != nil {
		l.Warn("signin_wishlist_fetch_error", "error", err)
	}

	l.Info("user signed in")
	return redirectTo(c, viewOf(s), guard.HomePath, "Login successful!")
}

func (h *SessionHTTP) AdminSignIn(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.admin_signin")
	dev := device.FromContext(c)

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "admin_signin_error", fmt.Errorf("invalid body: %w", errValidation), "Login failed")
	}

	s, err := h.Admins.Login(ctx, dev, req.Email, req.Password)
	if err != nil {
		return fail(c, l, "admin_signin_error", err, "Login failed")
	}
	h.forgetCollections(dev)

	l.Info("admin signed in")
	return redirectTo(c, viewOf(s), "/admin/dashboard", "Login successful!")
}

func (h *SessionHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.signout")
	dev := device.FromContext(c)

	if err := h.Users.Logout(ctx, dev); err != nil {
		return fail(c, l, "signout_error", err, "Logout failed")
	}
	h.forgetCollections(dev)
	return redirectTo(c, nil, guard.SignInPath, "Logged out successfully")
}

func (h *SessionHTTP) AdminSignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.admin_signout")
	dev := device.FromContext(c)

	if err := h.Admins.Logout(ctx, dev); err != nil {
		return fail(c, l, "admin_signout_error", err, "Logout failed")
	}
	h.Notify.Forget(dev)
	return redirectTo(c, nil, AdminSignInPath, "Logged out successfully")
}

// expireUser drops the user session and cached collections, used after
// the account was deleted.
func (h *SessionHTTP) expireUser(c echo.Context) {
	dev := device.FromContext(c)
	h.Users.Expire(c.Request().Context(), dev)
	h.forgetCollections(dev)
}

type signUpRequest struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	Phone           string `json:"phone" form:"phone"`
}

func (h *SessionHTTP) SignUp(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.signup")

	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "signup_error", fmt.Errorf("invalid body: %w", errValidation), "Registration failed")
	}
	req.Name, req.Email = strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return fail(c, l, "signup_error", fmt.Errorf("name, email and password are required: %w", errValidation), "Registration failed")
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return fail(c, l, "signup_error", fmt.Errorf("passwords do not match: %w", errValidation), "Registration failed")
	}

	err := h.API.Register(ctx, apiclient.RegisterRequest{Name: req.Name, Email: req.Email, Password: req.Password, Phone: strings.TrimSpace(req.Phone)})
	if err != nil {
		return fail(c, l, "signup_error", err, "Registration failed")
	}
	l.Info("user registered")
	return redirectTo(c, echo.Map{"email": req.Email}, "/verify-email", "Registration successful! Please verify your email.")
}

type otpRequest struct {
	Email           string `json:"email" form:"email"`
	OTP             string `json:"otp" form:"otp"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func bindOTP(c echo.Context, needOTP bool) (otpRequest, error) {
	var req otpRequest
	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("invalid body: %w", errValidation)
	}
	req.Email, req.OTP = strings.TrimSpace(req.Email), strings.TrimSpace(req.OTP)
	if req.Email == "" {
		return req, fmt.Errorf("email is required: %w", errValidation)
	}
	if needOTP && req.OTP == "" {
		return req, fmt.Errorf("verification code is required: %w", errValidation)
	}
	return req, nil
}

func (h *SessionHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.verify_email")

	req, err := bindOTP(c, true)
	if err == nil {
		err = h.API.VerifyEmail(ctx, req.Email, req.OTP)
	}
	if err != nil {
		return fail(c, l, "verify_email_error", err, "Verification failed")
	}
	return redirectTo(c, nil, guard.SignInPath, "Email verified successfully! Please log in.")
}

func (h *SessionHTTP) ResendOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.resend_otp")

	req, err := bindOTP(c, false)
	if err == nil {
		err = h.API.ResendOTP(ctx, req.Email)
	}
	if err != nil {
		return fail(c, l, "resend_otp_error", err, "Failed to resend OTP")
	}
	return okToast(c, http.StatusOK, nil, "OTP resent to your email")
}

func (h *SessionHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.forgot_password")

	req, err := bindOTP(c, false)
	if err == nil {
		err = h.API.ForgotPassword(ctx, req.Email)
	}
	if err != nil {
		return fail(c, l, "forgot_password_error", err, "Failed to send OTP")
	}
	return okToast(c, http.StatusOK, echo.Map{"step": "verify"}, "OTP sent to your email")
}

func (h *SessionHTTP) VerifyResetOTP(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.verify_reset_otp")

	req, err := bindOTP(c, true)
	if err == nil {
		err = h.API.VerifyResetOTP(ctx, req.Email, req.OTP)
	}
	if err != nil {
		return fail(c, l, "verify_reset_otp_error", err, "Failed to verify OTP")
	}
	return okToast(c, http.StatusOK, echo.Map{"step": "reset"}, "OTP verified. You can now reset your password.")
}

func (h *SessionHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "session.reset_password")

	req, err := bindOTP(c, false)
	switch {
	case err != nil:
	case req.Password == "":
		err = fmt.Errorf("new password is required: %w", errValidation)
	case req.Password != req.ConfirmPassword:
		err = fmt.Errorf("passwords do not match: %w", errValidation)
	default:
		err = h.API.ResetPassword(ctx, req.Email, req.Password)
	}
	if err != nil {
		return fail(c, l, "reset_password_error", err, "Failed to reset password")
	}
	return redirectTo(c, nil, guard.SignInPath, "Password reset successfully. Please log in.")
}
