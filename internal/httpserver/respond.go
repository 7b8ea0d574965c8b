package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/checkout"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/orders"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/upload"
	"github.com/Skotchmaster/grocery_web/internal/wishlist"
)

const (
	ToastSuccess = "success"
	ToastError   = "error"
	ToastInfo    = "info"

	AdminSignInPath = "/admin/signin"
)

type Toast struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type Envelope struct {
	Data     any    `json:"data,omitempty"`
	Toast    *Toast `json:"toast,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Loading  bool   `json:"loading,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Data: data})
}

func okToast(c echo.Context, status int, data any, message string) error {
	return c.JSON(status, Envelope{Data: data, Toast: &Toast{Level: ToastSuccess, Message: message}})
}

func info(c echo.Context, data any, message string) error {
	return c.JSON(http.StatusOK, Envelope{Data: data, Toast: &Toast{Level: ToastInfo, Message: message}})
}

func redirectTo(c echo.Context, data any, to, message string) error {
	env := Envelope{Data: data, Redirect: to}
	if message != "" {
		env.Toast = &Toast{Level: ToastSuccess, Message: message}
	}
	return c.JSON(http.StatusOK, env)
}

var badRequest = []error{
	auth.ErrValidation, cart.ErrValidation, wishlist.ErrValidation, checkout.ErrValidation,
	orders.ErrValidation, reviews.ErrValidation, errValidation,
	checkout.ErrEmptyCart, reviews.ErrNotReviewable, reviews.ErrItemNotInOrder,
	upload.ErrNotImage, upload.ErrEmpty,
}

var conflict = []error{
	checkout.ErrInProgress, orders.ErrNotCancellable, reviews.ErrAlreadyDone, wishlist.ErrAlreadyPresent,
}

var unauthenticated = []error{
	cart.ErrUnauthenticated, wishlist.ErrUnauthenticated, orders.ErrUnauthenticated,
}

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// message strips the wrapped sentinel so the toast reads as a sentence.
func message(err error) string {
	msg := strings.TrimSuffix(err.Error(), ": validation")
	if msg == "" {
		return "Something went wrong"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func signInFor(role apiclient.Role) string {
	if role == apiclient.RoleAdmin {
		return AdminSignInPath
	}
	return guard.SignInPath
}

// classify maps an error to the status, toast text and redirect the
// client should see.
func classify(err error, role apiclient.Role, failed string) (int, string, string) {
	switch {
	case errors.Is(err, apiclient.ErrSessionExpired):
		return http.StatusUnauthorized, "Your session has expired. Please sign in again", signInFor(role)
	case isAny(err, unauthenticated):
		return http.StatusUnauthorized, message(err), signInFor(role)
	case errors.Is(err, apiclient.ErrNetwork):
		return http.StatusBadGateway, failed, ""
	}

	if apiErr, ok := apiclient.AsAPIError(err); ok {
		status := apiErr.Status
		if status >= 500 {
			status = http.StatusBadGateway
		}
		if status < 400 {
			status = http.StatusBadRequest
		}
		msg := apiErr.Message
		if msg == "" {
			msg = failed
		}
		return status, msg, ""
	}

	switch {
	case isAny(err, badRequest):
		return http.StatusBadRequest, message(err), ""
	case isAny(err, conflict):
		return http.StatusConflict, message(err), ""
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "Image is too large", ""
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, checkout.ErrNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound, message(err), ""
	}
	return http.StatusInternalServerError, failed, ""
}

// fail logs the error under event and writes the error envelope. failed is
// the generic text shown when the error carries nothing better.
func fail(c echo.Context, l *slog.Logger, event string, err error, failed string) error {
	status, msg, redirect := classify(err, guard.Credentials(c).Role, failed)
	switch {
	case status >= 500:
		l.Error(event, "status", status, "error", err)
	default:
		l.Warn(event, "status", status, "error", err)
	}
	return c.JSON(status, Envelope{Toast: &Toast{Level: ToastError, Message: msg}, Redirect: redirect})
}

var (
	errValidation = errors.New("validation")
	errNotFound   = errors.New("not found")
)
