package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/checkout"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
)

type CheckoutHTTP struct {
	Svc   *checkout.Service
	Users *auth.Manager
	Wait  time.Duration
}

func (h *CheckoutHTTP) Quote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.quote")

	q, err := h.Svc.Quote(ctx, guard.Credentials(c), c.QueryParam("location"))
	if err != nil {
		return fail(c, l, "checkout_quote_error", err, "Failed to load checkout")
	}
	return ok(c, http.StatusOK, q)
}

type submitRequest struct {
	FullName       string `json:"fullName" form:"fullName"`
	Phone          string `json:"phone" form:"phone"`
	Address        string `json:"address" form:"address"`
	City           string `json:"city" form:"city"`
	Notes          string `json:"notes" form:"notes"`
	Location       string `json:"location" form:"location"`
	PaymentMethod  string `json:"paymentMethod" form:"paymentMethod"`
	IdempotencyKey string `json:"idempotencyKey" form:"idempotencyKey"`
}

func (h *CheckoutHTTP) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.submit")

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "checkout_submit_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to place order")
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.Request().Header.Get("Idempotency-Key")
	}

	out, err := h.Svc.Submit(ctx, guard.Credentials(c), checkout.Request{
		Shipping: checkout.ShippingInfo{
			FullName: req.FullName, Phone: req.Phone, Address: req.Address, City: req.City, Notes: req.Notes,
		},
		Location:       req.Location,
		Method:         req.PaymentMethod,
		IdempotencyKey: key,
	})
	if err != nil {
		return fail(c, l, "checkout_submit_error", err, "Failed to place order")
	}

	switch out.State {
	case checkout.StateFailed:
		return c.JSON(http.StatusConflict, Envelope{Data: out, Toast: &Toast{Level: ToastError, Message: "This checkout already failed. Please start again"}})
	case checkout.StateInitiated:
		return redirectTo(c, out, out.Redirect, "Redirecting to payment")
	}
	l.Info("order placed", "order_id", out.OrderID, "replayed", out.Replayed)
	return redirectTo(c, out, out.Redirect, "Order placed successfully!")
}

// Confirm is where the payment provider sends the browser back. It is not
// behind the guard; a missing user session ends in the sign-in redirect.
func (h *CheckoutHTTP) Confirm(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.confirm")
	dev := device.FromContext(c)

	s := h.Users.Ensure(ctx, dev, h.Wait)
	switch s.State {
	case auth.StateRestoring:
		return c.JSON(http.StatusAccepted, Envelope{Loading: true})
	case auth.StateAuthenticated:
	default:
		c.Response().Header().Set(echo.HeaderLocation, guard.SignInPath)
		return c.JSON(http.StatusSeeOther, Envelope{Redirect: guard.SignInPath})
	}

	pidx := c.QueryParam("pidx")
	orderID := c.QueryParam("purchase_order_id")
	if orderID == "" {
		orderID = c.QueryParam("orderId")
	}

	out, err := h.Svc.Verify(ctx, h.Users.Credentials(dev), pidx, orderID)
	if err == nil && out.State == checkout.StateConfirmed {
		return redirectTo(c, out, out.Redirect, "Payment successful!")
	}

	// a failed payment carries no redirect; the page offers its own links
	status, redirect := http.StatusBadRequest, ""
	if err != nil {
		status, _, redirect = classify(err, h.Users.Role(), "")
		if errors.Is(err, checkout.ErrValidation) {
			status = http.StatusBadRequest
		}
	}
	l.Warn("payment_confirm_error", "status", status, "order_id", orderID, "state", out.State, "replayed", out.Replayed, "error", err)
	msg := out.Message
	if msg == "" {
		msg = "Payment verification failed"
	}
	return c.JSON(status, Envelope{Data: out, Toast: &Toast{Level: ToastError, Message: msg}, Redirect: redirect})
}

func (h *CheckoutHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.history")

	list, err := h.Svc.History(ctx, device.FromContext(c))
	if err != nil {
		return fail(c, l, "checkout_history_error", err, "Failed to load checkout history")
	}
	return ok(c, http.StatusOK, list)
}
