package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/orders"
)

type OrderHTTP struct {
	Svc *orders.Service
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	list, err := h.Svc.List(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_orders_error", err, "Failed to load orders")
	}
	return ok(c, http.StatusOK, list)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.get")

	o, err := h.Svc.Get(ctx, guard.Credentials(c), c.Param("id"))
	if err != nil {
		return fail(c, l, "get_order_error", err, "Failed to load order")
	}
	return ok(c, http.StatusOK, o)
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.cancel")

	o, err := h.Svc.Cancel(ctx, guard.Credentials(c), c.Param("id"))
	if err != nil {
		return fail(c, l, "cancel_order_error", err, "Failed to cancel order")
	}
	l.Info("order cancelled", "order_id", o.ID)
	return okToast(c, http.StatusOK, o, "Order cancelled successfully")
}
