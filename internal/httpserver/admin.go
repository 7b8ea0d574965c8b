package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/notify"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/search"
	"github.com/Skotchmaster/grocery_web/internal/upload"
)

type AdminHTTP struct {
	API     *apiclient.Client
	Reviews *reviews.Service
	Indexer search.ProductIndexer
	Notify  *notify.Poller
	Uploads upload.Validator
}

func (h *AdminHTTP) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.dashboard")

	st, err := h.API.DashboardStats(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "dashboard_error", err, "Failed to load dashboard")
	}
	return ok(c, http.StatusOK, st)
}

func (h *AdminHTTP) Products(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.products")

	list, err := h.API.AllProducts(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_products_error", err, "Failed to load products")
	}
	if list == nil {
		list = []apiclient.Product{}
	}
	return ok(c, http.StatusOK, list)
}

func productInput(c echo.Context) (apiclient.ProductInput, error) {
	in := apiclient.ProductInput{
		Name:        strings.TrimSpace(c.FormValue("name")),
		Description: strings.TrimSpace(c.FormValue("description")),
		Category:    strings.TrimSpace(c.FormValue("category")),
		Unit:        strings.TrimSpace(c.FormValue("unit")),
	}
	if in.Name == "" || in.Category == "" {
		return in, fmt.Errorf("name and category are required: %w", errValidation)
	}
	price, err := strconv.ParseFloat(c.FormValue("price"), 64)
	if err != nil || price <= 0 {
		return in, fmt.Errorf("price must be a positive number: %w", errValidation)
	}
	in.Price = price
	if s := c.FormValue("stock"); s != "" {
		stock, err := strconv.Atoi(s)
		if err != nil || stock < 0 {
			return in, fmt.Errorf("stock must be a whole number: %w", errValidation)
		}
		in.Stock = stock
	}
	return in, nil
}

func (h *AdminHTTP) productImage(c echo.Context) (*apiclient.File, error) {
	form, err := c.MultipartForm()
	if errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return nil, upload.ErrTooLarge
		}
		return nil, fmt.Errorf("read upload: %v: %w", err, errValidation)
	}
	return h.Uploads.Optional(form, "image")
}

func (h *AdminHTTP) index(c echo.Context, p *apiclient.Product) {
	if h.Indexer == nil || p == nil || p.ID == "" {
		return
	}
	if err := h.Indexer.Put(c.Request().Context(), *p); err != nil {
		logging.FromContext(c.Request().Context()).Warn("index_product_error", "product_id", p.ID, "error", err)
	}
}

func (h *AdminHTTP) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.create_product")

	in, err := productInput(c)
	if err != nil {
		return fail(c, l, "create_product_error", err, "Failed to create product")
	}
	image, err := h.productImage(c)
	if err != nil {
		return fail(c, l, "create_product_error", err, "Failed to create product")
	}

	p, err := h.API.CreateProduct(ctx, guard.Credentials(c), in, image)
	if err != nil {
		return fail(c, l, "create_product_error", err, "Failed to create product")
	}
	h.index(c, p)
	l.Info("product created", "product_id", p.ID)
	return okToast(c, http.StatusCreated, p, "Product created successfully")
}

func (h *AdminHTTP) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_product")

	in, err := productInput(c)
	if err != nil {
		return fail(c, l, "update_product_error", err, "Failed to update product")
	}
	image, err := h.productImage(c)
	if err != nil {
		return fail(c, l, "update_product_error", err, "Failed to update product")
	}

	p, err := h.API.UpdateProduct(ctx, guard.Credentials(c), c.Param("id"), in, image)
	if err != nil {
		return fail(c, l, "update_product_error", err, "Failed to update product")
	}
	if p.ID == "" {
		p.ID = c.Param("id")
	}
	h.index(c, p)
	return okToast(c, http.StatusOK, p, "Product updated successfully")
}

func (h *AdminHTTP) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_product")
	id := c.Param("id")

	if err := h.API.DeleteProduct(ctx, guard.Credentials(c), id); err != nil {
		return fail(c, l, "delete_product_error", err, "Failed to delete product")
	}
	if h.Indexer != nil {
		if err := h.Indexer.Remove(ctx, id); err != nil {
			l.Warn("unindex_product_error", "product_id", id, "error", err)
		}
	}
	return okToast(c, http.StatusOK, nil, "Product deleted successfully")
}

func (h *AdminHTTP) Reindex(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.reindex")

	if h.Indexer == nil {
		l.Warn("reindex_error", "status", http.StatusServiceUnavailable)
		return c.JSON(http.StatusServiceUnavailable, Envelope{Toast: &Toast{Level: ToastError, Message: "Search index is not configured"}})
	}
	list, err := h.API.AllProducts(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "reindex_error", err, "Failed to reindex products")
	}
	st, err := h.Indexer.Sync(ctx, list)
	if err != nil {
		return fail(c, l, "reindex_error", err, "Failed to reindex products")
	}
	return okToast(c, http.StatusOK, st, fmt.Sprintf("Indexed %d products", st.Indexed))
}

func (h *AdminHTTP) Users(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.users")

	list, err := h.API.Users(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_users_error", err, "Failed to load users")
	}
	if list == nil {
		list = []apiclient.User{}
	}
	return ok(c, http.StatusOK, list)
}

func (h *AdminHTTP) ToggleUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.toggle_user")

	msg, err := h.API.ToggleUserStatus(ctx, guard.Credentials(c), c.Param("id"))
	if err != nil {
		return fail(c, l, "toggle_user_error", err, "Failed to update user status")
	}
	if msg == "" {
		msg = "User status updated"
	}
	return okToast(c, http.StatusOK, nil, msg)
}

func (h *AdminHTTP) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_user")

	if err := h.API.DeleteUser(ctx, guard.Credentials(c), c.Param("id")); err != nil {
		return fail(c, l, "delete_user_error", err, "Failed to delete user")
	}
	return okToast(c, http.StatusOK, nil, "User deleted successfully")
}

func (h *AdminHTTP) Orders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.orders")

	list, err := h.API.AdminOrders(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_orders_error", err, "Failed to load orders")
	}
	if status := c.QueryParam("status"); status != "" {
		kept := list[:0]
		for _, o := range list {
			if o.Status == status {
				kept = append(kept, o)
			}
		}
		list = kept
	}
	if list == nil {
		list = []apiclient.Order{}
	}
	return ok(c, http.StatusOK, list)
}

func (h *AdminHTTP) UpdateOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.update_order_status")

	var req struct {
		Status string `json:"status" form:"status"`
	}
	if err := c.Bind(&req); err != nil || !apiclient.ValidOrderStatus(req.Status) {
		return fail(c, l, "update_order_status_error", fmt.Errorf("unknown order status %q: %w", req.Status, errValidation), "Failed to update order")
	}

	o, err := h.API.UpdateOrderStatus(ctx, guard.Credentials(c), c.Param("id"), req.Status)
	if err != nil {
		return fail(c, l, "update_order_status_error", err, "Failed to update order")
	}
	return okToast(c, http.StatusOK, o, "Order status updated")
}

func (h *AdminHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_order")

	if err := h.API.DeleteOrder(ctx, guard.Credentials(c), c.Param("id")); err != nil {
		return fail(c, l, "delete_order_error", err, "Failed to delete order")
	}
	return okToast(c, http.StatusOK, nil, "Order deleted")
}

func (h *AdminHTTP) ClearDelivered(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.clear_delivered")

	if err := h.API.ClearDeliveredOrders(ctx, guard.Credentials(c)); err != nil {
		return fail(c, l, "clear_delivered_error", err, "Failed to clear delivered orders")
	}
	return okToast(c, http.StatusOK, nil, "Delivered orders cleared")
}

func (h *AdminHTTP) ReviewList(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.reviews")

	list, err := h.Reviews.List(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_reviews_error", err, "Failed to load reviews")
	}
	return ok(c, http.StatusOK, list)
}

func (h *AdminHTTP) SetReviewVisibility(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.review_visibility")

	var req struct {
		Visible *bool `json:"visible" form:"visible"`
	}
	if err := c.Bind(&req); err != nil || req.Visible == nil {
		return fail(c, l, "review_visibility_error", fmt.Errorf("visible is required: %w", errValidation), "Failed to update review")
	}
	if err := h.Reviews.SetVisibility(ctx, guard.Credentials(c), c.Param("id"), *req.Visible); err != nil {
		return fail(c, l, "review_visibility_error", err, "Failed to update review")
	}
	msg := "Review hidden"
	if *req.Visible {
		msg = "Review is now visible"
	}
	return okToast(c, http.StatusOK, nil, msg)
}

func (h *AdminHTTP) DeleteReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.delete_review")

	if err := h.Reviews.AdminDelete(ctx, guard.Credentials(c), c.Param("id")); err != nil {
		return fail(c, l, "delete_review_error", err, "Failed to delete review")
	}
	return okToast(c, http.StatusOK, nil, "Review deleted")
}

// Notifications answers from the poller's last check, checking now if the
// device has not been polled yet.
func (h *AdminHTTP) Notifications(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.notifications")

	st := h.Notify.Status(device.FromContext(c))
	if st.CheckedAt.IsZero() {
		var err error
		if st, err = h.Notify.Check(ctx, guard.Credentials(c)); err != nil {
			return fail(c, l, "notifications_error", err, "Failed to load notifications")
		}
	}
	return ok(c, http.StatusOK, st)
}

func (h *AdminHTTP) MarkSeen(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.notifications_seen")

	if err := h.Notify.MarkSeen(ctx, device.FromContext(c), time.Now()); err != nil {
		return fail(c, l, "notifications_seen_error", err, "Failed to update notifications")
	}
	return ok(c, http.StatusOK, h.Notify.Status(device.FromContext(c)))
}
