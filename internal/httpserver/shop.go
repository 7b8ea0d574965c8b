package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/wishlist"
)

// ShopHTTP serves the cart and the wishlist.
type ShopHTTP struct {
	Cart     *cart.Service
	Wishlist *wishlist.Service
}

type itemRequest struct {
	ProductID string `json:"productId" form:"productId"`
	Quantity  int    `json:"quantity" form:"quantity"`
}

func (h *ShopHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	got, err := h.Cart.Fetch(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "get_cart_error", err, "Failed to load cart")
	}
	return ok(c, http.StatusOK, got)
}

func (h *ShopHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "add_to_cart_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to add to cart")
	}
	got, err := h.Cart.Add(ctx, guard.Credentials(c), req.ProductID, req.Quantity)
	if err != nil {
		return fail(c, l, "add_to_cart_error", err, "Failed to add to cart")
	}
	return okToast(c, http.StatusOK, got, "Added to cart")
}

func (h *ShopHTTP) UpdateCartItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "update_cart_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to update cart")
	}
	got, err := h.Cart.Update(ctx, guard.Credentials(c), c.Param("productID"), req.Quantity)
	if err != nil {
		return fail(c, l, "update_cart_error", err, "Failed to update cart")
	}
	return ok(c, http.StatusOK, got)
}

func (h *ShopHTTP) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	got, err := h.Cart.Remove(ctx, guard.Credentials(c), c.Param("productID"))
	if err != nil {
		return fail(c, l, "remove_from_cart_error", err, "Failed to remove item")
	}
	return okToast(c, http.StatusOK, got, "Item removed from cart")
}

func (h *ShopHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	got, err := h.Cart.Clear(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "clear_cart_error", err, "Failed to clear cart")
	}
	return okToast(c, http.StatusOK, got, "Cart cleared")
}

func (h *ShopHTTP) GetWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.get")

	got, err := h.Wishlist.Fetch(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "get_wishlist_error", err, "Failed to load wishlist")
	}
	return ok(c, http.StatusOK, got)
}

func (h *ShopHTTP) AddToWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.add")

	var req itemRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "add_to_wishlist_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to add to wishlist")
	}
	got, err := h.Wishlist.Add(ctx, guard.Credentials(c), req.ProductID)
	if errors.Is(err, wishlist.ErrAlreadyPresent) {
		return info(c, got, "Product already in wishlist")
	}
	if err != nil {
		return fail(c, l, "add_to_wishlist_error", err, "Failed to add to wishlist")
	}
	return okToast(c, http.StatusOK, got, "Added to wishlist")
}

func (h *ShopHTTP) RemoveFromWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.remove")

	got, err := h.Wishlist.Remove(ctx, guard.Credentials(c), c.Param("productID"))
	if err != nil {
		return fail(c, l, "remove_from_wishlist_error", err, "Failed to remove from wishlist")
	}
	return okToast(c, http.StatusOK, got, "Removed from wishlist")
}

func (h *ShopHTTP) ClearWishlist(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "wishlist.clear")

	got, err := h.Wishlist.Clear(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "clear_wishlist_error", err, "Failed to clear wishlist")
	}
	return okToast(c, http.StatusOK, got, "Wishlist cleared")
}
