package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/upload"
)

type ReviewHTTP struct {
	Svc     *reviews.Service
	Uploads upload.Validator
}

func (h *ReviewHTTP) Mine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reviews.mine")

	list, err := h.Svc.Mine(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "list_reviews_error", err, "Failed to load reviews")
	}
	return ok(c, http.StatusOK, list)
}

// Create accepts a multipart form (with an optional image) or JSON.
func (h *ReviewHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reviews.create")

	var in struct {
		OrderID string      `json:"orderId" form:"orderId"`
		ItemID  string      `json:"itemId" form:"itemId"`
		Rating  json.Number `json:"rating" form:"rating"`
		Comment string      `json:"comment" form:"comment"`
	}
	if err := c.Bind(&in); err != nil {
		return fail(c, l, "create_review_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to submit review")
	}
	rating, err := strconv.Atoi(in.Rating.String())
	if err != nil {
		return fail(c, l, "create_review_error", fmt.Errorf("please select a rating: %w", errValidation), "Failed to submit review")
	}

	var image *apiclient.File
	if form, err := c.MultipartForm(); err == nil {
		if image, err = h.Uploads.Optional(form, "image"); err != nil {
			return fail(c, l, "create_review_error", err, "Failed to submit review")
		}
	}

	r, err := h.Svc.Create(ctx, guard.Credentials(c), apiclient.ReviewInput{
		OrderID: in.OrderID, ItemID: in.ItemID, Rating: rating, Comment: in.Comment,
	}, image)
	if err != nil {
		return fail(c, l, "create_review_error", err, "Failed to submit review")
	}
	return okToast(c, http.StatusCreated, r, "Review submitted successfully")
}

func (h *ReviewHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "reviews.delete")

	if err := h.Svc.Delete(ctx, guard.Credentials(c), c.Param("id")); err != nil {
		return fail(c, l, "delete_review_error", err, "Failed to delete review")
	}
	return okToast(c, http.StatusOK, nil, "Review deleted")
}
