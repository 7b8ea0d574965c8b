package apiclient

import (
	"context"
	"net/http"
	"strconv"
)

type ReviewInput struct {
	OrderID string
	ItemID  string
	Rating  int
	Comment string
}

type reviewsResponse struct {
	Reviews []Review `json:"reviews"`
}

func (c *Client) CreateReview(ctx context.Context, cred Credentials, r ReviewInput, image *File) (*Review, error) {
	if image != nil {
		image.Field = "image"
	}
	fields := map[string]string{
		"orderId": r.OrderID,
		"itemId":  r.ItemID,
		"rating":  strconv.Itoa(r.Rating),
		"comment": r.Comment,
	}
	var resp struct {
		Review Review `json:"review"`
	}
	if err := c.sendMultipart(ctx, cred, http.MethodPost, "/review/create", fields, &resp, image); err != nil {
		return nil, err
	}
	return &resp.Review, nil
}

func (c *Client) MyReviews(ctx context.Context, cred Credentials) ([]Review, error) {
	var resp reviewsResponse
	if err := c.getJSON(ctx, cred, "/review/my-reviews", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

// UserReviews is the listing used by the "my reviews" page.
func (c *Client) UserReviews(ctx context.Context, cred Credentials) ([]Review, error) {
	var resp reviewsResponse
	if err := c.getJSON(ctx, cred, "/review/user", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

func (c *Client) ProductReviews(ctx context.Context, productID string) ([]Review, error) {
	var resp reviewsResponse
	if err := c.getJSON(ctx, Credentials{}, pathID("/review/product/", productID, ""), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

func (c *Client) DeleteReview(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/review/", id, ""), nil, nil)
}
