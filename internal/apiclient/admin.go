package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type countResponse struct {
	Count int `json:"count"`
}

func (c *Client) DashboardStats(ctx context.Context, cred Credentials) (*DashboardStats, error) {
	var resp struct {
		Data DashboardStats `json:"data"`
	}
	if err := c.getJSON(ctx, cred, "/admin/dashboard-stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

func (c *Client) AdminOrders(ctx context.Context, cred Credentials) ([]Order, error) {
	var resp ordersResponse
	if err := c.getJSON(ctx, cred, "/admin/orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) NewOrdersSince(ctx context.Context, cred Credentials, since time.Time) (int, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	var resp countResponse
	if err := c.getJSON(ctx, cred, "/admin/orders/new", q, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) PendingOrdersCount(ctx context.Context, cred Credentials) (int, error) {
	var resp countResponse
	if err := c.getJSON(ctx, cred, "/admin/orders/pending-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, cred Credentials, id, status string) (*Order, error) {
	var resp orderResponse
	if err := c.sendJSON(ctx, cred, http.MethodPut, pathID("/admin/orders/", id, ""), map[string]string{"status": status}, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *Client) DeleteOrder(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/admin/orders/", id, ""), nil, nil)
}

func (c *Client) ClearDeliveredOrders(ctx context.Context, cred Credentials) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, "/admin/orders/clear-delivered", nil, nil)
}

func (c *Client) AdminReviews(ctx context.Context, cred Credentials) ([]Review, error) {
	var resp reviewsResponse
	if err := c.getJSON(ctx, cred, "/admin/reviews", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Reviews, nil
}

func (c *Client) SetReviewVisibility(ctx context.Context, cred Credentials, id string, visible bool) error {
	return c.sendJSON(ctx, cred, http.MethodPatch, pathID("/admin/reviews/", id, "/visibility"), map[string]bool{"visible": visible}, nil)
}

func (c *Client) AdminDeleteReview(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/admin/reviews/", id, ""), nil, nil)
}

func (c *Client) Users(ctx context.Context, cred Credentials) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.getJSON(ctx, cred, "/user/all", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) ToggleUserStatus(ctx context.Context, cred Credentials, id string) (string, error) {
	var resp envelope
	if err := c.sendJSON(ctx, cred, http.MethodPut, pathID("/user/toggle-status/", id, ""), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) DeleteUser(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/user/", id, ""), nil, nil)
}
