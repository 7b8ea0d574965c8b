package apiclient

import (
	"context"
	"net/http"
)

type CreateOrderItem struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CreateOrderRequest struct {
	Items           []CreateOrderItem `json:"items"`
	ShippingAddress string            `json:"shippingAddress"`
	Phone           string            `json:"phone"`
	City            string            `json:"city"`
	Total           float64           `json:"total"`
	PaymentMethod   string            `json:"paymentMethod"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

func (c *Client) CreateOrder(ctx context.Context, cred Credentials, r CreateOrderRequest) (*Order, error) {
	var resp orderResponse
	if err := c.sendJSON(ctx, cred, http.MethodPost, "/order/create", r, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *Client) MyOrders(ctx context.Context, cred Credentials) ([]Order, error) {
	var resp ordersResponse
	if err := c.getJSON(ctx, cred, "/order/my-orders", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) Order(ctx context.Context, cred Credentials, id string) (*Order, error) {
	var resp orderResponse
	if err := c.getJSON(ctx, cred, pathID("/order/", id, ""), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, cred Credentials, id string) error {
	return c.sendJSON(ctx, cred, http.MethodPut, pathID("/order/", id, "/cancel"), nil, nil)
}
