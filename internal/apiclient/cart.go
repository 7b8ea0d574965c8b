package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type quantityRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (c *Client) Cart(ctx context.Context, cred Credentials) ([]CartItem, error) {
	var resp struct {
		Cart json.RawMessage `json:"cart"`
	}
	if err := c.getJSON(ctx, cred, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	return decodeCart(resp.Cart)
}

// decodeCart accepts {items:[...]} and a bare item array.
func decodeCart(raw json.RawMessage) ([]CartItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []CartItem{}, nil
	}

	items := []CartItem{}
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode cart: %w", err)
		}
	case '{':
		var doc struct {
			Items []CartItem `json:"items"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode cart: %w", err)
		}
		if doc.Items != nil {
			items = doc.Items
		}
	default:
		return nil, fmt.Errorf("decode cart: unexpected shape")
	}
	return items, nil
}

func (c *Client) AddToCart(ctx context.Context, cred Credentials, productID string, quantity int) error {
	return c.sendJSON(ctx, cred, http.MethodPost, "/cart/add", quantityRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (c *Client) UpdateCartItem(ctx context.Context, cred Credentials, productID string, quantity int) error {
	return c.sendJSON(ctx, cred, http.MethodPut, "/cart/update", quantityRequest{ProductID: productID, Quantity: quantity}, nil)
}

func (c *Client) RemoveFromCart(ctx context.Context, cred Credentials, productID string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/cart/remove/", productID, ""), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, cred Credentials) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, "/cart/clear", nil, nil)
}
