package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

func (c *Client) Wishlist(ctx context.Context, cred Credentials) ([]Product, error) {
	var resp struct {
		Wishlist json.RawMessage `json:"wishlist"`
	}
	if err := c.getJSON(ctx, cred, "/wishlist", nil, &resp); err != nil {
		return nil, err
	}
	return decodeWishlist(resp.Wishlist)
}

// decodeWishlist accepts {products:[...]} and a bare product array.
func decodeWishlist(raw json.RawMessage) ([]Product, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []Product{}, nil
	}

	var refs []ProductRef
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("decode wishlist: %w", err)
		}
	case '{':
		var doc struct {
			Products []ProductRef `json:"products"`
		}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode wishlist: %w", err)
		}
		refs = doc.Products
	default:
		return nil, fmt.Errorf("decode wishlist: unexpected shape")
	}

	out := make([]Product, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Product)
	}
	return out, nil
}

func (c *Client) AddToWishlist(ctx context.Context, cred Credentials, productID string) error {
	return c.sendJSON(ctx, cred, http.MethodPost, "/wishlist/add", map[string]string{"productId": productID}, nil)
}

func (c *Client) RemoveFromWishlist(ctx context.Context, cred Credentials, productID string) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, pathID("/wishlist/remove/", productID, ""), nil, nil)
}

func (c *Client) ClearWishlist(ctx context.Context, cred Credentials) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, "/wishlist/clear", nil, nil)
}
