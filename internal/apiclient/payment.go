package apiclient

import (
	"context"
	"net/http"
)

type PaymentInitiation struct {
	PaymentURL string `json:"payment_url"`
	Pidx       string `json:"pidx,omitempty"`
}

func (c *Client) InitiateKhalti(ctx context.Context, cred Credentials, orderID string, amount float64) (*PaymentInitiation, error) {
	in := map[string]any{"orderId": orderID, "amount": amount}
	if c.PaymentReturnURL != "" {
		in["returnUrl"] = c.PaymentReturnURL
	}
	var resp PaymentInitiation
	if err := c.sendJSON(ctx, cred, http.MethodPost, "/payment/khalti/initiate", in, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentURL == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: "Failed to initiate payment", Path: "/payment/khalti/initiate"}
	}
	return &resp, nil
}

func (c *Client) VerifyKhalti(ctx context.Context, cred Credentials, pidx, orderID string) error {
	in := map[string]string{"pidx": pidx, "orderId": orderID}
	return c.sendJSON(ctx, cred, http.MethodPost, "/payment/khalti/verify", in, nil)
}
