package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

type AuthResult struct {
	Token   string
	Profile json.RawMessage
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone,omitempty"`
}

type ProfileUpdate struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

var errNoToken = errors.New("sign-in response carried no token")

func (c *Client) signIn(ctx context.Context, path, profileField, email, password string) (*AuthResult, error) {
	var resp map[string]json.RawMessage
	in := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, Credentials{}, http.MethodPost, path, in, &resp); err != nil {
		return nil, err
	}

	var token string
	if raw, ok := resp["token"]; ok {
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil, err
		}
	}
	if token == "" {
		return nil, &APIError{Status: http.StatusBadGateway, Message: errNoToken.Error(), Path: path}
	}
	return &AuthResult{Token: token, Profile: resp[profileField]}, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.signIn(ctx, "/user/login", "user", email, password)
}

func (c *Client) AdminSignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	return c.signIn(ctx, "/admin/signin", "admin", email, password)
}

func (c *Client) Register(ctx context.Context, r RegisterRequest) error {
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/register", r, nil)
}

func (c *Client) Logout(ctx context.Context, cred Credentials) error {
	return c.sendJSON(ctx, cred, http.MethodPost, "/user/logout", nil, nil)
}

func (c *Client) Profile(ctx context.Context, cred Credentials) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.getJSON(ctx, cred, "/user/profile", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, cred Credentials, p ProfileUpdate) (*User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.sendJSON(ctx, cred, http.MethodPut, "/user/profile", p, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) UploadAvatar(ctx context.Context, cred Credentials, fields map[string]string, avatar *File) (*User, error) {
	if avatar != nil {
		avatar.Field = "avatar"
	}
	var resp struct {
		User User `json:"user"`
	}
	if err := c.sendMultipart(ctx, cred, http.MethodPatch, "/users/profile/edit", fields, &resp, avatar); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) DeleteProfile(ctx context.Context, cred Credentials) error {
	return c.sendJSON(ctx, cred, http.MethodDelete, "/user/profile", nil, nil)
}

func (c *Client) ChangePassword(ctx context.Context, cred Credentials, current, next string) error {
	in := map[string]string{"currentPassword": current, "newPassword": next}
	return c.sendJSON(ctx, cred, http.MethodPost, "/user/change-password", in, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/forgot-password", map[string]string{"email": email}, nil)
}

func (c *Client) VerifyResetOTP(ctx context.Context, email, otp string) error {
	in := map[string]string{"email": email, "otp_code": otp}
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/verify-password-reset-otp", in, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	in := map[string]string{"email": email, "newPassword": newPassword}
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/reset-password", in, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, email, otp string) error {
	in := map[string]string{"email": email, "otp_code": otp}
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/verify-email", in, nil)
}

func (c *Client) ResendOTP(ctx context.Context, email string) error {
	return c.sendJSON(ctx, Credentials{}, http.MethodPost, "/user/resend-otp", map[string]string{"email": email}, nil)
}
