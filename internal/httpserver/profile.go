package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/logging"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/upload"
)

type ProfileHTTP struct {
	API      *apiclient.Client
	Users    *auth.Manager
	Sessions *SessionHTTP
	Uploads  upload.Validator
}

func (h *ProfileHTTP) remember(c echo.Context, u *apiclient.User) {
	raw, err := json.Marshal(u)
	if err == nil {
		err = h.Users.UpdateProfile(c.Request().Context(), device.FromContext(c), raw)
	}
	if err != nil {
		logging.FromContext(c.Request().Context()).Warn("profile_cache_error", "error", err)
	}
}

func (h *ProfileHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.get")

	u, err := h.API.Profile(ctx, guard.Credentials(c))
	if err != nil {
		return fail(c, l, "get_profile_error", err, "Failed to load profile")
	}
	h.remember(c, u)
	return ok(c, http.StatusOK, u)
}

func (h *ProfileHTTP) Update(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.update")

	var req apiclient.ProfileUpdate
	if err := c.Bind(&req); err != nil {
		return fail(c, l, "update_profile_error", fmt.Errorf("invalid body: %w", errValidation), "Failed to update profile")
	}
	req.Name, req.Email = strings.TrimSpace(req.Name), strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		return fail(c, l, "update_profile_error", fmt.Errorf("name and email are required: %w", errValidation), "Failed to update profile")
	}

	u, err := h.API.UpdateProfile(ctx, guard.Credentials(c), req)
	if err != nil {
		return fail(c, l, "update_profile_error", err, "Failed to update profile")
	}
	h.remember(c, u)
	return okToast(c, http.StatusOK, u, "Profile updated successfully")
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword"`
	NewPassword     string `json:"newPassword" form:"newPassword"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

func (h *ProfileHTTP) ChangePassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.change_password")

	var req passwordRequest
	err := c.Bind(&req)
	switch {
	case err != nil:
		err = fmt.Errorf("invalid body: %w", errValidation)
	case req.CurrentPassword == "" || req.NewPassword == "":
		err = fmt.Errorf("current and new password are required: %w", errValidation)
	case req.NewPassword != req.ConfirmPassword:
		err = fmt.Errorf("new passwords don't match: %w", errValidation)
	default:
		err = h.API.ChangePassword(ctx, guard.Credentials(c), req.CurrentPassword, req.NewPassword)
	}
	if err != nil {
		return fail(c, l, "change_password_error", err, "Failed to change password")
	}
	return okToast(c, http.StatusOK, nil, "Password changed successfully")
}

func (h *ProfileHTTP) UploadAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.avatar")

	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, l, "upload_avatar_error", fmt.Errorf("expected a multipart form: %w", errValidation), "Failed to upload avatar")
	}
	avatar, err := h.Uploads.Optional(form, "avatar")
	if err == nil && avatar == nil {
		err = fmt.Errorf("please choose an image: %w", errValidation)
	}
	if err != nil {
		return fail(c, l, "upload_avatar_error", err, "Failed to upload avatar")
	}

	fields := map[string]string{}
	for _, k := range []string{"name", "email", "phone", "address"} {
		if v := c.FormValue(k); v != "" {
			fields[k] = v
		}
	}
	u, err := h.API.UploadAvatar(ctx, guard.Credentials(c), fields, avatar)
	if err != nil {
		return fail(c, l, "upload_avatar_error", err, "Failed to upload avatar")
	}
	h.remember(c, u)
	return okToast(c, http.StatusOK, u, "Profile picture updated")
}

// Delete removes the account and signs the device out.
func (h *ProfileHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "profile.delete")

	if err := h.API.DeleteProfile(ctx, guard.Credentials(c)); err != nil {
		return fail(c, l, "delete_profile_error", err, "Failed to delete account")
	}
	h.Sessions.expireUser(c)
	l.Info("account deleted")
	return redirectTo(c, nil, guard.HomePath, "Account deleted")
}
