// Package guard gates routes on the device's user or admin session.
package guard

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/device"
	"github.com/Skotchmaster/grocery_web/internal/logging"
)

const (
	CredentialsKey = "credentials"
	ProfileKey     = "profile"

	SignInPath = "/signin"
	HomePath   = "/"

	DefaultWait = 2 * time.Second
)

// Policy describes one guarded area. When Deny holds an authenticated
// session the request goes to DenyTo instead.
type Policy struct {
	Sessions *auth.Manager
	Deny     *auth.Manager
	SignIn   string
	DenyTo   string
	Wait     time.Duration
}

func redirect(c echo.Context, to string) error {
	c.Response().Header().Set(echo.HeaderLocation, to)
	return c.JSON(http.StatusSeeOther, echo.Map{"redirect": to})
}

func loading(c echo.Context) error {
	return c.JSON(http.StatusAccepted, echo.Map{"loading": true})
}

func Require(p Policy) echo.MiddlewareFunc {
	if p.Wait <= 0 {
		p.Wait = DefaultWait
	}
	if p.SignIn == "" {
		p.SignIn = SignInPath
	}
	if p.DenyTo == "" {
		p.DenyTo = HomePath
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			dev := device.FromContext(c)
			l := logging.FromContext(ctx).With("guard", string(p.Sessions.Role()))

			if dev == "" {
				return redirect(c, p.SignIn)
			}

			// the denied role is checked first; restoring the guarded role
			// may clear the other role's keys
			if p.Deny != nil {
				other := p.Deny.Ensure(ctx, dev, p.Wait)
				switch other.State {
				case auth.StateRestoring:
					return loading(c)
				case auth.StateAuthenticated:
					l.Info("guard_denied", "device_id", dev, "redirect", p.DenyTo)
					return redirect(c, p.DenyTo)
				}
			}

			s := p.Sessions.Ensure(ctx, dev, p.Wait)
			switch s.State {
			case auth.StateRestoring:
				return loading(c)
			case auth.StateAuthenticated:
				c.Set(CredentialsKey, apiclient.Credentials{Role: p.Sessions.Role(), Token: s.Token, DeviceID: dev})
				c.Set(ProfileKey, s.Profile)
				return next(c)
			default:
				l.Debug("guard_unauthenticated", "device_id", dev)
				return redirect(c, p.SignIn)
			}
		}
	}
}

func RequireUser(user *auth.Manager, wait time.Duration) echo.MiddlewareFunc {
	return Require(Policy{Sessions: user, Wait: wait})
}

// RequireAdmin sends signed-out visitors to sign in and signed-in users
// home.
func RequireAdmin(admin, user *auth.Manager, wait time.Duration) echo.MiddlewareFunc {
	return Require(Policy{Sessions: admin, Deny: user, Wait: wait})
}

// Credentials returns what the guard stored, or anonymous credentials for
// unguarded routes.
func Credentials(c echo.Context) apiclient.Credentials {
	if cred, ok := c.Get(CredentialsKey).(apiclient.Credentials); ok {
		return cred
	}
	return apiclient.Anonymous(device.FromContext(c))
}
