// Package device identifies a browser across requests with a signed cookie.
// Everything a browser would keep in its own storage is scoped by this id.
package device

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/logging"
)

const (
	CookieName = "sid"
	ContextKey = "device_id"

	lifetime     = 30 * 24 * time.Hour
	renewalAfter = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid device token")

type Issuer struct {
	Secret []byte
	Secure bool
	Now    func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) Sign(deviceID string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(lifetime)
	claims := jwt.RegisteredClaims{
		Subject:   deviceID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	return s, exp, err
}

func (i *Issuer) Parse(raw string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return i.Secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (i *Issuer) cookie(value string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   i.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (i *Issuer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context())

			deviceID, renew := "", true
			if ck, err := c.Cookie(CookieName); err == nil {
				if claims, err := i.Parse(ck.Value); err == nil {
					deviceID = claims.Subject
					renew = claims.ExpiresAt.Time.Sub(i.now()) < renewalAfter
				}
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
			}

			if renew {
				raw, exp, err := i.Sign(deviceID)
				if err != nil {
					l.Error("device_sign_error", "error", err)
					return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
				c.SetCookie(i.cookie(raw, exp))
			}

			c.Set(ContextKey, deviceID)
			return next(c)
		}
	}
}

func FromContext(c echo.Context) string {
	id, _ := c.Get(ContextKey).(string)
	return id
}
