package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/grocery_web/internal/apiclient"
	"github.com/Skotchmaster/grocery_web/internal/auth"
	"github.com/Skotchmaster/grocery_web/internal/cart"
	"github.com/Skotchmaster/grocery_web/internal/checkout"
	"github.com/Skotchmaster/grocery_web/internal/middleware/guard"
	"github.com/Skotchmaster/grocery_web/internal/notify"
	"github.com/Skotchmaster/grocery_web/internal/orders"
	"github.com/Skotchmaster/grocery_web/internal/reviews"
	"github.com/Skotchmaster/grocery_web/internal/search"
	"github.com/Skotchmaster/grocery_web/internal/upload"
	"github.com/Skotchmaster/grocery_web/internal/wishlist"
)

type Deps struct {
	API      *apiclient.Client
	Users    *auth.Manager
	Admins   *auth.Manager
	Cart     *cart.Service
	Wishlist *wishlist.Service
	Orders   *orders.Service
	Reviews  *reviews.Service
	Checkout *checkout.Service
	Search   search.Searcher
	// Indexer is nil when elasticsearch is not configured.
	Indexer search.ProductIndexer
	Notify  *notify.Poller
	Uploads upload.Validator

	GuardWait time.Duration
	Ready     func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	sess := &SessionHTTP{API: d.API, Users: d.Users, Admins: d.Admins, Cart: d.Cart, Wishlist: d.Wishlist, Orders: d.Orders, Notify: d.Notify, Wait: d.GuardWait}
	catalog := &CatalogHTTP{API: d.API, Search: d.Search, Reviews: d.Reviews}
	shop := &ShopHTTP{Cart: d.Cart, Wishlist: d.Wishlist}
	co := &CheckoutHTTP{Svc: d.Checkout, Users: d.Users, Wait: d.GuardWait}
	ord := &OrderHTTP{Svc: d.Orders}
	prof := &ProfileHTTP{API: d.API, Users: d.Users, Sessions: sess, Uploads: d.Uploads}
	rev := &ReviewHTTP{Svc: d.Reviews, Uploads: d.Uploads}
	adm := &AdminHTTP{API: d.API, Reviews: d.Reviews, Indexer: d.Indexer, Notify: d.Notify, Uploads: d.Uploads}

	e.GET("/session", sess.Session)
	e.POST("/signin", sess.SignIn)
	e.POST("/signup", sess.SignUp)
	e.POST("/signout", sess.SignOut)
	e.POST("/admin/signin", sess.AdminSignIn)
	e.POST("/admin/signout", sess.AdminSignOut)
	e.POST("/verify-email", sess.VerifyEmail)
	e.POST("/verify-email/resend", sess.ResendOTP)
	e.POST("/forgot-password", sess.ForgotPassword)
	e.POST("/forgot-password/verify", sess.VerifyResetOTP)
	e.POST("/forgot-password/reset", sess.ResetPassword)

	e.GET("/products", catalog.List)
	e.GET("/products/:id", catalog.Get)
	e.GET("/categories", catalog.Categories)
	e.GET("/payment/confirm", co.Confirm)

	requireUser := guard.RequireUser(d.Users, d.GuardWait)

	e.GET("/cart", shop.GetCart, requireUser)
	e.POST("/cart/items", shop.AddToCart, requireUser)
	e.PUT("/cart/items/:productID", shop.UpdateCartItem, requireUser)
	e.DELETE("/cart/items/:productID", shop.RemoveFromCart, requireUser)
	e.DELETE("/cart", shop.ClearCart, requireUser)

	e.GET("/wishlist", shop.GetWishlist, requireUser)
	e.POST("/wishlist/items", shop.AddToWishlist, requireUser)
	e.DELETE("/wishlist/items/:productID", shop.RemoveFromWishlist, requireUser)
	e.DELETE("/wishlist", shop.ClearWishlist, requireUser)

	e.GET("/checkout", co.Quote, requireUser)
	e.POST("/checkout", co.Submit, requireUser)
	e.GET("/checkout/history", co.History, requireUser)

	e.GET("/orders", ord.List, requireUser)
	e.GET("/orders/:id", ord.Get, requireUser)
	e.POST("/orders/:id/cancel", ord.Cancel, requireUser)

	e.GET("/profile", prof.Get, requireUser)
	e.PUT("/profile", prof.Update, requireUser)
	e.POST("/profile/password", prof.ChangePassword, requireUser)
	e.POST("/profile/avatar", prof.UploadAvatar, requireUser)
	e.DELETE("/profile", prof.Delete, requireUser)

	e.GET("/reviews", rev.Mine, requireUser)
	e.POST("/reviews", rev.Create, requireUser)
	e.DELETE("/reviews/:id", rev.Delete, requireUser)

	admin := e.Group("/admin", guard.RequireAdmin(d.Admins, d.Users, d.GuardWait))

	admin.GET("/dashboard", adm.Dashboard)

	admin.GET("/products", adm.Products)
	admin.POST("/products", adm.CreateProduct)
	admin.PUT("/products/:id", adm.UpdateProduct)
	admin.DELETE("/products/:id", adm.DeleteProduct)
	admin.POST("/products/reindex", adm.Reindex)

	admin.GET("/users", adm.Users)
	admin.POST("/users/:id/toggle", adm.ToggleUser)
	admin.DELETE("/users/:id", adm.DeleteUser)

	admin.GET("/orders", adm.Orders)
	admin.PUT("/orders/:id/status", adm.UpdateOrderStatus)
	admin.DELETE("/orders/:id", adm.DeleteOrder)
	admin.DELETE("/orders/delivered", adm.ClearDelivered)

	admin.GET("/reviews", adm.ReviewList)
	admin.PUT("/reviews/:id/visibility", adm.SetReviewVisibility)
	admin.DELETE("/reviews/:id", adm.DeleteReview)

	admin.GET("/notifications", adm.Notifications)
	admin.POST("/notifications/seen", adm.MarkSeen)
}
