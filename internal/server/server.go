package server

import (
	"storefront/internal/config"
	"storefront/internal/handler"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// New はechoを組み立てて返す（起動はmain側）。
func New(
	cfg config.Config,
	authH *handler.AuthHandler,
	cartH *handler.CartHandler,
	checkoutH *handler.CheckoutHandler,
	orderH *handler.OrderHandler,
	addressH *handler.AddressHandler,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	authH.RegisterRoutes(e)
	cartH.RegisterRoutes(e, cfg)
	checkoutH.RegisterRoutes(e, cfg)
	orderH.RegisterRoutes(e, cfg)
	addressH.RegisterRoutes(e, cfg)

	return e
}
