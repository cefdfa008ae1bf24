package handler

import (
	"net/http"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	uc      *usecase.CheckoutUsecase
	limiter *middleware.RateLimiter
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase, limiter *middleware.RateLimiter) *CheckoutHandler {
	return &CheckoutHandler{uc: uc, limiter: limiter}
}

type CheckoutRequest struct {
	ShippingAddress usecase.AddressInput        `json:"shipping_address"`
	BillingAddress  *usecase.AddressInput       `json:"billing_address,omitempty"`
	Email           string                      `json:"email,omitempty"`
	DiscountCode    string                      `json:"discount_code,omitempty"`
	IdempotencyKey  string                      `json:"idempotency_key,omitempty"`
	SaveAddress     bool                        `json:"save_address,omitempty"`
	Currency        string                      `json:"currency,omitempty"`
	Lines           []usecase.CheckoutLineInput `json:"lines,omitempty"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/checkout")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(h.limiter.Middleware())

	g.POST("", h.create)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: usecase.CodeUnauthenticated})
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: usecase.CodeInvalidPayload, Message: "invalid body"})
	}

	//二重送信防止キーはヘッダー優先（bodyはフォールバック）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")
	if idemKey == "" {
		idemKey = req.IdempotencyKey
	}

	out, err := h.uc.Checkout(c.Request().Context(), userID, usecase.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Email:           req.Email,
		DiscountCode:    req.DiscountCode,
		IdempotencyKey:  idemKey,
		SaveAddress:     req.SaveAddress,
		Currency:        req.Currency,
		Lines:           req.Lines,
	})
	if err != nil {
		return writeError(c, err)
	}

	status := http.StatusCreated
	if out.Idempotent {
		status = http.StatusOK
	}
	return c.JSON(status, out)
}
