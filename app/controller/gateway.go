package controller

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

const flashParam = "mm_msg"

// GatewayController serves the provider-facing surface: the signed
// webhook endpoint and the customer browser return URLs.
type GatewayController struct {
	checkoutService *service.CheckoutService
	landingURL      string
	logger          logrus.FieldLogger
}

func NewGatewayController(checkoutService *service.CheckoutService, landingURL string) *GatewayController {
	return &GatewayController{
		checkoutService: checkoutService,
		landingURL:      strings.TrimRight(strings.TrimSpace(landingURL), "/"),
		logger:          factory.NewModuleLogger("gateway-controller"),
	}
}

func (c *GatewayController) HandleWebhook(ctx echo.Context) error {
	req, err := types.NewWebhookRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	if err := c.checkoutService.HandleWebhook(ctx.Request().Context(), req); err != nil {
		switch {
		case errors.Is(err, service.ErrRateLimited):
			return c.writeError(ctx, http.StatusTooManyRequests, "rate limit exceeded")
		case errors.Is(err, service.ErrEmptyPayload), errors.Is(err, service.ErrInvalidPayload):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidSignature), errors.Is(err, service.ErrReplayRejected):
			return c.writeError(ctx, http.StatusUnauthorized, "unauthorized")
		case errors.Is(err, service.ErrWebhookNotConfigured):
			return c.writeError(ctx, http.StatusInternalServerError, "webhook not configured")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Handle webhook failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.StatusResponse{Status: "ok"})
}

func (c *GatewayController) ReturnSuccess(ctx echo.Context) error {
	return c.handleReturn(ctx, types.ReturnActionSuccess, "payment_success")
}

func (c *GatewayController) ReturnCancel(ctx echo.Context) error {
	return c.handleReturn(ctx, types.ReturnActionCancel, "payment_cancelled")
}

func (c *GatewayController) ReturnFailure(ctx echo.Context) error {
	return c.handleReturn(ctx, types.ReturnActionFailure, "payment_failed")
}

// handleReturn always ends in a redirect. An invalid token or a
// platform lookup failure sends the customer to the generic landing
// page rather than leaking an error response to the browser.
func (c *GatewayController) handleReturn(ctx echo.Context, action, flash string) error {
	req := types.NewReturnRequestFromContext(ctx, action)

	target, err := c.checkoutService.HandleReturn(ctx.Request().Context(), req)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidToken) && !errors.Is(err, service.ErrSessionNotFound) {
			factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("action", action).Error("Handle return failed")
		}
		return ctx.Redirect(http.StatusFound, appendFlash(c.landingURL, "payment_processing"))
	}

	return ctx.Redirect(http.StatusFound, appendFlash(target, flash))
}

func appendFlash(target, flash string) string {
	parsed, err := url.Parse(target)
	if err != nil || target == "" {
		return target
	}

	query := parsed.Query()
	query.Set(flashParam, flash)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func (c *GatewayController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
