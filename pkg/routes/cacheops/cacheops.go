package cacheops

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Register registers cache operation routes
func Register(g *echo.Group) {
	g.POST("/invalidate", Invalidate)
	g.POST("/warmup", WarmUp)
}

// InvalidateRequest names the identifier whose cached entry should be
// dropped from both tiers.
type InvalidateRequest struct {
	Identifier string                `json:"identifier" validate:"required"`
	Type       models.IdentifierType `json:"type" validate:"required"`
}

// Invalidate drops an identifier's entry from both tiers
func Invalidate(c echo.Context) error {
	ctx := c.Request().Context()

	var req InvalidateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid invalidate payload")
	}
	if req.Identifier == "" || !req.Type.Valid() {
		return httperror.NewHTTPError(http.StatusBadRequest, "identifier and type are required")
	}

	ctx, tiers, err := ectoinject.GetContext[*cache.MultiTier](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "cache unavailable")
	}

	if err := tiers.Invalidate(ctx, req.Identifier, req.Type); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "invalidated"})
}

// WarmUp bulk-loads known identifier mappings into both tiers
func WarmUp(c echo.Context) error {
	ctx := c.Request().Context()

	var mappings []cache.WarmMapping
	if err := c.Bind(&mappings); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid warm-up payload")
	}

	ctx, tiers, err := ectoinject.GetContext[*cache.MultiTier](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "cache unavailable")
	}

	warmed := tiers.WarmUp(ctx, mappings)

	return c.JSON(http.StatusOK, map[string]any{
		"requested": len(mappings),
		"warmed":    warmed,
	})
}
