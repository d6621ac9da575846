package merchant

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/interaction"
	"github.com/Ramsey-B/clover/internal/repositories/mailthread"
	"github.com/Ramsey-B/clover/internal/repositories/merchantaggregate"
	"github.com/Ramsey-B/clover/pkg/cache"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Register registers merchant read routes
func Register(g *echo.Group) {
	g.GET("/resolve", Resolve)
	g.GET("/:profileID", GetAggregate)
	g.GET("/:profileID/interactions", ListInteractions)
	g.GET("/threads/:threadID", GetThread)
}

// Resolve looks a contact identifier up through the cache tiers
func Resolve(c echo.Context) error {
	ctx := c.Request().Context()

	identifier := c.QueryParam("identifier")
	idType := models.IdentifierType(c.QueryParam("type"))
	if identifier == "" || !idType.Valid() {
		return httperror.NewHTTPError(http.StatusBadRequest, "identifier and type query params are required")
	}

	ctx, tiers, err := ectoinject.GetContext[*cache.MultiTier](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "cache unavailable")
	}

	entry, err := tiers.Lookup(ctx, identifier, idType)
	if err != nil {
		return err
	}
	if entry == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no profile matches identifier")
	}

	return c.JSON(http.StatusOK, entry)
}

// GetAggregate returns the merchant's ledger aggregate row
func GetAggregate(c echo.Context) error {
	ctx := c.Request().Context()
	profileID := c.Param("profileID")

	ctx, repo, err := ectoinject.GetContext[*merchantaggregate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	aggregate, err := repo.Get(ctx, profileID)
	if err != nil {
		return err
	}
	if aggregate == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "merchant not found")
	}

	return c.JSON(http.StatusOK, aggregate)
}

// ListInteractions returns recent interactions for a merchant
func ListInteractions(c echo.Context) error {
	ctx := c.Request().Context()
	profileID := c.Param("profileID")

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*interaction.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	interactions, err := repo.ListByProfile(ctx, profileID, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, interactions)
}

// GetThread returns one mail thread row
func GetThread(c echo.Context) error {
	ctx := c.Request().Context()
	threadID := c.Param("threadID")

	ctx, repo, err := ectoinject.GetContext[*mailthread.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	thread, err := repo.Get(ctx, threadID)
	if err != nil {
		return err
	}
	if thread == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "thread not found")
	}

	return c.JSON(http.StatusOK, thread)
}
