package reconcile

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconciler"
)

// Register registers reconciliation routes
func Register(g *echo.Group) {
	g.POST("", Run)
	g.GET("/gaps", ListGaps)
	g.POST("/gaps/repair", RepairGap)
}

// Run triggers a full reconciliation pass and returns its result
func Run(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, rec, err := ectoinject.GetContext[*reconciler.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "reconciler unavailable")
	}

	result, err := rec.Reconcile(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// ListGaps returns the gaps from the most recent pass
func ListGaps(c echo.Context) error {
	ctx := c.Request().Context()

	_, rec, err := ectoinject.GetContext[*reconciler.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "reconciler unavailable")
	}

	result := rec.LastResult()
	if result == nil {
		return c.JSON(http.StatusOK, []models.MerchantUUIDGap{})
	}

	return c.JSON(http.StatusOK, result.Missing)
}

// RepairGap re-attempts resolution for one gap
func RepairGap(c echo.Context) error {
	ctx := c.Request().Context()

	var gap models.MerchantUUIDGap
	if err := c.Bind(&gap); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid gap payload")
	}
	if gap.RecordID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "record_id is required")
	}

	ctx, rec, err := ectoinject.GetContext[*reconciler.Reconciler](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "reconciler unavailable")
	}

	uuid, err := rec.RepairGap(ctx, gap)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"record_id": gap.RecordID,
		"uuid":      uuid,
		"repaired":  uuid != "",
	})
}
