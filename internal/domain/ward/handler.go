package ward

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/beds/:id", h.GetBed)
	api.GET("/floors/:floor/beds", h.ListBedsByFloor)
	api.PATCH("/beds/:id/status", h.SetBedStatus)
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	bed, err := h.svc.GetBed(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "bed not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load bed")
	}
	return c.JSON(http.StatusOK, bed)
}

func (h *Handler) ListBedsByFloor(c echo.Context) error {
	floor, err := strconv.Atoi(c.Param("floor"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid floor")
	}
	beds, err := h.svc.ListBedsByFloor(c.Request().Context(), floor)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list beds")
	}
	return c.JSON(http.StatusOK, beds)
}

func (h *Handler) SetBedStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid bed id")
	}
	var body struct {
		Status BedStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	bed, err := h.svc.SetBedStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		var invalid *InvalidTransitionError
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return echo.NewHTTPError(http.StatusNotFound, "bed not found")
		case errors.Is(err, ErrReleaseViaAdmission):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.As(err, &invalid), errors.Is(err, ErrOccupyViaAdmission), errors.Is(err, ErrUnknownStatus):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update bed status")
		}
	}
	return c.JSON(http.StatusOK, bed)
}
