package admission

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hims/hims/internal/domain/ward"
	"github.com/hims/hims/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/admissions", h.Admit)
	api.POST("/admissions/:id/transfers", h.Transfer)
	api.POST("/admissions/:id/discharge", h.Discharge)
	api.GET("/admissions", h.Search)
	api.GET("/admissions/:id", h.GetByID)
	api.GET("/admissions/number/:number", h.GetByNumber)
	api.GET("/patients/:id/admissions/active", h.GetActiveByPatient)
	api.GET("/floors/:floor/admissions", h.ListByFloor)
}

// httpError translates lifecycle errors into transport responses. Anything
// without a typed kind is a storage or programming fault and goes out as a
// generic 500.
func httpError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		status := http.StatusInternalServerError
		switch e.Kind {
		case KindNotFound:
			status = http.StatusNotFound
		case KindConflict:
			status = http.StatusConflict
		case KindInvalid:
			status = http.StatusBadRequest
		}
		return echo.NewHTTPError(status, map[string]string{
			"code":    e.Code,
			"message": err.Error(),
		})
	}
	var invalid *ward.InvalidTransitionError
	if errors.As(err, &invalid) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func (h *Handler) Admit(c echo.Context) error {
	var req AdmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	adm, err := h.svc.Admit(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, adm)
}

func (h *Handler) Transfer(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid admission id")
	}
	var req TransferRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tr, err := h.svc.Transfer(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tr)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid admission id")
	}
	var req DischargeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, err := h.svc.Discharge(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid admission id")
	}
	adm, err := h.svc.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	adm, err := h.svc.GetByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) GetActiveByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	adm, err := h.svc.GetActiveByPatient(c.Request().Context(), patientID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, adm)
}

func (h *Handler) ListByFloor(c echo.Context) error {
	floor, err := strconv.Atoi(c.Param("floor"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid floor")
	}
	admissions, err := h.svc.ListByFloor(c.Request().Context(), floor, Status(c.QueryParam("status")))
	if err != nil {
		return httpError(err)
	}
	if admissions == nil {
		admissions = []*Admission{}
	}
	return c.JSON(http.StatusOK, admissions)
}

func (h *Handler) Search(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	params := pagination.FromContext(c)

	admissions, total, err := h.svc.Search(c.Request().Context(), f, params.Limit, params.Offset)
	if err != nil {
		return httpError(err)
	}
	if admissions == nil {
		admissions = []*Admission{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(admissions, total, params.Limit, params.Offset))
}

func filterFromQuery(c echo.Context) (Filter, error) {
	var f Filter
	parseID := func(name string, dst **uuid.UUID) error {
		raw := c.QueryParam(name)
		if raw == "" {
			return nil
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return errors.New("invalid " + name)
		}
		*dst = &id
		return nil
	}
	if err := parseID("patient_id", &f.PatientID); err != nil {
		return f, err
	}
	if err := parseID("bed_id", &f.BedID); err != nil {
		return f, err
	}
	if err := parseID("attending_id", &f.AttendingID); err != nil {
		return f, err
	}

	parseTime := func(name string, dst **time.Time) error {
		raw := c.QueryParam(name)
		if raw == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errors.New("invalid " + name + ", want RFC 3339")
		}
		*dst = &t
		return nil
	}
	if err := parseTime("from", &f.From); err != nil {
		return f, err
	}
	if err := parseTime("to", &f.To); err != nil {
		return f, err
	}

	f.Status = Status(c.QueryParam("status"))
	f.Category = Category(c.QueryParam("category"))
	f.Query = c.QueryParam("q")
	return f, nil
}
