package httpapi

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/farmtech/irrigation-advisor/internal/advisor"
	"github.com/farmtech/irrigation-advisor/internal/irrigation"
	"github.com/farmtech/irrigation-advisor/internal/metrics"
	"github.com/farmtech/irrigation-advisor/internal/store"
)

var validate = validator.New()

// ReportReader is satisfied by *store.MemoryStore.
type ReportReader interface {
	GetLatest(source advisor.Source, location string) (advisor.Report, error)
	GetRange(source advisor.Source, location string, from, to time.Time) ([]advisor.Report, error)
	Latest() []advisor.Report
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, reports ReportReader, m *metrics.Metrics) {
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/reports", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"reports": reports.Latest()})
	})

	v1.Get("/reports/latest", func(c *fiber.Ctx) error {
		q, err := parseReportQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := reports.GetLatest(q.source(), q.Location)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no report for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read reports")
		}
		return c.JSON(report)
	})

	v1.Get("/reports/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		list, err := reports.GetRange(req.Report.source(), req.Report.Location, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no reports for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read reports")
		}

		return c.JSON(fiber.Map{
			"source":   req.Report.Source,
			"location": req.Report.Location,
			"from":     req.From,
			"to":       req.To,
			"reports":  list,
		})
	})

	v1.Post("/evaluate/rain", func(c *fiber.Ctx) error {
		return respondDecision(c, irrigation.RuleWeather, irrigation.EvaluateRain)
	})

	v1.Post("/evaluate/soil", func(c *fiber.Ctx) error {
		return respondDecision(c, irrigation.RuleSoil, irrigation.EvaluateSoil)
	})
}

// respondDecision binds the body and evaluates it. A value of the wrong type
// is insufficient data, like a missing one; only broken JSON is a 400.
func respondDecision[T any](c *fiber.Ctx, rule irrigation.Rule, eval func(T) (irrigation.Decision, error)) error {
	var in T
	if err := c.BodyParser(&in); err != nil {
		var ute *json.UnmarshalTypeError
		if !errors.As(err, &ute) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		return insufficientData(c, irrigation.Unknown(rule), &irrigation.InsufficientDataError{
			Rule:   rule,
			Fields: []string{ute.Field},
		})
	}

	d, err := eval(in)
	if err != nil {
		var ide *irrigation.InsufficientDataError
		if errors.As(err, &ide) {
			return insufficientData(c, d, ide)
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(d)
}

func insufficientData(c *fiber.Ctx, d irrigation.Decision, ide *irrigation.InsufficientDataError) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error":    true,
		"message":  ide.Error(),
		"fields":   ide.Fields,
		"decision": d,
	})
}

// reportQuery identifies one report history.
type reportQuery struct {
	Source   string `validate:"required,oneof=weather soil"`
	Location string `validate:"required"`
}

func (q reportQuery) source() advisor.Source {
	return advisor.Source(q.Source)
}

func parseReportQuery(c *fiber.Ctx) (reportQuery, error) {
	q := reportQuery{
		Source:   c.Query("source"),
		Location: c.Query("location"),
	}
	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Report reportQuery
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	q, err := parseReportQuery(c)
	if err != nil {
		return err
	}
	h.Report = q

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime accepts RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
