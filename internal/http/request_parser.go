package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"previsioni/internal/core"
	"previsioni/internal/services"
)

// parseReportRequest reads the now and horizon query parameters. Absent
// parameters are left zero so the service applies its defaults.
func parseReportRequest(q url.Values) (services.ReportRequest, error) {
	var req services.ReportRequest

	if v := strings.TrimSpace(q.Get("now")); v != "" {
		now, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return req, fmt.Errorf("invalid now %q: want YYYY-MM-DD", v)
		}
		req.Now = now
	}

	horizon, err := parseOptionalInt(q, "horizon")
	if err != nil {
		return req, err
	}
	if horizon != nil {
		if *horizon < 1 {
			return req, fmt.Errorf("invalid horizon %d: must be positive", *horizon)
		}
		req.Horizon = *horizon
	}
	return req, nil
}

// parseMonth reads the month query parameter as YYYY-MM. It returns nil
// when the parameter is absent.
func parseMonth(q url.Values) (*core.Month, error) {
	v := strings.TrimSpace(q.Get("month"))
	if v == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q: want YYYY-MM", v)
	}
	return &m, nil
}

func parseOptionalInt(q url.Values, name string) (*int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: not an integer", name, v)
	}
	return &n, nil
}
