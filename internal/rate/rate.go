// Package rate implements the coordinator's rate-string grammar and a
// sliding-window dispatch counter, per spec §4.1 and §6.
package rate

import (
	"strconv"
	"strings"
	"time"

	"github.com/me/coordinate/pkg/model"
)

// Parse parses a rate expression of the form "<int>/<unit>" where unit
// is one of "sec", "min", "hour", or a bare integer number of seconds.
// Examples: "60/min" -> (60, 60s); "1000/hour" -> (1000, 1h);
// "10/sec" -> (10, 1s); "3/60" -> (3, 60s).
func Parse(expr string) (count int, window time.Duration, err error) {
	parts := strings.SplitN(expr, "/", 2)
	if len(parts) != 2 {
		return 0, 0, model.NewRateFormatError(expr)
	}

	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || n < 0 {
		return 0, 0, model.NewRateFormatError(expr)
	}

	unit := strings.TrimSpace(parts[1])
	switch strings.ToLower(unit) {
	case "sec":
		return n, time.Second, nil
	case "min":
		return n, time.Minute, nil
	case "hour":
		return n, time.Hour, nil
	default:
		secs, err := strconv.Atoi(unit)
		if err != nil || secs <= 0 {
			return 0, 0, model.NewRateFormatError(expr)
		}
		return n, time.Duration(secs) * time.Second, nil
	}
}
