package database

import (
	"context"
	"fmt"
	"strings"
)

// Checker is a backend that can report its own readiness.
type Checker interface {
	Name() string
	Ping(ctx context.Context) error
}

// PingAll pings every checker and returns per-backend status plus an error
// naming the failed ones.
func PingAll(ctx context.Context, checkers ...Checker) (map[string]string, error) {
	status := make(map[string]string, len(checkers))
	var failed []string
	for _, c := range checkers {
		if c == nil {
			continue
		}
		if err := c.Ping(ctx); err != nil {
			status[c.Name()] = err.Error()
			failed = append(failed, c.Name())
			continue
		}
		status[c.Name()] = "ok"
	}
	if len(failed) > 0 {
		return status, fmt.Errorf("unhealthy backends: %s", strings.Join(failed, ", "))
	}
	return status, nil
}
