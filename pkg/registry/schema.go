// pkg/registry/schema.go
package registry

import (
	"fmt"
	"time"
)

const StatusImplemented = "implemented"

// ActivityRegistry is the document in configs/activity-registry.json.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity describes one job type: its JSON schemas, the BPMN error codes it
// may throw and its retry budget.
type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Tags                 []string               `json:"tags"`
}

// Implemented reports whether the activity is served by a worker.
func (a *Activity) Implemented() bool {
	return a.ImplementationStatus == StatusImplemented
}

// TimeoutDuration parses Timeout. An empty value yields zero.
func (a *Activity) TimeoutDuration() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("activity %s: invalid timeout %q", a.ID, a.Timeout)
	}
	if d <= 0 {
		return 0, fmt.Errorf("activity %s: timeout must be positive", a.ID)
	}
	return d, nil
}
