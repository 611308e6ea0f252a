// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"assistant-workers/internal/common/validation"
	"assistant-workers/pkg/registry"

	annotatereply "assistant-workers/internal/workers/ai-conversation/annotate-reply"
	resolveproducts "assistant-workers/internal/workers/ai-conversation/resolve-products"
)

const defaultRegistryPath = "configs/activity-registry.json"

// servedTaskTypes are the task types the worker manager registers handlers for.
var servedTaskTypes = []string{annotatereply.TaskType, resolveproducts.TaskType}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		help(out)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "validate":
		fs := pflag.NewFlagSet("validate", pflag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "path to registry file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		n, err := validateRegistry(*path)
		if err != nil {
			return fmt.Errorf("registry validation failed: %w", err)
		}
		fmt.Fprintf(out, "Registry validation passed. Found %d activities.\n", n)

	case "check":
		fs := pflag.NewFlagSet("check", pflag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "path to registry file")
		taskType := fs.String("task", "", "task type whose input schema applies")
		varsFile := fs.String("vars", "", "JSON file holding job variables")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *taskType == "" || *varsFile == "" {
			return fmt.Errorf("check needs --task and --vars")
		}
		if err := checkVariables(*path, *taskType, *varsFile); err != nil {
			return err
		}
		fmt.Fprintf(out, "Variables in %s match the %s input schema.\n", *varsFile, *taskType)

	case "update":
		fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
		path := fs.String("path", defaultRegistryPath, "path to registry file")
		id := fs.String("id", "", "activity ID to update")
		field := fs.String("field", "", "field to update (status, version, timeout, retries, ...)")
		value := fs.String("value", "", "new value for the field")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" || *field == "" || *value == "" {
			return fmt.Errorf("update needs --id, --field and --value")
		}
		if err := updateActivity(*path, *id, *field, *value); err != nil {
			return fmt.Errorf("update activity: %w", err)
		}
		fmt.Fprintf(out, "Updated activity %s, field %s to %s\n", *id, *field, *value)

	case "help":
		help(out)

	default:
		help(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

// validateRegistry checks required fields, compiles every input schema and
// makes sure each served task type is registered.
func validateRegistry(path string) (int, error) {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return 0, err
	}
	if len(reg.Activities) == 0 {
		return 0, fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool)
	for _, activity := range reg.Activities {
		if activity.ID == "" {
			return 0, fmt.Errorf("activity missing required field: ID")
		}
		if ids[activity.ID] {
			return 0, fmt.Errorf("duplicate activity ID: %s", activity.ID)
		}
		ids[activity.ID] = true

		if activity.DisplayName == "" {
			return 0, fmt.Errorf("activity %s missing required field: DisplayName", activity.ID)
		}
		if activity.Category == "" {
			return 0, fmt.Errorf("activity %s missing required field: Category", activity.ID)
		}
		if _, err := activity.TimeoutDuration(); err != nil {
			return 0, err
		}
	}

	if _, err := validation.NewValidator(reg); err != nil {
		return 0, err
	}

	for _, taskType := range servedTaskTypes {
		activity, ok := reg.Find(taskType)
		if !ok {
			return 0, fmt.Errorf("no activity registered for task type %s", taskType)
		}
		if !activity.Implemented() {
			return 0, fmt.Errorf("task type %s is served but marked %q", taskType, activity.ImplementationStatus)
		}
	}
	return len(reg.Activities), nil
}

func checkVariables(path, taskType, varsFile string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}
	if _, ok := reg.Find(taskType); !ok {
		return fmt.Errorf("unknown task type %s", taskType)
	}
	validator, err := validation.NewValidator(reg)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(varsFile)
	if err != nil {
		return fmt.Errorf("read variables: %w", err)
	}
	return validator.ValidateJSON(taskType, string(raw))
}

func updateActivity(path, id, field, value string) error {
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		return err
	}

	var activity *registry.Activity
	for i := range reg.Activities {
		if reg.Activities[i].ID == id {
			activity = &reg.Activities[i]
			break
		}
	}
	if activity == nil {
		return fmt.Errorf("activity with ID %s not found", id)
	}

	switch field {
	case "status":
		activity.ImplementationStatus = value
	case "version":
		activity.Version = value
	case "displayName":
		activity.DisplayName = value
	case "description":
		activity.Description = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		activity.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		activity.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return saveRegistry(reg, path)
}

func saveRegistry(reg *registry.ActivityRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

func help(out io.Writer) {
	fmt.Fprint(out, `
Usage: registry-updater <command> [flags]

Commands:
  validate  Validate the registry file and compile its input schemas
  check     Validate a job variables file against a task type's input schema
  update    Update an existing activity's field
  help      Show this help message

Examples:
  registry-updater validate --path configs/activity-registry.json
  registry-updater check --task annotate-assistant-reply --vars job.json
  registry-updater update --id resolve-catalog-products --field timeout --value 20s
`)
}
