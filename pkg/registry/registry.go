// pkg/registry/registry.go

// Package registry reads the activity registry that catalogs every worker:
// its task type, input/output schemas, error codes, and workflow membership.
package registry

import (
	"encoding/json"
	"os"
)

// LoadRegistry parses the registry JSON file at path.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// FindByID returns the activity with the given ID.
func (r *ActivityRegistry) FindByID(id string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// FindByTaskType returns the activity registered for a Camunda task type.
func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

// TaskTypes returns the set of registered Camunda task types.
func (r *ActivityRegistry) TaskTypes() map[string]bool {
	types := make(map[string]bool, len(r.Activities))
	for _, activity := range r.Activities {
		types[activity.TaskType] = true
	}
	return types
}
