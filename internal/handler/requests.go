package handler

import (
	"fmt"

	"vaulttrail/internal/activity"
)

type logActivityRequest struct {
	Type        activity.Type    `json:"type"`
	Description string           `json:"description"`
	Status      activity.Status  `json:"status,omitempty"`
	Details     map[string]any   `json:"details,omitempty"`
	UserDID     string           `json:"userDid,omitempty"`
	SubSteps    []subStepRequest `json:"subSteps,omitempty"`
}

func (r logActivityRequest) validate() error {
	if r.Type == "" {
		return fmt.Errorf("type is required")
	}
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type subStepRequest struct {
	Description string                 `json:"description"`
	Status      activity.SubStepStatus `json:"status,omitempty"`
	Details     map[string]any         `json:"details,omitempty"`
}

func (r subStepRequest) validate() error {
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

type completeActivityRequest struct {
	Status activity.Status `json:"status,omitempty"`
}

type logActivityResponse struct {
	ID string `json:"id"`
}

type listActivitiesResponse struct {
	Activities []activity.Log `json:"activities"`
	Count      int            `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}
