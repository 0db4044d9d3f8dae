package domain

import "github.com/smallbiznis/premium/internal/reference"

const (
	EventFeatureAssigned             = "featureAssigned"
	EventFeatureRemoved              = "featureRemoved"
	EventFeatureDefaultConfigUpdated = "featureDefaultConfigUpdated"
)

// Task names understood by the worker.
const (
	TaskAssign            = "feature.assign"
	TaskRemove            = "feature.remove"
	TaskReconcileDefaults = "feature.reconcile_defaults"
)

type AssignedEvent struct {
	Assignment *Assignment `json:"assignment"`
}

type RemovedEvent struct {
	Owner   reference.Ref `json:"owner"`
	Feature string        `json:"feature"`
	Params  Params        `json:"params"`
	Source  reference.Ref `json:"source"`
	UserID  int64         `json:"user_id"`
}

type DefaultsUpdatedEvent struct {
	Feature string `json:"feature"`
	UserID  int64  `json:"user_id"`
	Updated int    `json:"updated"`
	Failed  int    `json:"failed"`
}
