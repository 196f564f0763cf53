// Package events defines the typed notifications emitted by the graph store,
// selection model and persistence gateway.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/flowdeck/pkg/models"
)

type EventType string

// Topic is the single stream every graph event is published to.
const Topic = "flowdeck.graph.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Graph mutation events.
	NodeAddedEvent                   EventType = "node.added"
	NodeUpdatedEvent                 EventType = "node.updated"
	NodeRemovedEvent                 EventType = "node.removed"
	InputNodeCreatedEvent            EventType = "node.input.created"
	InputNodeDeletionAttemptedEvent  EventType = "node.input.deletion_attempted"
	LinkAddedEvent                   EventType = "link.added"
	LinkUpdatedEvent                 EventType = "link.updated"
	LinkRemovedEvent                 EventType = "link.removed"
	GroupCreatedEvent                EventType = "group.created"
	GroupUpdatedEvent                EventType = "group.updated"
	GroupRemovedEvent                EventType = "group.removed"
	AnnotationAddedEvent             EventType = "annotation.added"
	AnnotationUpdatedEvent           EventType = "annotation.updated"
	AnnotationRemovedEvent           EventType = "annotation.removed"
	StateChangedEvent                EventType = "state.changed"

	// Selection events.
	SelectionChangedEvent EventType = "selection.changed"

	// Persistence events.
	DataSavedEvent                 EventType = "persistence.saved"
	SaveErrorEvent                 EventType = "persistence.save_error"
	DestructiveChangeDetectedEvent EventType = "persistence.destructive_change"
	DataLoadedEvent                EventType = "persistence.loaded"
	BackupRestoredEvent            EventType = "persistence.backup_restored"

	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunFinishedEvent  EventType = "run.finished"
	NodeExecutedEvent EventType = "run.node_executed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Flowchart string         `json:"flowchart"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, flowchart string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Flowchart: flowchart,
		Metadata:  make(map[string]any),
	}
}

// Graph mutation events

type NodeAdded struct {
	BaseEvent

	Node *models.Node `json:"node"`
}

func (e NodeAdded) GetType() EventType { return NodeAddedEvent }

type NodeUpdated struct {
	BaseEvent

	Node *models.Node `json:"node"`
}

func (e NodeUpdated) GetType() EventType { return NodeUpdatedEvent }

type NodeRemoved struct {
	BaseEvent

	Node *models.Node `json:"node"`
}

func (e NodeRemoved) GetType() EventType { return NodeRemovedEvent }

// InputNodeCreated signals completion of the asynchronous companion
// enrichment started by adding or updating a python node.
type InputNodeCreated struct {
	BaseEvent

	InputNode *models.Node `json:"input_node"`
	TargetID  string       `json:"target_id"`
}

func (e InputNodeCreated) GetType() EventType { return InputNodeCreatedEvent }

// InputNodeDeletionAttempted fires when a caller tries to delete a protected
// input node without force.
type InputNodeDeletionAttempted struct {
	BaseEvent

	NodeID   string `json:"node_id"`
	TargetID string `json:"target_id"`
}

func (e InputNodeDeletionAttempted) GetType() EventType { return InputNodeDeletionAttemptedEvent }

type LinkAdded struct {
	BaseEvent

	Link *models.Link `json:"link"`
}

func (e LinkAdded) GetType() EventType { return LinkAddedEvent }

type LinkUpdated struct {
	BaseEvent

	Link *models.Link `json:"link"`
}

func (e LinkUpdated) GetType() EventType { return LinkUpdatedEvent }

type LinkRemoved struct {
	BaseEvent

	Link *models.Link `json:"link"`
}

func (e LinkRemoved) GetType() EventType { return LinkRemovedEvent }

type GroupCreated struct {
	BaseEvent

	Group *models.Group `json:"group"`
}

func (e GroupCreated) GetType() EventType { return GroupCreatedEvent }

type GroupUpdated struct {
	BaseEvent

	Group *models.Group `json:"group"`
}

func (e GroupUpdated) GetType() EventType { return GroupUpdatedEvent }

type GroupRemoved struct {
	BaseEvent

	Group *models.Group `json:"group"`
}

func (e GroupRemoved) GetType() EventType { return GroupRemovedEvent }

type AnnotationAdded struct {
	BaseEvent

	Annotation *models.Annotation `json:"annotation"`
}

func (e AnnotationAdded) GetType() EventType { return AnnotationAddedEvent }

type AnnotationUpdated struct {
	BaseEvent

	Annotation *models.Annotation `json:"annotation"`
}

func (e AnnotationUpdated) GetType() EventType { return AnnotationUpdatedEvent }

type AnnotationRemoved struct {
	BaseEvent

	Annotation *models.Annotation `json:"annotation"`
}

func (e AnnotationRemoved) GetType() EventType { return AnnotationRemovedEvent }

// StateChanged is the coarse-grained "something mutated" signal that follows
// every successful mutation. Renderers that don't care which entity changed
// subscribe to this one.
type StateChanged struct {
	BaseEvent
}

func (e StateChanged) GetType() EventType { return StateChangedEvent }

// Selection events

type SelectionChanged struct {
	BaseEvent

	NodeIDs      []string `json:"node_ids"`
	LinkSource   string   `json:"link_source,omitempty"`
	LinkTarget   string   `json:"link_target,omitempty"`
	GroupID      string   `json:"group_id,omitempty"`
	AnnotationID string   `json:"annotation_id,omitempty"`
}

func (e SelectionChanged) GetType() EventType { return SelectionChangedEvent }

// Persistence events

type DataSaved struct {
	BaseEvent

	IsAutosave bool `json:"is_autosave"`
	NodeCount  int  `json:"node_count"`
}

func (e DataSaved) GetType() EventType { return DataSavedEvent }

type SaveError struct {
	BaseEvent

	Error string `json:"error"`
}

func (e SaveError) GetType() EventType { return SaveErrorEvent }

/// DestructiveChangeDetected is a decision point, not a failure: the caller
// must either restore the latest backup or force the save.
type DestructiveChangeDetected struct {
	BaseEvent

	ExistingNodes int     `json:"existing_nodes"`
	IncomingNodes int     `json:"incoming_nodes"`
	Threshold     float64 `json:"threshold"`
}

func (e DestructiveChangeDetected) GetType() EventType { return DestructiveChangeDetectedEvent }

type DataLoaded struct {
	BaseEvent

	NodeCount int `json:"node_count"`
}

func (e DataLoaded) GetType() EventType { return DataLoadedEvent }

type BackupRestored struct {
	BaseEvent

	BackupID string `json:"backup_id"`
}

func (e BackupRestored) GetType() EventType { return BackupRestoredEvent }

// Run lifecycle events

type RunStarted struct {
	BaseEvent

	RunID string `json:"run_id"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunFinished struct {
	BaseEvent

	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

func (e RunFinished) GetType() EventType { return RunFinishedEvent }

type NodeExecuted struct {
	BaseEvent

	RunID  string             `json:"run_id"`
	Result *models.NodeResult `json:"result"`
}

func (e NodeExecuted) GetType() EventType { return NodeExecutedEvent }
