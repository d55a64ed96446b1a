package models

import "time"

type EventType string

const (
	EventCambioEstado      EventType = "cambio_estado"
	EventAsignacion        EventType = "asignacion"
	EventReasignacion      EventType = "reasignacion"
	EventReasignacionAuto  EventType = "reasignacion_automatica"
	EventEvidencia         EventType = "evidencia"
	EventValidacion        EventType = "validacion"
	EventGeneracion        EventType = "generacion"
	EventDeteccionRiesgo   EventType = "deteccion_riesgo"
)

// TaskEvent is an append-only audit record of a significant task action.
// ActorID is nil for system-originated events.
type TaskEvent struct {
	ID         string     `json:"id"`
	TaskID     string     `json:"task_id"`
	EventType  EventType  `json:"event_type"`
	ActorID    *string    `json:"actor_id"`
	OldState   *TaskState `json:"old_state,omitempty"`
	NewState   *TaskState `json:"new_state,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
