package models

import "time"

type TaskState string

const (
	StatePendiente          TaskState = "pendiente"
	StateEnCurso            TaskState = "en_curso"
	StatePendienteEvidencia TaskState = "pendiente_evidencia"
	StateEnValidacion       TaskState = "en_validacion"
	StateBloqueadoCliente   TaskState = "bloqueado_cliente"
	StatePresentado         TaskState = "presentado"
	StatePagado             TaskState = "pagado"
	StateCerrado            TaskState = "cerrado"
	StateRechazado          TaskState = "rechazado"
)

// ActiveStates are the states in which a task is still being worked and may be
// reassigned. Everything else is terminal.
func ActiveStates() []TaskState {
	return []TaskState{
		StatePendiente,
		StateEnCurso,
		StatePendienteEvidencia,
		StateEnValidacion,
		StateBloqueadoCliente,
	}
}

func (s TaskState) IsTerminal() bool {
	switch s {
	case StatePresentado, StatePagado, StateCerrado, StateRechazado:
		return true
	}
	return false
}

func (s TaskState) Valid() bool {
	switch s {
	case StatePendiente, StateEnCurso, StatePendienteEvidencia, StateEnValidacion,
		StateBloqueadoCliente, StatePresentado, StatePagado, StateCerrado, StateRechazado:
		return true
	}
	return false
}

type RiskLevel string

const (
	RiskAlto  RiskLevel = "ALTO"
	RiskMedio RiskLevel = "MEDIO"
	RiskBajo  RiskLevel = "BAJO"
)

type Priority string

const (
	PriorityAlta  Priority = "ALTA"
	PriorityMedia Priority = "MEDIA"
	PriorityBaja  Priority = "BAJA"
)

// Task is one unit of obligation fulfillment for one taxpayer in one fiscal
// period. At most one task exists per (taxpayer, obligation, period).
type Task struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	TaxpayerID   string     `json:"taxpayer_id"`
	ObligationID string     `json:"obligation_id"`
	FiscalYear   int        `json:"fiscal_year"`
	Period       string     `json:"period"`
	OfficialDue  string     `json:"official_due"`
	InternalDue  string     `json:"internal_due"`
	State        TaskState  `json:"state"`
	Risk         RiskLevel  `json:"risk"`
	Priority     Priority   `json:"priority"`
	AtRisk       bool       `json:"at_risk"`
	AssigneeID   *string    `json:"assignee_id"`
	ReviewerID   *string    `json:"reviewer_id"`
	PresentedAt  *time.Time `json:"presented_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Helper fields for joined queries
	TaxpayerRFC    string `json:"taxpayer_rfc,omitempty"`
	ObligationName string `json:"obligation_name,omitempty"`
}
