package models

type Periodicity string

const (
	PeriodicityMensual      Periodicity = "MENSUAL"
	PeriodicityAnual        Periodicity = "ANUAL"
	PeriodicityEventual     Periodicity = "EVENTUAL"
	PeriodicityPorOperacion Periodicity = "POR_OPERACION"
)

// AutoGenerates reports whether obligations with this periodicity are picked
// up by the scheduled generator. Eventual and per-operation duties are always
// created by hand.
func (p Periodicity) AutoGenerates() bool {
	return p == PeriodicityMensual || p == PeriodicityAnual
}

type Client struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Taxpayer is an RFC-identified fiscal subject belonging to a client and
// staffed by a team.
type Taxpayer struct {
	ID       string  `json:"id"`
	ClientID string  `json:"client_id"`
	RFC      string  `json:"rfc"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	TeamID   *string `json:"team_id"`
	Active   bool    `json:"active"`
}

// TaxpayerRegime is a regime membership with an optional vigency window.
// Nil bounds are open-ended.
type TaxpayerRegime struct {
	TaxpayerID string  `json:"taxpayer_id"`
	Regime     string  `json:"regime"`
	ValidFrom  *string `json:"valid_from"`
	ValidTo    *string `json:"valid_to"`
}

type Obligation struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ShortName   string      `json:"short_name"`
	Periodicity Periodicity `json:"periodicity"`
	Level       string      `json:"level"`
	Critical    bool        `json:"critical"`
}

// DefaultPriority derives a new task's priority from the obligation.
func (o *Obligation) DefaultPriority() Priority {
	if o.Critical {
		return PriorityAlta
	}
	return PriorityMedia
}

// CalendarRule maps an obligation to its due date. DueMonth nil means a
// monthly rule (due on DueDay of the month after the period); set, it names
// the single month an annual obligation falls due.
type CalendarRule struct {
	ID           string `json:"id"`
	ObligationID string `json:"obligation_id"`
	DueMonth     *int   `json:"due_month"`
	DueDay       int    `json:"due_day"`
}

type Process struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// ProcessStep is an ordered, weighted step template within a process.
// Weights within one process should sum to 100; the catalog owns that
// invariant, the engine does not enforce it.
type ProcessStep struct {
	ID               string `json:"id"`
	ProcessID        string `json:"process_id"`
	Name             string `json:"name"`
	Seq              int    `json:"seq"`
	WeightPct        int    `json:"weight_pct"`
	Tier             *Tier  `json:"tier"`
	ConcurrencyGroup *int   `json:"concurrency_group"`
	EvidenceRequired bool   `json:"evidence_required"`
	Active           bool   `json:"active"`
}
