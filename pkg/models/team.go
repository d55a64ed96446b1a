package models

type GlobalRole string

const (
	RoleAdmin       GlobalRole = "ADMIN"
	RoleSocio       GlobalRole = "SOCIO"
	RoleLiderGlobal GlobalRole = "LIDER"
	RoleAuditor     GlobalRole = "AUDITOR"
	RoleColaborador GlobalRole = "COLABORADOR"
)

type TeamRole string

const (
	RoleLider     TeamRole = "LIDER"
	RoleAuxiliarA TeamRole = "AUXILIAR_A"
	RoleAuxiliarB TeamRole = "AUXILIAR_B"
	RoleAuxiliarC TeamRole = "AUXILIAR_C"
)

type User struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   GlobalRole `json:"role"`
	Active bool       `json:"active"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TeamMember binds a user to a team with a role. A role usually holds one
// titular member and optionally a substitute.
type TeamMember struct {
	TeamID        string   `json:"team_id"`
	UserID        string   `json:"user_id"`
	TeamRole      TeamRole `json:"team_role"`
	IsSubstitute  bool     `json:"is_substitute"`
	SubstituteFor *string  `json:"substitute_for,omitempty"`
	Active        bool     `json:"active"`
}
