package models

// Reference types understood by the persistence layer.
const (
	TypeContext  = "Context"
	TypeWorkflow = "Workflow"
	TypeCycle    = "Cycle"
)

// Ref points at another entity by type and identifier. A nil ID encodes
// the unscoped object of that type, e.g. the global context.
type Ref struct {
	ID   *string `json:"id"`
	Type string  `json:"type" validate:"required"`
}

// NewRef returns a reference to the entity of the given type and ID.
func NewRef(typ, id string) Ref {
	return Ref{ID: &id, Type: typ}
}

// GlobalContext is the reference to the unscoped context.
func GlobalContext() Ref {
	return Ref{ID: nil, Type: TypeContext}
}

// IDValue returns the referenced identifier or "" for an unscoped reference.
func (r Ref) IDValue() string {
	if r.ID == nil {
		return ""
	}

	return *r.ID
}

// IsGlobal reports whether the reference has no identifier.
func (r Ref) IsGlobal() bool {
	return r.ID == nil
}

func (r Ref) clone() Ref {
	if r.ID == nil {
		return r
	}

	id := *r.ID

	return Ref{ID: &id, Type: r.Type}
}
