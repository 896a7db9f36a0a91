package models

import (
	"fmt"

	dErrors "prereg/pkg/domain-errors"
)

// Edge is one permitted status transition. Trigger names the business event
// behind it and is reported in errors and audit events. When RequiredRoles is
// non-empty the caller must hold at least one of them.
type Edge struct {
	From          Status
	To            Status
	Trigger       string
	RequiredRoles []Role
}

// DefaultEdges is the standard pre-registration lifecycle. CONSUMED has no
// outgoing edges.
func DefaultEdges() []Edge {
	return []Edge{
		{From: StatusIncomplete, To: StatusPendingAppointment, Trigger: "payload completed"},
		{From: StatusPendingAppointment, To: StatusBooked, Trigger: "appointment reserved"},
		{From: StatusPendingAppointment, To: StatusIncomplete, Trigger: "required field removed"},
		{From: StatusBooked, To: StatusPendingAppointment, Trigger: "appointment canceled"},
		{From: StatusBooked, To: StatusExpired, Trigger: "slot elapsed", RequiredRoles: PrivilegedRoles},
		{From: StatusBooked, To: StatusConsumed, Trigger: "enrollment completed", RequiredRoles: PrivilegedRoles},
		{From: StatusExpired, To: StatusPendingAppointment, Trigger: "re-booked"},
	}
}

type edgeKey struct {
	from Status
	to   Status
}

// Machine validates status transitions against an edge table. It holds no
// per-application state and is safe for concurrent use.
type Machine struct {
	edges map[edgeKey]Edge
	order []Edge
}

// NewMachine builds a Machine from edges. Unknown statuses, self loops and
// duplicate edges are rejected.
func NewMachine(edges []Edge) (*Machine, error) {
	m := &Machine{edges: make(map[edgeKey]Edge, len(edges))}
	for _, e := range edges {
		if !e.From.IsValid() || !e.To.IsValid() {
			return nil, fmt.Errorf("edge %s -> %s: unknown status", e.From, e.To)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("edge %s -> %s: self transition", e.From, e.To)
		}
		key := edgeKey{from: e.From, to: e.To}
		if _, dup := m.edges[key]; dup {
			return nil, fmt.Errorf("edge %s -> %s: duplicate", e.From, e.To)
		}
		m.edges[key] = e
		m.order = append(m.order, e)
	}
	return m, nil
}

// DefaultMachine returns a Machine over DefaultEdges.
func DefaultMachine() *Machine {
	m, err := NewMachine(DefaultEdges())
	if err != nil {
		panic(err)
	}
	return m
}

// Allows reports whether the edge exists, ignoring roles.
func (m *Machine) Allows(from, to Status) bool {
	_, ok := m.edges[edgeKey{from: from, to: to}]
	return ok
}

// Trigger returns the business event behind the edge, or "" when the edge
// does not exist.
func (m *Machine) Trigger(from, to Status) string {
	return m.edges[edgeKey{from: from, to: to}].Trigger
}

// Edges returns the table in declaration order.
func (m *Machine) Edges() []Edge {
	return append([]Edge(nil), m.order...)
}

// Transition checks whether a caller holding roles may move an application
// from current to requested, and returns the resulting status.
//
// Missing edges fail with CodeInvalidTransition; edges whose role
// requirement is unmet fail with CodeForbidden.
func (m *Machine) Transition(current, requested Status, roles RoleSet) (Status, error) {
	if !requested.IsValid() {
		return current, dErrors.New(dErrors.CodeValidation, "unknown status code: "+requested.String())
	}
	edge, ok := m.edges[edgeKey{from: current, to: requested}]
	if !ok {
		return current, NewInvalidTransitionError(current, requested)
	}
	if len(edge.RequiredRoles) > 0 && !roles.HasAny(edge.RequiredRoles...) {
		return current, dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("transition %s -> %s%s requires one of %v", current, requested, describeTrigger(edge.Trigger), edge.RequiredRoles))
	}
	return requested, nil
}

// InvalidTransitionError describes an edge missing from the table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not permitted", e.From, e.To)
}

// NewInvalidTransitionError wraps the transition detail in a domain error so
// transports see CodeInvalidTransition while callers can still errors.As the
// detail out.
func NewInvalidTransitionError(from, to Status) error {
	detail := &InvalidTransitionError{From: from, To: to}
	return dErrors.Wrap(detail, dErrors.CodeInvalidTransition,
		fmt.Sprintf("cannot change status from %s to %s", from, to))
}

func describeTrigger(trigger string) string {
	if trigger == "" {
		return ""
	}
	return " (" + trigger + ")"
}
