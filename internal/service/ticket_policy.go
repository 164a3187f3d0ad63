package service

import (
	"fmt"

	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
)

// TransitionPolicy decides whether a ticket may move between two statuses.
// Same-status writes never reach the policy.
type TransitionPolicy interface {
	Name() string
	Allowed(from, to domain.TicketStatus) bool
}

// PermissivePolicy accepts any move between known statuses.
type PermissivePolicy struct{}

func (PermissivePolicy) Name() string { return config.TicketPolicyPermissive }

func (PermissivePolicy) Allowed(_, _ domain.TicketStatus) bool { return true }

// GuardedPolicy enforces an explicit transition table.
type GuardedPolicy struct {
	transitions map[domain.TicketStatus][]domain.TicketStatus
}

// NewGuardedPolicy returns the default guarded table. Closed tickets stay closed.
func NewGuardedPolicy() GuardedPolicy {
	return GuardedPolicy{transitions: map[domain.TicketStatus][]domain.TicketStatus{
		domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusWaiting, domain.TicketStatusResolved, domain.TicketStatusClosed},
		domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusWaiting, domain.TicketStatusResolved, domain.TicketStatusClosed},
		domain.TicketStatusWaiting:    {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
		domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
		domain.TicketStatusClosed:     {},
	}}
}

func (GuardedPolicy) Name() string { return config.TicketPolicyGuarded }

func (p GuardedPolicy) Allowed(from, to domain.TicketStatus) bool {
	for _, candidate := range p.transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// PolicyFromConfig resolves the configured policy name.
func PolicyFromConfig(name string) (TransitionPolicy, error) {
	switch name {
	case "", config.TicketPolicyPermissive:
		return PermissivePolicy{}, nil
	case config.TicketPolicyGuarded:
		return NewGuardedPolicy(), nil
	default:
		return nil, fmt.Errorf("unknown ticket status policy %q", name)
	}
}
