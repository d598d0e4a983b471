package access

import (
	"errors"
	"sync/atomic"

	"github.com/unifiprotocol/upcore/internal/types"
)

// ErrPaused rejects value-moving operations while a component is paused.
var ErrPaused = errors.New("paused")

// Pause is an admin-gated kill switch for a component's value-moving entry
// points.
type Pause struct {
	roles  *Registry
	paused atomic.Bool
}

// NewPause returns an unpaused switch gated by the given registry's admin.
func NewPause(roles *Registry) *Pause {
	return &Pause{roles: roles}
}

// Paused reports the current state.
func (p *Pause) Paused() bool {
	return p.paused.Load()
}

// SetPaused pauses the component. Admin only.
func (p *Pause) SetPaused(caller types.Address) error {
	if err := p.roles.Require(RoleAdmin, caller, ErrOnlyAdmin); err != nil {
		return err
	}
	p.paused.Store(true)
	return nil
}

// SetUnpaused resumes the component. Admin only.
func (p *Pause) SetUnpaused(caller types.Address) error {
	if err := p.roles.Require(RoleAdmin, caller, ErrOnlyAdmin); err != nil {
		return err
	}
	p.paused.Store(false)
	return nil
}

// Check returns ErrPaused while paused.
func (p *Pause) Check() error {
	if p.paused.Load() {
		return ErrPaused
	}
	return nil
}
