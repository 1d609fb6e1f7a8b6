package models

import (
	"github.com/google/uuid"
)

// Player represents a draftable real-world player. DraftedBy is set the
// moment a won auction settles; availability is simply DraftedBy == nil.
type Player struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	Team      string     `json:"team,omitempty"`
	DraftedBy *uuid.UUID `json:"drafted_by,omitempty"`
}

// Available reports whether the player can still be nominated.
func (p *Player) Available() bool {
	return p.DraftedBy == nil
}
