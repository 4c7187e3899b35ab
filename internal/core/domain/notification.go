package domain

import "time"

// ContributorSlots est la capacité de la liste "contributor" : le sous-ensemble
// d'acteurs dont les avatars sont affichés sur une notification agrégée.
const ContributorSlots = 2

// Notification agrégée : tous les acteurs dans ActorIDArr (ordre d'insertion),
// les avatars affichés dans Contributor. Invariants maintenus par le
// compacteur : Contributor ⊆ ActorIDArr et ContributorCount == len(ActorIDArr).
type Notification struct {
	ID               string
	ReceiverID       string // uid
	ActorID          string // premier acteur (actorid)
	Action           string // follow, like, ...
	ActorIDArr       []string
	Contributor      []string
	ContributorCount int64
	IsActive         bool
	IsBanned         bool
	CreatedAt        time.Time
}

// HasActor indique si l'acteur figure encore dans la liste agrégée.
func (n *Notification) HasActor(actorID string) bool {
	for _, id := range n.ActorIDArr {
		if id == actorID {
			return true
		}
	}
	return false
}
