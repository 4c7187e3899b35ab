package services

import (
	"context"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
	"github.com/jupiterclapton/krewe/user-service/internal/core/ports"
)

// counterLedger applique les deltas signés aux compteurs dénormalisés des
// entités parentes. Les deltas sont accumulés par parent AVEC multiplicité :
// deux enfants du même parent donnent |delta| = 2 (l'updateMany $in de l'app
// d'origine n'appliquait le décrément qu'une fois par parent, d'où des
// compteurs faux — corrigé ici). L'application est un seul BulkUpdate
// d'incréments atomiques.
type counterLedger struct {
	store ports.Store
}

func newCounterLedger(store ports.Store) *counterLedger {
	return &counterLedger{store: store}
}

// parentDelta accumule les mutations à destination d'UN parent.
type parentDelta struct {
	inc  map[string]int64
	push map[string]any
	pull map[string]any
}

// deltaSet accumule les deltas d'une collection parente, dans l'ordre de
// première apparition (les tests et les logs restent déterministes).
type deltaSet struct {
	order []string
	byID  map[string]*parentDelta
}

func newDeltaSet() *deltaSet {
	return &deltaSet{byID: make(map[string]*parentDelta)}
}

func (ds *deltaSet) get(parentID string) *parentDelta {
	d, ok := ds.byID[parentID]
	if !ok {
		d = &parentDelta{inc: make(map[string]int64)}
		ds.byID[parentID] = d
		ds.order = append(ds.order, parentID)
	}
	return d
}

// Inc cumule un delta signé sur un champ compteur (chemin pointé accepté pour
// le tally de sondage, ex: "poll.2.optA").
func (ds *deltaSet) Inc(parentID, field string, n int64) {
	d := ds.get(parentID)
	d.inc[field] += n
}

// Push ajoute une valeur à un tableau marqueur (likePostBy, votedBy, ...).
// Les valeurs s'accumulent : plusieurs lignes du même parent donnent un
// $push $each côté mongo.
func (ds *deltaSet) Push(parentID, field string, val any) {
	d := ds.get(parentID)
	if d.push == nil {
		d.push = make(map[string]any)
	}
	switch prev := d.push[field].(type) {
	case nil:
		d.push[field] = val
	case []any:
		d.push[field] = append(prev, val)
	default:
		d.push[field] = []any{prev, val}
	}
}

// Pull retire une valeur (ou les éléments matchant un prédicat map). Dans la
// cascade la condition est toujours la même pour un parent donné (l'uid du
// compte), un seul prédicat par champ suffit.
func (ds *deltaSet) Pull(parentID, field string, val any) {
	d := ds.get(parentID)
	if d.pull == nil {
		d.pull = make(map[string]any)
	}
	d.pull[field] = val
}

func (ds *deltaSet) empty() bool { return len(ds.order) == 0 }

// apply écrit les deltas accumulés sur la collection parente.
func (l *counterLedger) apply(ctx context.Context, coll string, ds *deltaSet) error {
	if ds == nil || ds.empty() {
		return nil // précondition manquée : no-op, pas une erreur
	}
	ops := make([]domain.BulkOp, 0, len(ds.order))
	for _, id := range ds.order {
		d := ds.byID[id]
		u := domain.Update{Push: d.push, Pull: d.pull}
		if len(d.inc) > 0 {
			u.Inc = d.inc
		}
		if u.IsZero() {
			continue
		}
		ops = append(ops, domain.BulkOp{
			Filter: domain.Filter{"_id": id},
			Update: u,
		})
	}
	_, err := l.store.BulkUpdate(ctx, coll, ops)
	return err
}
