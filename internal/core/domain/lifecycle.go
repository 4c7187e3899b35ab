package domain

import "time"

// CascadeResult est le signal fire-and-forget émis après chaque opération de
// la cascade : un booléen de succès, rien de plus. Les intégrations qui
// veulent davantage relisent le store.
type CascadeResult struct {
	AccountID string    `json:"account_id"`
	Operation string    `json:"operation"`
	Direction Direction `json:"direction"`
	OK        bool      `json:"ok"`
	At        time.Time `json:"at"`
}

// RelationKind identifie un des sets du cache de relations.
type RelationKind string

const (
	RelationBlocked     RelationKind = "blocked"
	RelationFollowed    RelationKind = "followed"
	RelationClanMember  RelationKind = "clanMember"
	RelationHiddenPosts RelationKind = "hiddenPosts"
	RelationSuspended   RelationKind = "suspended" // set global, pas par compte
)
