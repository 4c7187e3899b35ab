package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrEmptyAccountID       = errors.New("account id cannot be empty")
)

// Direction d'une transition de cycle de vie. Reactivate est construit comme
// l'inverse algébrique de Deactivate : mêmes lignes, deltas opposés.
type Direction string

const (
	DirDeactivate Direction = "deactivate"
	DirReactivate Direction = "reactivate"
)

// Inverse retourne la direction opposée.
func (d Direction) Inverse() Direction {
	if d == DirDeactivate {
		return DirReactivate
	}
	return DirDeactivate
}

// Statut tri-état des arêtes d'interaction (connections, share_posts,
// clan_members, saved_news, gifts, wallets). "removed" = retrait volontaire,
// "banned" = retrait par le cycle de vie. La réactivation ne restaure QUE
// "banned" : un unfollow fait avant le ban reste un unfollow.
const (
	StatusActive  = "active"
	StatusRemoved = "removed"
	StatusBanned  = "banned"
	StatusLiked   = "liked" // news_likes utilise liked/removed/banned
)

// Statut du compte lui-même.
const (
	AccountActive      = "active"
	AccountDeactivated = "deactivated"
	AccountSuspended   = "suspended"
)

// Type de compte : un compte "company" appartient à un compte personnel (uid)
// et suit son cycle de vie (récursion bornée à 1, pas de company imbriquée).
const UserTypeCompany = "company"

type User struct {
	ID             string
	Username       string
	Email          string
	Type           string
	OwnerID        string // uid du propriétaire pour un compte company
	AccountStatus  string
	IsActive       bool
	IsDeleted      bool
	IsBanned       bool
	FollowersCount int64
	FollowingCount int64

	// Compteur de notifications non lues + borne de lecture. Le compteur ne
	// reflète une notification que si createdAt > LastNotificationReadAt.
	NotificationCount      int64
	LastNotificationReadAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser crée un compte valide avec son identité générée ici, pas en DB.
func NewUser(username, email string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	now := time.Now().UTC()
	return &User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         strings.ToLower(strings.TrimSpace(email)),
		AccountStatus: AccountActive,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
