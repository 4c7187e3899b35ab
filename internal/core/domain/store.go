package domain

// Primitives du Store Adapter : le store est un document store générique
// (filtres par conjonction, updates $set/$inc/$push/$pull). Les adapters
// (mongo, fake mémoire) doivent implémenter EXACTEMENT la même sémantique.

// Noms des collections (schéma hérité, on n'invente rien)
const (
	CollUsers         = "users"
	CollPosts         = "posts"
	CollComments      = "comments"
	CollReplies       = "replies"
	CollPostLikes     = "post_likes"
	CollCommentLikes  = "comment_likes"
	CollReplyLikes    = "reply_likes"
	CollVotes         = "votes"
	CollSharePosts    = "share_posts"
	CollConnections   = "connections"
	CollClans         = "clans"
	CollClanMembers   = "clan_members"
	CollNewsItems     = "news_items"
	CollNewsLikes     = "news_likes"
	CollSavedNews     = "saved_news"
	CollNotifications = "notifications"
	CollBlocks        = "blocks"
	CollPostHides     = "post_hides"
	CollGiftSummaries = "user_gift_summaries"
	CollWallets       = "wallets"
	CollLoginInfo     = "login_information"
)

// Doc est un document brut tel que retourné par le store.
type Doc map[string]any

// Str lit un champ string (zéro si absent ou mauvais type).
func (d Doc) Str(field string) string {
	v, _ := d[field].(string)
	return v
}

// Strs lit un champ tableau de strings.
func (d Doc) Strs(field string) []string {
	switch v := d[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int64 lit un champ numérique, quel que soit le type concret décodé.
func (d Doc) Int64(field string) int64 {
	switch v := d[field].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// ID retourne l'identifiant du document.
func (d Doc) ID() string { return d.Str("_id") }

// Filter est une conjonction de prédicats champ -> valeur attendue.
// Une valeur simple = égalité (un champ tableau matche par appartenance,
// sémantique mongo). Les wrappers In/Exists/Size couvrent le reste.
type Filter map[string]any

// InList matche si la valeur du champ appartient à la liste ($in).
type InList []string

// ExistsCheck matche sur la présence du champ ($exists).
type ExistsCheck bool

// SizeIs matche un champ tableau de longueur exacte ($size).
type SizeIs int

// In construit un prédicat d'appartenance.
func In(vals ...string) InList { return InList(vals) }

// Update décrit une mise à jour partielle. Inc accepte des chemins pointés
// ("poll.2.optA") pour les compteurs imbriqués du sondage.
type Update struct {
	Set  map[string]any
	Inc  map[string]int64
	Push map[string]any
	Pull map[string]any // valeur scalaire, ou map champ->valeur pour un pull par prédicat
}

// IsZero indique une update vide (à ne jamais envoyer au store).
func (u Update) IsZero() bool {
	return len(u.Set) == 0 && len(u.Inc) == 0 && len(u.Push) == 0 && len(u.Pull) == 0
}

// BulkOp est un couple filtre/update d'un batch bulkWrite.
type BulkOp struct {
	Filter Filter
	Update Update
}
