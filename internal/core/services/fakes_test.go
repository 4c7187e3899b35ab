package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jupiterclapton/krewe/user-service/internal/core/domain"
)

// memStore : document store en mémoire avec la même sémantique de filtres et
// d'updates que l'adapter mongo (égalité, appartenance sur champ tableau,
// $in/$exists/$size, $set/$inc (chemins pointés)/$push/$pull). Thread-safe,
// la cascade tourne en goroutines.
type memStore struct {
	mu    sync.Mutex
	colls map[string][]domain.Doc

	// failColl simule une panne sur une collection donnée.
	failColl map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		colls:    make(map[string][]domain.Doc),
		failColl: make(map[string]error),
	}
}

func (m *memStore) insert(coll string, docs ...domain.Doc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colls[coll] = append(m.colls[coll], docs...)
}

// doc retourne une copie du document par id (lecture de vérification).
func (m *memStore) doc(coll, id string) domain.Doc {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.colls[coll] {
		if d.ID() == id {
			return copyDoc(d)
		}
	}
	return nil
}

func (m *memStore) Find(ctx context.Context, coll string, filter domain.Filter, fields ...string) ([]domain.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failColl[coll]; err != nil {
		return nil, err
	}
	var out []domain.Doc
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

func (m *memStore) UpdateMany(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failColl[coll]; err != nil {
		return 0, err
	}
	var n int64
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			applyUpdate(d, update)
			n++
		}
	}
	return n, nil
}

func (m *memStore) BulkUpdate(ctx context.Context, coll string, ops []domain.BulkOp) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failColl[coll]; err != nil {
		return 0, err
	}
	var n int64
	for _, op := range ops {
		for _, d := range m.colls[coll] {
			if matches(d, op.Filter) {
				applyUpdate(d, op.Update)
				n++
				break // sémantique updateOne du bulk
			}
		}
	}
	return n, nil
}

func (m *memStore) FindOneAndUpdate(ctx context.Context, coll string, filter domain.Filter, update domain.Update) (domain.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failColl[coll]; err != nil {
		return nil, err
	}
	for _, d := range m.colls[coll] {
		if matches(d, filter) {
			applyUpdate(d, update)
			return copyDoc(d), nil
		}
	}
	return nil, nil
}

func matches(d domain.Doc, filter domain.Filter) bool {
	for field, pred := range filter {
		val, present := d[field]
		switch p := pred.(type) {
		case domain.InList:
			s, _ := val.(string)
			found := false
			for _, want := range p {
				if s == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case domain.ExistsCheck:
			if present != bool(p) {
				return false
			}
		case domain.SizeIs:
			if len(asSlice(val)) != int(p) {
				return false
			}
		default:
			if arr := asSlice(val); arr != nil {
				// champ tableau : égalité = appartenance
				found := false
				for _, e := range arr {
					if e == pred {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			} else if val != pred {
				return false
			}
		}
	}
	return true
}

func asSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	}
	return nil
}

func applyUpdate(d domain.Doc, u domain.Update) {
	for k, v := range u.Set {
		d[k] = v
	}
	for path, n := range u.Inc {
		incPath(d, path, n)
	}
	for field, v := range u.Push {
		arr := asSlice(d[field])
		if many, ok := v.([]any); ok {
			arr = append(arr, many...)
		} else {
			arr = append(arr, v)
		}
		d[field] = arr
	}
	for field, v := range u.Pull {
		arr := asSlice(d[field])
		kept := make([]any, 0, len(arr))
		for _, e := range arr {
			if !pullMatches(e, v) {
				kept = append(kept, e)
			}
		}
		d[field] = kept
	}
}

func pullMatches(elem, cond any) bool {
	pred, ok := cond.(map[string]any)
	if !ok {
		return elem == cond
	}
	obj, ok := elem.(map[string]any)
	if !ok {
		return false
	}
	for k, want := range pred {
		if obj[k] != want {
			return false
		}
	}
	return true
}

// incPath applique un $inc, chemin pointé compris ("poll.2.optA").
func incPath(d domain.Doc, path string, n int64) {
	parts := strings.Split(path, ".")
	cur := map[string]any(d)
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	leaf := parts[len(parts)-1]
	var prev int64
	switch t := cur[leaf].(type) {
	case int64:
		prev = t
	case int:
		prev = int64(t)
	}
	cur[leaf] = prev + n
}

func copyDoc(d domain.Doc) domain.Doc {
	out := make(domain.Doc, len(d))
	for k, v := range d {
		if arr := asSlice(v); arr != nil {
			out[k] = append([]any(nil), arr...)
		} else {
			out[k] = v
		}
	}
	return out
}

// --- Cache en mémoire (sémantique set + clé simple) ---

type memCache struct {
	mu   sync.Mutex
	sets map[string][]string
	kv   map[string]string
	ttls map[string]time.Duration

	readErr error // panne simulée de SMEMBERS
}

func newMemCache() *memCache {
	return &memCache{
		sets: make(map[string][]string),
		kv:   make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (c *memCache) SetMembers(ctx context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return append([]string(nil), c.sets[key]...), nil
}

func (c *memCache) AddMembers(ctx context.Context, key string, vals []string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing := c.sets[key]
	for _, v := range vals {
		dup := false
		for _, e := range existing {
			if e == v {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, v)
		}
	}
	c.sets[key] = existing
	if ttl > 0 {
		c.ttls[key] = ttl
	}
	return nil
}

func (c *memCache) RemoveMember(ctx context.Context, key, val string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.sets[key][:0]
	for _, e := range c.sets[key] {
		if e != val {
			kept = append(kept, e)
		}
	}
	c.sets[key] = kept
	return nil
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, okSet := c.sets[key]
	_, okKV := c.kv[key]
	return okSet || okKV, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, key)
	delete(c.kv, key)
	delete(c.ttls, key)
	return nil
}

func (c *memCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kv[key] = val
	if ttl > 0 {
		c.ttls[key] = ttl
	}
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv[key], nil
}

func (c *memCache) members(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sets[key]...)
}

func (c *memCache) hasKey(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, okSet := c.sets[key]
	_, okKV := c.kv[key]
	return okSet || okKV
}

// --- Repos typés en mémoire ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		cp := *u
		r.users[u.ID] = &cp
	}
	return r
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FlipLifecycle(ctx context.Context, id string, dir domain.Direction) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return flipUser(u, dir), nil
}

func (r *fakeUserRepo) FlipCompanyOf(ctx context.Context, ownerID string, dir domain.Direction) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Type == domain.UserTypeCompany && u.OwnerID == ownerID {
			return flipUser(u, dir), nil
		}
	}
	return nil, nil
}

// flipUser applique la précondition de la direction ; nil si elle ne matche
// pas (même contrat que l'adapter mongo).
func flipUser(u *domain.User, dir domain.Direction) *domain.User {
	if dir == domain.DirDeactivate {
		if !u.IsActive {
			return nil
		}
		u.IsActive = false
		u.IsDeleted = true
		u.IsBanned = true
		u.AccountStatus = domain.AccountDeactivated
	} else {
		if u.IsActive || !u.IsBanned {
			return nil
		}
		u.IsActive = true
		u.IsDeleted = false
		u.IsBanned = false
		u.AccountStatus = domain.AccountActive
	}
	cp := *u
	return &cp
}

func (r *fakeUserRepo) SetNotificationCount(ctx context.Context, id string, count int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.NotificationCount = count
	return nil
}

func (r *fakeUserRepo) get(id string) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

type fakeNotiRepo struct {
	mu    sync.Mutex
	notis map[string]*domain.Notification
}

func newFakeNotiRepo(notis ...*domain.Notification) *fakeNotiRepo {
	r := &fakeNotiRepo{notis: make(map[string]*domain.Notification)}
	for _, n := range notis {
		r.notis[n.ID] = copyNoti(n)
	}
	return r
}

func copyNoti(n *domain.Notification) *domain.Notification {
	cp := *n
	cp.ActorIDArr = append([]string(nil), n.ActorIDArr...)
	cp.Contributor = append([]string(nil), n.Contributor...)
	return &cp
}

func (r *fakeNotiRepo) FindLive(ctx context.Context, receiverID, actorID, action string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notis {
		if n.ReceiverID == receiverID && n.Action == action && n.IsActive && n.HasActor(actorID) {
			return copyNoti(n), nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

func (r *fakeNotiRepo) FindAuthored(ctx context.Context, actorID string) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.notis {
		if n.IsActive && n.HasActor(actorID) {
			out = append(out, copyNoti(n))
		}
	}
	return out, nil
}

func (r *fakeNotiRepo) Save(ctx context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.notis[n.ID]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	stored.ActorIDArr = append([]string(nil), n.ActorIDArr...)
	stored.Contributor = append([]string(nil), n.Contributor...)
	stored.ContributorCount = n.ContributorCount
	return nil
}

func (r *fakeNotiRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.notis, id)
	return nil
}

func (r *fakeNotiRepo) get(id string) *domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.notis[id]; ok {
		return copyNoti(n)
	}
	return nil
}

// --- Publisher en mémoire ---

type unreadEvent struct {
	receiverID string
	count      int64
	action     string
}

type fakePublisher struct {
	mu        sync.Mutex
	results   []domain.CascadeResult
	lifecycle []string // "accountID:direction"
	unread    []unreadEvent
}

func newFakePublisher() *fakePublisher { return &fakePublisher{} }

func (p *fakePublisher) PublishCascadeResult(ctx context.Context, res domain.CascadeResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, res)
	return nil
}

func (p *fakePublisher) PublishLifecycleChanged(ctx context.Context, accountID string, dir domain.Direction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifecycle = append(p.lifecycle, fmt.Sprintf("%s:%s", accountID, dir))
	return nil
}

func (p *fakePublisher) PublishUnreadChanged(ctx context.Context, receiverID string, count int64, action string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unread = append(p.unread, unreadEvent{receiverID: receiverID, count: count, action: action})
	return nil
}

func (p *fakePublisher) cascadeResults() []domain.CascadeResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.CascadeResult(nil), p.results...)
}

func (p *fakePublisher) lifecycleEvents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lifecycle...)
}

func (p *fakePublisher) unreadEvents() []unreadEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]unreadEvent(nil), p.unread...)
}
