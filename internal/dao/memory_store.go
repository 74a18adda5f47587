package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/upcast-project/upconsent/internal/models"
)

// MemoryStore keeps every collection in process. It backs the emulator mode
// and handler tests. Documents are copied on the way in and out so callers
// never share state with the store.
type MemoryStore struct {
	mu         sync.RWMutex
	requests   map[string]*models.ConsentRequest
	ontologies map[string]*models.Ontology
	users      map[models.Role]map[string]*models.User
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:   make(map[string]*models.ConsentRequest),
		ontologies: make(map[string]*models.Ontology),
		users: map[models.Role]map[string]*models.User{
			models.RoleOwner:     {},
			models.RoleRequester: {},
		},
	}
}

// Stores exposes the memory store through the store interfaces
func (s *MemoryStore) Stores() Stores {
	return Stores{
		Requests:   memoryRequests{s},
		Ontologies: memoryOntologies{s},
		Users:      memoryUsers{s},
	}
}

func clone[T any](v *T) (*T, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to copy document: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to copy document: %w", err)
	}
	return &out, nil
}

type memoryRequests struct{ s *MemoryStore }

func (m memoryRequests) Create(_ context.Context, req *models.ConsentRequest) error {
	doc, err := clone(req)
	if err != nil {
		return err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.requests[req.ID]; exists {
		return fmt.Errorf("consent request already exists: %s", req.ID)
	}
	m.s.requests[req.ID] = doc
	return nil
}

func (m memoryRequests) GetByID(_ context.Context, id string) (*models.ConsentRequest, error) {
	m.s.mu.RLock()
	doc, ok := m.s.requests[id]
	m.s.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}
	return clone(doc)
}

func (m memoryRequests) Update(_ context.Context, req *models.ConsentRequest) error {
	doc, err := clone(req)
	if err != nil {
		return err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.requests[req.ID]; !ok {
		return models.ErrNotFound
	}
	m.s.requests[req.ID] = doc
	return nil
}

func (m memoryRequests) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.requests[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.s.requests, id)
	return nil
}

func (m memoryRequests) List(_ context.Context, filter models.RequestFilter) ([]models.ConsentRequest, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	out := []models.ConsentRequest{}
	for _, doc := range m.s.requests {
		if !matchesFilter(doc, filter) {
			continue
		}
		c, err := clone(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedTime == out[j].CreatedTime {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedTime > out[j].CreatedTime
	})
	return out, nil
}

type memoryOntologies struct{ s *MemoryStore }

func (m memoryOntologies) Create(_ context.Context, ontology *models.Ontology) error {
	doc := *ontology
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, exists := m.s.ontologies[doc.ID]; exists {
		return fmt.Errorf("ontology already exists: %s", doc.ID)
	}
	m.s.ontologies[doc.ID] = &doc
	return nil
}

func (m memoryOntologies) GetByID(_ context.Context, id string) (*models.Ontology, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	doc, ok := m.s.ontologies[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := *doc
	return &out, nil
}

func (m memoryOntologies) List(_ context.Context, uid string) ([]models.Ontology, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	out := []models.Ontology{}
	for _, doc := range m.s.ontologies {
		if uid == "" || doc.IsVisibleTo(uid) {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt > out[j].UploadedAt })
	return out, nil
}

func (m memoryOntologies) Delete(_ context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.ontologies[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.s.ontologies, id)
	return nil
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) collection(role models.Role) (map[string]*models.User, error) {
	users, ok := m.s.users[role]
	if !ok {
		return nil, fmt.Errorf("unknown role: %s", role)
	}
	return users, nil
}

func (m memoryUsers) Create(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	users, err := m.collection(user.Role)
	if err != nil {
		return err
	}
	if _, exists := users[user.UID]; exists {
		return fmt.Errorf("user already exists: %s", user.UID)
	}
	for _, u := range users {
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	doc := *user
	users[doc.UID] = &doc
	return nil
}

func (m memoryUsers) GetByID(_ context.Context, role models.Role, uid string) (*models.User, error) {
	return m.find(role, func(u *models.User) bool { return u.UID == uid })
}

func (m memoryUsers) GetByEmail(_ context.Context, role models.Role, email string) (*models.User, error) {
	return m.find(role, func(u *models.User) bool { return u.Email == email })
}

func (m memoryUsers) FindByAPIToken(_ context.Context, role models.Role, token string) (*models.User, error) {
	if token == "" {
		return nil, models.ErrNotFound
	}
	return m.find(role, func(u *models.User) bool { return u.APIToken == token })
}

func (m memoryUsers) find(role models.Role, match func(*models.User) bool) (*models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	users, err := m.collection(role)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if match(u) {
			out := *u
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m memoryUsers) Update(_ context.Context, user *models.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	users, err := m.collection(user.Role)
	if err != nil {
		return err
	}
	if _, ok := users[user.UID]; !ok {
		return models.ErrNotFound
	}
	doc := *user
	users[doc.UID] = &doc
	return nil
}

func (m memoryUsers) Delete(_ context.Context, role models.Role, uid string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	users, err := m.collection(role)
	if err != nil {
		return err
	}
	if _, ok := users[uid]; !ok {
		return models.ErrNotFound
	}
	delete(users, uid)
	return nil
}

func (m memoryUsers) List(_ context.Context, role models.Role) ([]models.User, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	users, err := m.collection(role)
	if err != nil {
		return nil, err
	}
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}
