package service

import (
	"sync"
	"time"

	"github.com/telemetrix/esp32-backend/internal/domain"
	"github.com/telemetrix/esp32-backend/internal/repository"
)

type inMemoryUserRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{nextID: 1, byID: map[uint]*domain.User{}}
}

func (r *inMemoryUserRepo) Create(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.ID = r.nextID
	r.nextID++
	u.RegisteredAt = time.Now()
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) FindByID(id uint) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) FindByEmail(email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *inMemoryUserRepo) FindActiveByEmail(email string) (*domain.User, error) {
	u, err := r.FindByEmail(email)
	if err != nil || !u.Active {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *inMemoryUserRepo) Update(u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	r.byID[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) UpdatePassword(id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *inMemoryUserRepo) SetActive(id uint, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Active = active
	return nil
}

func (r *inMemoryUserRepo) TouchLastAccess(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	now := time.Now()
	u.LastAccessAt = &now
	return nil
}

func (r *inMemoryUserRepo) ListPaged(page repository.PageRequest, search string) (*repository.PageResult[domain.User], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []domain.User
	for _, u := range r.byID {
		users = append(users, *u)
	}
	return &repository.PageResult[domain.User]{
		Items: users,
		Page:  1, PageSize: len(users),
		Total: int64(len(users)), TotalPages: 1,
	}, nil
}

type inMemorySessionRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Session

	// users lets the fake mirror the join on a live owner row.
	users *inMemoryUserRepo
}

func newInMemorySessionRepo(users *inMemoryUserRepo) *inMemorySessionRepo {
	return &inMemorySessionRepo{byID: map[string]*domain.Session{}, users: users}
}

func (r *inMemorySessionRepo) Create(s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.CreatedAt = time.Now()
	r.byID[cp.ID] = &cp
	return nil
}

func (r *inMemorySessionRepo) FindActiveByToken(token string) (*repository.ActiveSession, error) {
	return r.findActive(func(s *domain.Session) bool { return s.Token == token })
}

func (r *inMemorySessionRepo) FindActiveByRefreshToken(refreshToken string) (*repository.ActiveSession, error) {
	return r.findActive(func(s *domain.Session) bool {
		return s.RefreshToken != nil && *s.RefreshToken == refreshToken
	})
}

func (r *inMemorySessionRepo) findActive(match func(*domain.Session) bool) (*repository.ActiveSession, error) {
	r.mu.Lock()
	var found *domain.Session
	for _, s := range r.byID {
		if match(s) && s.Active && s.ExpiresAt.After(time.Now()) {
			cp := *s
			found = &cp
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return nil, repository.ErrSessionNotFound
	}
	user, err := r.users.FindByID(found.UserID)
	if err != nil || !user.Active {
		return nil, repository.ErrSessionNotFound
	}
	return &repository.ActiveSession{Session: *found, User: *user}, nil
}

func (r *inMemorySessionRepo) Revoke(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.Token == token {
			s.Active = false
		}
	}
	return nil
}

func (r *inMemorySessionRepo) RevokeAllForUser(userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byID {
		if s.UserID == userID {
			s.Active = false
		}
	}
	return nil
}

func (r *inMemorySessionRepo) Refresh(sessionID, newToken, newRefreshToken string, newExpiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[sessionID]
	if !ok || !s.Active {
		return repository.ErrSessionNotFound
	}
	s.Token = newToken
	s.RefreshToken = &newRefreshToken
	s.ExpiresAt = newExpiry
	return nil
}

func (r *inMemorySessionRepo) CountActiveForUser(userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.byID {
		if s.UserID == userID && s.Active && s.ExpiresAt.After(time.Now()) {
			n++
		}
	}
	return n, nil
}

func (r *inMemorySessionRepo) Reap() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.byID {
		if !s.Active || s.ExpiresAt.Before(time.Now()) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

type inMemoryLoginLogRepo struct {
	mu      sync.Mutex
	entries []domain.LoginLog
}

func (r *inMemoryLoginLogRepo) Append(entry *domain.LoginLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

type inMemorySettingRepo struct {
	mu     sync.Mutex
	values map[string]string
}

func newInMemorySettingRepo() *inMemorySettingRepo {
	return &inMemorySettingRepo{values: map[string]string{}}
}

func (r *inMemorySettingRepo) Get(key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	if !ok {
		return nil, repository.ErrSettingNotFound
	}
	return &domain.Setting{Key: key, Value: v}, nil
}

func (r *inMemorySettingRepo) Upsert(setting *domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[setting.Key] = setting.Value
	return nil
}

func (r *inMemorySettingRepo) All() ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Setting
	for k, v := range r.values {
		out = append(out, domain.Setting{Key: k, Value: v})
	}
	return out, nil
}

type inMemoryReadingRepo struct {
	mu       sync.Mutex
	readings []domain.Reading
}

func (r *inMemoryReadingRepo) Insert(reading *domain.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reading.ID = uint(len(r.readings) + 1)
	r.readings = append(r.readings, *reading)
	return nil
}

func (r *inMemoryReadingRepo) ListPaged(page repository.PageRequest, filter repository.ReadingFilter) (*repository.PageResult[domain.Reading], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := append([]domain.Reading(nil), r.readings...)
	return &repository.PageResult[domain.Reading]{
		Items: items,
		Page:  1, PageSize: len(items),
		Total: int64(len(items)), TotalPages: 1,
	}, nil
}

func (r *inMemoryReadingRepo) Latest(deviceID string) (*domain.Reading, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.readings) == 0 {
		return nil, repository.ErrReadingNotFound
	}
	cp := r.readings[len(r.readings)-1]
	return &cp, nil
}

func (r *inMemoryReadingRepo) Stats(filter repository.ReadingFilter) (*repository.ReadingStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &repository.ReadingStats{Count: int64(len(r.readings))}, nil
}

func (r *inMemoryReadingRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.Reading
	var n int64
	for _, reading := range r.readings {
		if reading.RecordedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, reading)
	}
	r.readings = kept
	return n, nil
}
