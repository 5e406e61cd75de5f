package policy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sunforge/solar-epc/internal/models"
	"gorm.io/gorm"
)

// Profile is the set of permissions a user holds.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(Permission) bool
	Permissions() []Permission
}

// ProfileResolver finds the profile of a user. A nil profile with a nil error
// means the user exists but has no profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uint) (Profile, error)
}

// StaticProfile is an in-memory profile.
type StaticProfile struct {
	id    uint
	name  string
	perms []Permission
}

func NewStaticProfile(id uint, name string, perms ...Permission) *StaticProfile {
	return &StaticProfile{id: id, name: name, perms: perms}
}

func (p *StaticProfile) ID() uint                  { return p.id }
func (p *StaticProfile) Name() string              { return p.name }
func (p *StaticProfile) Permissions() []Permission { return append([]Permission(nil), p.perms...) }

func (p *StaticProfile) HasPermission(requested Permission) bool {
	return anyMatches(p.perms, requested)
}

func anyMatches(held []Permission, requested Permission) bool {
	for _, h := range held {
		if h.Matches(requested) {
			return true
		}
	}
	return false
}

// DBProfileResolver loads a user's profile and its permissions with GORM.
// Inactive and deleted users resolve to no profile.
type DBProfileResolver struct {
	db *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{db: db}
}

func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (Profile, error) {
	var user models.User
	err := r.db.WithContext(ctx).Preload("Profile.Permissions").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || user.Profile == nil {
		return nil, nil
	}
	perms := make([]Permission, len(user.Profile.Permissions))
	for i, p := range user.Profile.Permissions {
		perms[i] = Permission(p.Code())
	}
	return NewStaticProfile(user.Profile.ID, user.Profile.Name, perms...), nil
}

// CachedResolver memoises another resolver for a fixed TTL. Errors are not cached.
type CachedResolver struct {
	inner ProfileResolver
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[uint]cacheEntry
}

type cacheEntry struct {
	profile   Profile
	expiresAt time.Time
}

func NewCachedResolver(inner ProfileResolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{inner: inner, ttl: ttl, now: time.Now, cache: make(map[uint]cacheEntry)}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID uint) (Profile, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	profile, err := r.inner.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[userID] = cacheEntry{profile: profile, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return profile, nil
}

// Invalidate drops one user, e.g. after their profile assignment changed.
func (r *CachedResolver) Invalidate(userID uint) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

// InvalidateAll drops every entry, e.g. after a profile's permissions changed.
func (r *CachedResolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[uint]cacheEntry)
	r.mu.Unlock()
}
