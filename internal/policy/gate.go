package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sunforge/solar-epc/auth"
	"github.com/sunforge/solar-epc/httpx"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// ResourcePolicy narrows a profile permission for one loaded record.
type ResourcePolicy interface {
	Can(ctx context.Context, userID uint, action Action, resource any) bool
}

// Gate checks profile permissions first, then any resource policy registered
// for the resource type when a record is supplied.
type Gate struct {
	resolver *CachedResolver
	policies map[string]ResourcePolicy
}

// NewGate builds a gate over a database-backed resolver cached for ttl.
func NewGate(db *gorm.DB, ttl time.Duration) *Gate {
	return NewGateWithResolver(NewCachedResolver(NewDBProfileResolver(db), ttl))
}

func NewGateWithResolver(resolver *CachedResolver) *Gate {
	return &Gate{resolver: resolver, policies: make(map[string]ResourcePolicy)}
}

// Register attaches a resource policy, replacing any previous one.
func (g *Gate) Register(resource string, p ResourcePolicy) {
	g.policies[resource] = p
}

// Resolver exposes the cache so admin handlers can invalidate it.
func (g *Gate) Resolver() *CachedResolver { return g.resolver }

// Profile returns the caller's profile, or ErrUnauthenticated / ErrForbidden.
func (g *Gate) Profile(ctx context.Context) (uint, Profile, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return 0, nil, ErrUnauthenticated
	}
	profile, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return userID, nil, err
	}
	if profile == nil {
		return userID, nil, ErrForbidden
	}
	return userID, profile, nil
}

// Can reports whether the caller's profile grants resource:action, ignoring records.
func (g *Gate) Can(ctx context.Context, action Action, resource string) bool {
	_, profile, err := g.Profile(ctx)
	return err == nil && profile.HasPermission(NewPermission(resource, action))
}

// Authorize checks the profile permission and, when record is non-nil, the resource policy.
func (g *Gate) Authorize(ctx context.Context, action Action, resource string, record any) error {
	userID, profile, err := g.Profile(ctx)
	if err != nil {
		return err
	}
	if !profile.HasPermission(NewPermission(resource, action)) {
		return ErrForbidden
	}
	if record != nil {
		if p, ok := g.policies[resource]; ok && !p.Can(ctx, userID, action, record) {
			return ErrForbidden
		}
	}
	return nil
}

// RequirePermission is middleware enforcing a profile permission.
func (g *Gate) RequirePermission(resource string, action Action) func(http.Handler) http.Handler {
	return g.require(NewPermission(resource, action))
}

// RequireAdmin is middleware allowing only "*:*" profiles.
func (g *Gate) RequireAdmin() func(http.Handler) http.Handler {
	return g.require(SuperAdmin)
}

func (g *Gate) require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, profile, err := g.Profile(r.Context())
			switch {
			case errors.Is(err, ErrUnauthenticated):
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			case err != nil && !errors.Is(err, ErrForbidden):
				httpx.JSONError(w, http.StatusServiceUnavailable, "store_unavailable", nil)
			case err != nil || !profile.HasPermission(perm):
				httpx.JSONError(w, http.StatusForbidden, "forbidden", map[string]string{"permission": string(perm)})
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
