package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/google/uuid"

	"github.com/memoria-app/backend/internal/modules/entitlement"
)

type contextKey string

const (
	UserContextKey contextKey = "user"

	// AnonCookieName tracks visitors per-device so they can browse
	// public memorial pages without an account
	AnonCookieName = "__mem_anon"

	// AnonIDPrefix is prepended to anonymous user IDs
	AnonIDPrefix = "anon:"

	// AnonCookieMaxAge is the max-age of the anonymous cookie (30 days)
	AnonCookieMaxAge = 30 * 24 * 60 * 60
)

// User represents an authenticated user
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Tier      string
}

// IsAnonymous returns true if the user is not logged in
func (u *User) IsAnonymous() bool {
	if u == nil {
		return true
	}
	return strings.HasPrefix(u.ID, AnonIDPrefix)
}

// TierLookup resolves a user's tier from storage
type TierLookup interface {
	GetTier(ctx context.Context, userID string) string
}

// ClerkAuthMiddleware handles Clerk authentication with an anonymous
// cookie fallback for public pages
type ClerkAuthMiddleware struct {
	tierLookup TierLookup
	secure     bool // true in production (HTTPS)
}

// NewClerkAuthMiddleware creates a new Clerk auth middleware instance
func NewClerkAuthMiddleware(secretKey string, tierLookup TierLookup, secure bool) *ClerkAuthMiddleware {
	clerk.SetKey(secretKey)
	return &ClerkAuthMiddleware{
		tierLookup: tierLookup,
		secure:     secure,
	}
}

// getOrCreateAnonID reads the anonymous cookie or generates a new one
func (m *ClerkAuthMiddleware) getOrCreateAnonID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(AnonCookieName); err == nil && len(cookie.Value) >= 32 {
		return fmt.Sprintf("%s%s", AnonIDPrefix, cookie.Value)
	}

	anonUUID := uuid.New().String()

	sameSite := http.SameSiteLaxMode
	if m.secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    anonUUID,
		Path:     "/",
		MaxAge:   AnonCookieMaxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: sameSite,
	})

	return fmt.Sprintf("%s%s", AnonIDPrefix, anonUUID)
}

// Handler returns the HTTP middleware handler for Clerk authentication
func (m *ClerkAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			anonID := m.getOrCreateAnonID(w, r)
			ctx := context.WithValue(r.Context(), UserContextKey, &User{
				ID:   anonID,
				Tier: entitlement.TierFree,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{
			Token: parts[1],
		})
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		userID := claims.Subject

		tier := entitlement.TierFree
		if m.tierLookup != nil {
			if t := m.tierLookup.GetTier(r.Context(), userID); t != "" {
				tier = t
			}
		}

		clerkUser, err := user.Get(r.Context(), userID)
		if err != nil {
			// Claims are enough to identify the user
			ctx := context.WithValue(r.Context(), UserContextKey, &User{
				ID:   userID,
				Tier: tier,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		var email string
		if clerkUser.PrimaryEmailAddressID != nil {
			for _, emailAddr := range clerkUser.EmailAddresses {
				if emailAddr.ID == *clerkUser.PrimaryEmailAddressID {
					email = emailAddr.EmailAddress
					break
				}
			}
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &User{
			ID:        userID,
			Email:     email,
			FirstName: safeString(clerkUser.FirstName),
			LastName:  safeString(clerkUser.LastName),
			Tier:      tier,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous users
func (m *ClerkAuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil || user.IsAnonymous() {
			http.Error(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUser retrieves the user from context
func GetUser(ctx context.Context) *User {
	user, ok := ctx.Value(UserContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

func safeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
