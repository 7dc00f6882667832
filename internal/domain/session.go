package domain

import (
	"strconv"
	"strings"
	"time"
)

const offlineSessionPrefix = "offline_"

// Session represents a persisted OAuth session for a shop.
// Offline sessions are scoped to the shop, online sessions to a single user of the shop.
type Session struct {
	ID               string            `json:"id"`
	Shop             string            `json:"shop"`
	State            string            `json:"state"`
	IsOnline         bool              `json:"isOnline"`
	Scope            string            `json:"scope,omitempty"`
	Expires          *time.Time        `json:"expires,omitempty"` // millisecond precision
	AccessToken      string            `json:"accessToken,omitempty"`
	OnlineAccessInfo *OnlineAccessInfo `json:"onlineAccessInfo,omitempty"`
}

// OnlineAccessInfo is the user payload Shopify returns for online access tokens
type OnlineAccessInfo struct {
	ExpiresIn           int64          `json:"expires_in"`
	AssociatedUserScope string         `json:"associated_user_scope"`
	AssociatedUser      AssociatedUser `json:"associated_user"`
}

// AssociatedUser is the staff member an online session was issued for
type AssociatedUser struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	AccountOwner  bool   `json:"account_owner"`
	Locale        string `json:"locale"`
	Collaborator  bool   `json:"collaborator"`
}

// OfflineSessionID returns the id used for a shop's offline session
func OfflineSessionID(shop string) string {
	return offlineSessionPrefix + shop
}

// OnlineSessionID returns the id used for a user's online session on a shop
func OnlineSessionID(shop string, userID int64) string {
	return shop + "_" + strconv.FormatInt(userID, 10)
}

// ExpiresAt truncates t to the millisecond precision sessions are held at
func ExpiresAt(t time.Time) *time.Time {
	ms := time.UnixMilli(t.UnixMilli()).UTC()
	return &ms
}

// ScopeList splits the scope string on commas and whitespace
func (s *Session) ScopeList() []string {
	return strings.FieldsFunc(s.Scope, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// IsExpired reports whether the session expires within the given window from now
func (s *Session) IsExpired(within time.Duration) bool {
	return s.IsExpiredAt(time.Now(), within)
}

// IsExpiredAt reports whether the session is expired at now, treating anything
// that expires within the window as already expired. Sessions without an expiry never expire.
func (s *Session) IsExpiredAt(now time.Time, within time.Duration) bool {
	if s.Expires == nil {
		return false
	}
	return s.Expires.Add(-within).Before(now)
}

// IsActive reports whether the session has a token, is not expired and still
// carries the requested scopes
func (s *Session) IsActive(scopes string) bool {
	return s.AccessToken != "" && !s.IsExpired(0) && !s.IsScopeChanged(scopes)
}

// IsScopeChanged reports whether the granted scopes differ from the requested ones.
// A write scope implies the matching read scope.
func (s *Session) IsScopeChanged(scopes string) bool {
	requested := (&Session{Scope: scopes}).ScopeList()
	return !sameScopes(expandScopes(s.ScopeList()), expandScopes(requested))
}

// Equal compares every field, expiry at millisecond precision
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ID != other.ID ||
		s.Shop != other.Shop ||
		s.State != other.State ||
		s.IsOnline != other.IsOnline ||
		s.Scope != other.Scope ||
		s.AccessToken != other.AccessToken {
		return false
	}
	if (s.Expires == nil) != (other.Expires == nil) {
		return false
	}
	if s.Expires != nil && s.Expires.UnixMilli() != other.Expires.UnixMilli() {
		return false
	}
	if (s.OnlineAccessInfo == nil) != (other.OnlineAccessInfo == nil) {
		return false
	}
	return s.OnlineAccessInfo == nil || *s.OnlineAccessInfo == *other.OnlineAccessInfo
}

func expandScopes(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes)*2)
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		set[scope] = struct{}{}
		if rest, ok := strings.CutPrefix(scope, "write_"); ok {
			set["read_"+rest] = struct{}{}
		} else if rest, ok := strings.CutPrefix(scope, "unauthenticated_write_"); ok {
			set["unauthenticated_read_"+rest] = struct{}{}
		}
	}
	return set
}

func sameScopes(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for scope := range a {
		if _, ok := b[scope]; !ok {
			return false
		}
	}
	return true
}
