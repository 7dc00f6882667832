package entity

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shopify-session-storage/internal/domain"
)

// SessionColumns is the column order used for every SQL statement on the session table
var SessionColumns = []string{
	"id",
	"shop",
	"state",
	"isOnline",
	"scope",
	"expires",
	"accessToken",
	"onlineAccessInfo",
}

// SQLSessionRow is a session as stored in a relational table.
// Expires holds whole seconds since the epoch.
type SQLSessionRow struct {
	ID               string
	Shop             string
	State            string
	IsOnline         bool
	Scope            sql.NullString
	Expires          sql.NullInt64
	AccessToken      sql.NullString
	OnlineAccessInfo sql.NullString
}

// SQLSessionRowFromDomain flattens a session into column values.
// Sub-second precision of Expires is dropped.
func SQLSessionRowFromDomain(session *domain.Session) (*SQLSessionRow, error) {
	row := &SQLSessionRow{
		ID:          session.ID,
		Shop:        session.Shop,
		State:       session.State,
		IsOnline:    session.IsOnline,
		Scope:       nullString(session.Scope),
		Expires:     ExpiresToSeconds(session.Expires),
		AccessToken: nullString(session.AccessToken),
	}

	if session.OnlineAccessInfo != nil {
		data, err := json.Marshal(session.OnlineAccessInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to encode online access info: %w", err)
		}
		row.OnlineAccessInfo = sql.NullString{String: string(data), Valid: true}
	}

	return row, nil
}

// Values returns the column values in SessionColumns order
func (r *SQLSessionRow) Values() []any {
	return []any{
		r.ID,
		r.Shop,
		r.State,
		r.IsOnline,
		r.Scope,
		r.Expires,
		r.AccessToken,
		r.OnlineAccessInfo,
	}
}

// ScanDest returns scan destinations in SessionColumns order
func (r *SQLSessionRow) ScanDest() []any {
	return []any{
		&r.ID,
		&r.Shop,
		&r.State,
		&r.IsOnline,
		&r.Scope,
		&r.Expires,
		&r.AccessToken,
		&r.OnlineAccessInfo,
	}
}

// ToDomain rebuilds the session, converting Expires back to milliseconds
func (r *SQLSessionRow) ToDomain() (*domain.Session, error) {
	session := &domain.Session{
		ID:          r.ID,
		Shop:        r.Shop,
		State:       r.State,
		IsOnline:    r.IsOnline,
		Scope:       r.Scope.String,
		AccessToken: r.AccessToken.String,
	}
	if r.Expires.Valid {
		session.Expires = ExpiresFromSeconds(r.Expires.Int64)
	}

	if r.OnlineAccessInfo.Valid && r.OnlineAccessInfo.String != "" {
		var info domain.OnlineAccessInfo
		if err := json.Unmarshal([]byte(r.OnlineAccessInfo.String), &info); err != nil {
			return nil, fmt.Errorf("failed to decode online access info of session %s: %w", r.ID, err)
		}
		session.OnlineAccessInfo = &info
	}

	return session, nil
}

// ExpiresToSeconds floors an expiry to whole seconds since the epoch
func ExpiresToSeconds(expires *time.Time) sql.NullInt64 {
	if expires == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: floorDiv(expires.UnixMilli(), 1000), Valid: true}
}

// ExpiresFromSeconds converts stored seconds back to a millisecond instant.
// Zero is treated as no expiry.
func ExpiresFromSeconds(seconds int64) *time.Time {
	if seconds == 0 {
		return nil
	}
	t := time.UnixMilli(seconds * 1000).UTC()
	return &t
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
