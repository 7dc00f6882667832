package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"shopify-session-storage/internal/domain"
)

// RedisSessionDoc is the JSON document stored under a session key.
// Expires is milliseconds since the epoch.
type RedisSessionDoc struct {
	ID               string                   `json:"id"`
	Shop             string                   `json:"shop"`
	State            string                   `json:"state"`
	IsOnline         bool                     `json:"isOnline"`
	Scope            string                   `json:"scope,omitempty"`
	Expires          int64                    `json:"expires,omitempty"`
	AccessToken      string                   `json:"accessToken,omitempty"`
	OnlineAccessInfo *domain.OnlineAccessInfo `json:"onlineAccessInfo,omitempty"`
}

// EncodeRedisSession serializes a session to its JSON document
func EncodeRedisSession(session *domain.Session) ([]byte, error) {
	doc := RedisSessionDoc{
		ID:               session.ID,
		Shop:             session.Shop,
		State:            session.State,
		IsOnline:         session.IsOnline,
		Scope:            session.Scope,
		AccessToken:      session.AccessToken,
		OnlineAccessInfo: session.OnlineAccessInfo,
	}
	if session.Expires != nil {
		doc.Expires = session.Expires.UnixMilli()
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	return data, nil
}

// DecodeRedisSession parses a stored JSON document
func DecodeRedisSession(data []byte) (*domain.Session, error) {
	var doc RedisSessionDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	session := &domain.Session{
		ID:               doc.ID,
		Shop:             doc.Shop,
		State:            doc.State,
		IsOnline:         doc.IsOnline,
		Scope:            doc.Scope,
		AccessToken:      doc.AccessToken,
		OnlineAccessInfo: doc.OnlineAccessInfo,
	}
	if doc.Expires != 0 {
		t := time.UnixMilli(doc.Expires).UTC()
		session.Expires = &t
	}
	return session, nil
}
