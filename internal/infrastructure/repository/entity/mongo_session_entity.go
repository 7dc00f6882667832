package entity

import (
	"time"

	"shopify-session-storage/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSessionDoc represents a session in MongoDB. Expires is a native date with
// millisecond precision.
type MongoSessionDoc struct {
	ObjectID         primitive.ObjectID        `bson:"_id,omitempty"`
	ID               string                    `bson:"id"`
	Shop             string                    `bson:"shop"`
	State            string                    `bson:"state"`
	IsOnline         bool                      `bson:"isOnline"`
	Scope            string                    `bson:"scope,omitempty"`
	Expires          *time.Time                `bson:"expires,omitempty"`
	AccessToken      string                    `bson:"accessToken,omitempty"`
	OnlineAccessInfo *MongoOnlineAccessInfoDoc `bson:"onlineAccessInfo,omitempty"`
}

// MongoOnlineAccessInfoDoc is the embedded online access payload
type MongoOnlineAccessInfoDoc struct {
	ExpiresIn           int64                  `bson:"expires_in"`
	AssociatedUserScope string                 `bson:"associated_user_scope"`
	AssociatedUser      MongoAssociatedUserDoc `bson:"associated_user"`
}

// MongoAssociatedUserDoc is the embedded associated user
type MongoAssociatedUserDoc struct {
	ID            int64  `bson:"id"`
	FirstName     string `bson:"first_name"`
	LastName      string `bson:"last_name"`
	Email         string `bson:"email"`
	EmailVerified bool   `bson:"email_verified"`
	AccountOwner  bool   `bson:"account_owner"`
	Locale        string `bson:"locale"`
	Collaborator  bool   `bson:"collaborator"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSessionDoc) ToDomain() *domain.Session {
	session := &domain.Session{
		ID:          d.ID,
		Shop:        d.Shop,
		State:       d.State,
		IsOnline:    d.IsOnline,
		Scope:       d.Scope,
		AccessToken: d.AccessToken,
	}
	if d.Expires != nil {
		session.Expires = domain.ExpiresAt(*d.Expires)
	}
	if info := d.OnlineAccessInfo; info != nil {
		session.OnlineAccessInfo = &domain.OnlineAccessInfo{
			ExpiresIn:           info.ExpiresIn,
			AssociatedUserScope: info.AssociatedUserScope,
			AssociatedUser:      domain.AssociatedUser(info.AssociatedUser),
		}
	}
	return session
}

// MongoSessionDocFromDomain converts a domain entity to a MongoDB document.
// The ObjectID is left empty so replacements keep the stored one.
func MongoSessionDocFromDomain(session *domain.Session) *MongoSessionDoc {
	doc := &MongoSessionDoc{
		ID:          session.ID,
		Shop:        session.Shop,
		State:       session.State,
		IsOnline:    session.IsOnline,
		Scope:       session.Scope,
		AccessToken: session.AccessToken,
	}
	if session.Expires != nil {
		doc.Expires = domain.ExpiresAt(*session.Expires)
	}
	if info := session.OnlineAccessInfo; info != nil {
		doc.OnlineAccessInfo = &MongoOnlineAccessInfoDoc{
			ExpiresIn:           info.ExpiresIn,
			AssociatedUserScope: info.AssociatedUserScope,
			AssociatedUser:      MongoAssociatedUserDoc(info.AssociatedUser),
		}
	}
	return doc
}
