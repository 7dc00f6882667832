package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/infrastructure/repository/entity"
	"shopify-session-storage/internal/ports"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoBackend = "mongodb"

// MongoSessionStorage implements SessionStorage using MongoDB.
// Sessions are whole documents keyed by their id field.
type MongoSessionStorage struct {
	uri        string
	client     *mongo.Client
	ownsClient bool
	dbName     string
	options    Options
	ready      *readyGate
	logger     zerolog.Logger
}

var _ ports.SessionStorage = (*MongoSessionStorage)(nil)

// NewMongoSessionStorage connects to the MongoDB deployment at uri
func NewMongoSessionStorage(ctx context.Context, uri, dbName string, logger zerolog.Logger, opts ...Option) *MongoSessionStorage {
	s := newMongoSessionStorage(uri, nil, dbName, logger, opts)
	s.ownsClient = true
	s.ready = startReadyGate(ctx, s.init)
	return s
}

// NewMongoSessionStorageWithCredentials builds the connection URI from its parts
func NewMongoSessionStorageWithCredentials(
	ctx context.Context,
	host, dbName, username, password string,
	logger zerolog.Logger,
	opts ...Option,
) *MongoSessionStorage {
	u := url.URL{
		Scheme: "mongodb",
		User:   url.UserPassword(username, password),
		Host:   host,
		Path:   "/",
	}
	return NewMongoSessionStorage(ctx, u.String(), dbName, logger, opts...)
}

// NewMongoSessionStorageWithClient uses a connected client. Disconnect leaves the client open.
func NewMongoSessionStorageWithClient(ctx context.Context, client *mongo.Client, dbName string, logger zerolog.Logger, opts ...Option) *MongoSessionStorage {
	s := newMongoSessionStorage("", client, dbName, logger, opts)
	s.ready = startReadyGate(ctx, s.init)
	return s
}

func newMongoSessionStorage(uri string, client *mongo.Client, dbName string, logger zerolog.Logger, opts []Option) *MongoSessionStorage {
	o := buildOptions(defaultOptions(), opts)
	return &MongoSessionStorage{
		uri:     uri,
		client:  client,
		dbName:  dbName,
		options: o,
		logger: logger.With().
			Str("component", "session_storage").
			Str("backend", mongoBackend).
			Str("collection", o.SessionTableName).
			Logger(),
	}
}

// Ready waits for the connection and collection to be in place
func (s *MongoSessionStorage) Ready(ctx context.Context) error {
	return s.ready.Wait(ctx)
}

// StoreSession replaces the session document, inserting it when missing
func (s *MongoSessionStorage) StoreSession(ctx context.Context, session *domain.Session) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	doc := entity.MongoSessionDocFromDomain(session)
	opts := options.FindOneAndReplace().SetUpsert(true)
	err := s.collection().FindOneAndReplace(ctx, bson.M{"id": session.ID}, doc, opts).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return false, fmt.Errorf("failed to store session: %w", s.queryError("findOneAndReplace", err))
	}
	return true, nil
}

// LoadSession retrieves a session by ID
func (s *MongoSessionStorage) LoadSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	var doc entity.MongoSessionDoc
	err := s.collection().FindOne(ctx, bson.M{"id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", s.queryError("findOne", err))
	}
	return doc.ToDomain(), nil
}

// DeleteSession removes a session by ID
func (s *MongoSessionStorage) DeleteSession(ctx context.Context, id string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}

	if _, err := s.collection().DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return false, fmt.Errorf("failed to delete session: %w", s.queryError("deleteOne", err))
	}
	return true, nil
}

// DeleteSessions removes all sessions with the given IDs
func (s *MongoSessionStorage) DeleteSessions(ctx context.Context, ids []string) (bool, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return true, nil
	}

	if _, err := s.collection().DeleteMany(ctx, bson.M{"id": bson.M{"$in": ids}}); err != nil {
		return false, fmt.Errorf("failed to delete sessions: %w", s.queryError("deleteMany", err))
	}
	return true, nil
}

// FindSessionsByShop returns every session of shop
func (s *MongoSessionStorage) FindSessionsByShop(ctx context.Context, shop string) ([]*domain.Session, error) {
	if err := s.ready.Wait(ctx); err != nil {
		return nil, err
	}

	cursor, err := s.collection().Find(ctx, bson.M{"shop": shop})
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions: %w", s.queryError("find", err))
	}
	defer cursor.Close(ctx)

	sessions := []*domain.Session{}
	for cursor.Next(ctx) {
		var doc entity.MongoSessionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
		sessions = append(sessions, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", s.queryError("find", err))
	}

	return sessions, nil
}

// Disconnect closes the client when the storage created it
func (s *MongoSessionStorage) Disconnect(ctx context.Context) error {
	s.ready.Close()
	if err := s.ready.settled(ctx); err != nil {
		return err
	}
	if !s.ownsClient || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	s.logger.Info().Msg("Session storage disconnected")
	return nil
}

func (s *MongoSessionStorage) collection() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(s.options.SessionTableName)
}

func (s *MongoSessionStorage) init(ctx context.Context) error {
	if s.client == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to connect to MongoDB")
			return &domain.ConnectionError{Backend: mongoBackend, Err: err}
		}
		s.client = client
	}

	if err := s.client.Database(s.dbName).RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to ping MongoDB")
		return &domain.ConnectionError{Backend: mongoBackend, Err: err}
	}

	if err := s.createCollection(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to prepare session collection")
		return err
	}

	s.logger.Info().Msg("Session storage ready")
	return nil
}

func (s *MongoSessionStorage) createCollection(ctx context.Context) error {
	db := s.client.Database(s.dbName)
	names, err := db.ListCollectionNames(ctx, bson.M{"name": s.options.SessionTableName})
	if err != nil {
		return s.queryError("listCollections", err)
	}

	if len(names) == 0 {
		s.logger.Debug().Msg("Creating session collection")
		if err := db.CreateCollection(ctx, s.options.SessionTableName); err != nil {
			var cmdErr mongo.CommandError
			// NamespaceExists: another instance created it first
			if !errors.As(err, &cmdErr) || cmdErr.Code != 48 {
				return s.queryError("create", err)
			}
		}
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "shop", Value: 1}},
		},
	}
	if _, err := s.collection().Indexes().CreateMany(ctx, indexes); err != nil {
		return s.queryError("createIndexes", err)
	}
	return nil
}

func (s *MongoSessionStorage) queryError(op string, err error) error {
	return &domain.QueryError{Backend: mongoBackend, Op: op, Err: err}
}
