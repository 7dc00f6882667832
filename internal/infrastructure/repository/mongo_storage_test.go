package repository

import (
	"context"
	"testing"

	"shopify-session-storage/internal/domain"
	"shopify-session-storage/internal/infrastructure/repository/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const mongoTestNS = "sessions.shopify_sessions"

func mongoDoc(t *testing.T, session *domain.Session) bson.D {
	t.Helper()
	raw, err := bson.Marshal(entity.MongoSessionDocFromDomain(session))
	require.NoError(t, err)
	var doc bson.D
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

// readyMongoStorage queues the init responses for an existing collection
func readyMongoStorage(mt *mtest.T) *MongoSessionStorage {
	mt.AddMockResponses(
		mtest.CreateSuccessResponse(),
		mtest.CreateCursorResponse(0, "sessions.$cmd.listCollections", mtest.FirstBatch,
			bson.D{{Key: "name", Value: DefaultSessionTableName}, {Key: "type", Value: "collection"}}),
		mtest.CreateSuccessResponse(),
	)
	storage := NewMongoSessionStorageWithClient(context.Background(), mt.Client, "sessions", testLogger(mt.T))
	require.NoError(mt, storage.Ready(readyContext(mt.T)))
	return storage
}

func TestMongoSessionStorage(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("creates missing collection", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "sessions.$cmd.listCollections", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)
		storage := NewMongoSessionStorageWithClient(context.Background(), mt.Client, "sessions", testLogger(mt.T))
		require.NoError(mt, storage.Ready(readyContext(mt.T)))
	})

	mt.Run("tolerates concurrent collection creation", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "sessions.$cmd.listCollections", mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 48, Name: "NamespaceExists", Message: "collection already exists"}),
			mtest.CreateSuccessResponse(),
		)
		storage := NewMongoSessionStorageWithClient(context.Background(), mt.Client, "sessions", testLogger(mt.T))
		require.NoError(mt, storage.Ready(readyContext(mt.T)))
	})

	mt.Run("ping failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 18, Name: "AuthenticationFailed", Message: "auth failed"}))
		storage := NewMongoSessionStorageWithClient(context.Background(), mt.Client, "sessions", testLogger(mt.T))

		var connErr *domain.ConnectionError
		require.ErrorAs(mt, storage.Ready(readyContext(mt.T)), &connErr)
		assert.Equal(mt, "mongodb", connErr.Backend)

		_, err := storage.LoadSession(context.Background(), "any")
		require.ErrorAs(mt, err, &connErr)
	})

	mt.Run("store and load", func(mt *mtest.T) {
		ctx := context.Background()
		storage := readyMongoStorage(mt)
		session := onlineSession("mongo.myshopify.com", 3, 1700000000500)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		ok, err := storage.StoreSession(ctx, session)
		require.NoError(mt, err)
		assert.True(mt, ok)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoTestNS, mtest.FirstBatch, mongoDoc(mt.T, session)))
		loaded, err := storage.LoadSession(ctx, session.ID)
		require.NoError(mt, err)
		require.NotNil(mt, loaded)
		assert.True(mt, session.Equal(loaded))
		assert.Equal(mt, int64(1700000000500), loaded.Expires.UnixMilli())
	})

	mt.Run("load missing", func(mt *mtest.T) {
		storage := readyMongoStorage(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoTestNS, mtest.FirstBatch))

		loaded, err := storage.LoadSession(context.Background(), "missing")
		require.NoError(mt, err)
		assert.Nil(mt, loaded)
	})

	mt.Run("find by shop", func(mt *mtest.T) {
		storage := readyMongoStorage(mt)
		first := offlineSession("find.myshopify.com")
		second := onlineSession("find.myshopify.com", 4, 1700000000000)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mongoTestNS, mtest.FirstBatch, mongoDoc(mt.T, first), mongoDoc(mt.T, second)))

		found, err := storage.FindSessionsByShop(context.Background(), "find.myshopify.com")
		require.NoError(mt, err)
		assert.Equal(mt, sortedIDs([]*domain.Session{first, second}), sortedIDs(found))
	})

	mt.Run("delete", func(mt *mtest.T) {
		ctx := context.Background()
		storage := readyMongoStorage(mt)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		ok, err := storage.DeleteSession(ctx, "missing")
		require.NoError(mt, err)
		assert.True(mt, ok)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))
		ok, err = storage.DeleteSessions(ctx, []string{"a", "b"})
		require.NoError(mt, err)
		assert.True(mt, ok)

		// no round trip for an empty list
		ok, err = storage.DeleteSessions(ctx, nil)
		require.NoError(mt, err)
		assert.True(mt, ok)
	})

	mt.Run("query errors are typed", func(mt *mtest.T) {
		storage := readyMongoStorage(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad"}))

		_, err := storage.FindSessionsByShop(context.Background(), "shop")
		var queryErr *domain.QueryError
		require.ErrorAs(mt, err, &queryErr)
		assert.Equal(mt, "find", queryErr.Op)
	})

	mt.Run("disconnect keeps a borrowed client", func(mt *mtest.T) {
		storage := readyMongoStorage(mt)
		require.NoError(mt, storage.Disconnect(context.Background()))
		assert.ErrorIs(mt, storage.Ready(context.Background()), domain.ErrStorageDisconnected)
		assert.NotNil(mt, mt.Client)
	})
}
