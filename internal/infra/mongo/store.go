// Package mongo persists the ledger, envelopes, accounts and source
// documents in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/wyat/capital/internal/ledger"
	"github.com/wyat/capital/internal/logger"
)

const connectTimeout = 10 * time.Second

// Store holds a connected client and the capital database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri, pings the primary and returns a Store on database db.
func Connect(ctx context.Context, uri, db string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("Connect: empty uri")
	}
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("Connect: creating client: %w", err)
	}
	if err := client.Ping(cctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("Connect: pinging: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().Str("db", db).Msg("Connected to MongoDB")
	return &Store{client: client, db: client.Database(db)}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Database exposes the underlying database for migrations.
func (s *Store) Database() *mongo.Database { return s.db }

// Transactions returns the capital_ledger repository.
func (s *Store) Transactions() *TransactionRepo {
	return s.TransactionsIn(CollLedger)
}

// TransactionsIn returns a ledger repository over another collection, for
// patch tools pointed at a copy of the ledger.
func (s *Store) TransactionsIn(coll string) *TransactionRepo {
	return &TransactionRepo{coll: s.db.Collection(coll)}
}

// Accounts returns the capital_accounts repository.
func (s *Store) Accounts() *AccountRepo {
	return &AccountRepo{coll: s.db.Collection(CollAccounts)}
}

// Envelopes returns the capital_envelopes repository.
func (s *Store) Envelopes() *EnvelopeRepo {
	return &EnvelopeRepo{coll: s.db.Collection(CollEnvelopes)}
}

// Documents returns the repository over documents, extraction runs, blobs
// and prompts.
func (s *Store) Documents() *DocumentRepo {
	return &DocumentRepo{
		docs:    s.db.Collection(CollDocuments),
		runs:    s.db.Collection(CollRuns),
		blobs:   s.db.Collection(CollBlobs),
		prompts: s.db.Collection(CollPrompts),
	}
}

// mapWriteError turns duplicate-key failures into ledger.ErrDuplicate.
func mapWriteError(err error, what, id string) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s %s: %w", what, id, ledger.ErrDuplicate)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}

// mapFindError turns a missing document into ledger.ErrNotFound.
func mapFindError(err error, what, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %s: %w", what, id, ledger.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}
