package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wyat/capital/internal/envelope"
	"github.com/wyat/capital/internal/ledger"
)

// AccountRepo implements ledger.AccountRepository on capital_accounts.
type AccountRepo struct {
	coll *mongo.Collection
}

func (r *AccountRepo) InsertAccount(ctx context.Context, a *ledger.Account) error {
	_, err := r.coll.InsertOne(ctx, toAccountDoc(a))
	return mapWriteError(err, "account", a.ID)
}

func (r *AccountRepo) ReplaceAccount(ctx context.Context, a *ledger.Account) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": a.ID}, toAccountDoc(a))
	if err != nil {
		return fmt.Errorf("account %s: %w", a.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s: %w", a.ID, ledger.ErrNotFound)
	}
	return nil
}

func (r *AccountRepo) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	var doc accountDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapFindError(err, "account", id)
	}
	return fromAccountDoc(&doc)
}

func (r *AccountRepo) ListAccounts(ctx context.Context) ([]*ledger.Account, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: querying: %w", err)
	}
	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListAccounts: decoding: %w", err)
	}
	accounts := make([]*ledger.Account, 0, len(docs))
	for i := range docs {
		a, err := fromAccountDoc(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// EnvelopeRepo implements envelope.Repository on capital_envelopes.
type EnvelopeRepo struct {
	coll *mongo.Collection
}

func (r *EnvelopeRepo) InsertEnvelope(ctx context.Context, e *envelope.Envelope) error {
	doc, err := toEnvelopeDoc(e)
	if err != nil {
		return fmt.Errorf("InsertEnvelope: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC()
	_, err = r.coll.InsertOne(ctx, doc)
	return mapWriteError(err, "envelope", e.ID)
}

func (r *EnvelopeRepo) GetEnvelope(ctx context.Context, id string) (*envelope.Envelope, error) {
	var doc envelopeDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &envelope.Error{Kind: envelope.KindNotFound, EnvelopeID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("envelope %s: %w", id, err)
	}
	return fromEnvelopeDoc(&doc)
}

func (r *EnvelopeRepo) ListEnvelopes(ctx context.Context) ([]*envelope.Envelope, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("ListEnvelopes: querying: %w", err)
	}
	var docs []envelopeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("ListEnvelopes: decoding: %w", err)
	}
	envs := make([]*envelope.Envelope, 0, len(docs))
	for i := range docs {
		e, err := fromEnvelopeDoc(&docs[i])
		if err != nil {
			return nil, fmt.Errorf("ListEnvelopes: %w", err)
		}
		envs = append(envs, e)
	}
	return envs, nil
}

func (r *EnvelopeRepo) SaveEnvelope(ctx context.Context, e *envelope.Envelope) error {
	doc, err := toEnvelopeDoc(e)
	if err != nil {
		return fmt.Errorf("SaveEnvelope: %w", err)
	}
	doc.UpdatedAt = time.Now().UTC()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": e.ID}, doc)
	if err != nil {
		return fmt.Errorf("envelope %s: %w", e.ID, err)
	}
	if res.MatchedCount == 0 {
		return &envelope.Error{Kind: envelope.KindNotFound, EnvelopeID: e.ID}
	}
	return nil
}

var (
	_ ledger.AccountRepository = (*AccountRepo)(nil)
	_ envelope.Repository      = (*EnvelopeRepo)(nil)
)
