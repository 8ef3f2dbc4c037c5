package mongo

import (
	"context"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wyat/capital/internal/ledger"
)

// TransactionRepo implements ledger.TransactionRepository on capital_ledger.
type TransactionRepo struct {
	coll *mongo.Collection
}

// InsertTransaction inserts tx keyed by its id.
func (r *TransactionRepo) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	doc, err := toTransactionDoc(tx)
	if err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	_, err = r.coll.InsertOne(ctx, doc)
	return mapWriteError(err, "transaction", tx.ID)
}

// GetTransaction loads one transaction.
func (r *TransactionRepo) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	var doc transactionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapFindError(err, "transaction", id)
	}
	return fromTransactionDoc(&doc)
}

// txFilterQuery translates the filter into a query document. It mirrors
// ledger.TxFilter.Matches.
func txFilterQuery(f ledger.TxFilter) bson.M {
	var and []bson.M
	if f.Source != "" {
		and = append(and, bson.M{"source": f.Source})
	}
	if f.PnLCurrency != "" {
		leg := bson.M{
			"account_id":      ledger.PnLAccountID,
			"amount.kind":     amountFiat,
			"amount.currency": string(f.PnLCurrency),
		}
		if f.ExcludeNote != "" {
			leg["notes"] = bson.M{"$not": bson.M{"$regex": regexp.QuoteMeta(f.ExcludeNote)}}
		}
		and = append(and, bson.M{"legs": bson.M{"$elemMatch": leg}})
	}
	if f.CategoryOnCustody {
		and = append(and, bson.M{"legs": bson.M{"$elemMatch": bson.M{
			"account_id":  bson.M{"$ne": ledger.PnLAccountID},
			"category_id": bson.M{"$exists": true, "$nin": bson.A{"", nil}},
		}}})
	}
	switch len(and) {
	case 0:
		return bson.M{}
	case 1:
		return and[0]
	}
	return bson.M{"$and": and}
}

// ScanTransactions streams matching transactions in (ts, _id) order.
func (r *TransactionRepo) ScanTransactions(ctx context.Context, filter ledger.TxFilter, fn func(*ledger.Transaction) error) error {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := r.coll.Find(ctx, txFilterQuery(filter), opts)
	if err != nil {
		return fmt.Errorf("ScanTransactions: querying: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc transactionDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("ScanTransactions: decoding: %w", err)
		}
		tx, err := fromTransactionDoc(&doc)
		if err != nil {
			return fmt.Errorf("ScanTransactions: %w", err)
		}
		if err := fn(tx); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("ScanTransactions: iterating: %w", err)
	}
	return nil
}

func (r *TransactionRepo) update(ctx context.Context, id string, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// UpdateTxType sets tx_type.
func (r *TransactionRepo) UpdateTxType(ctx context.Context, id string, t ledger.TxType) error {
	return r.update(ctx, id, bson.M{"tx_type": string(t)})
}

// UpdateReconciled sets the reconciled flag.
func (r *TransactionRepo) UpdateReconciled(ctx context.Context, id string, reconciled bool) error {
	return r.update(ctx, id, bson.M{"reconciled": reconciled})
}

// ReplaceLegs rewrites the legs array.
func (r *TransactionRepo) ReplaceLegs(ctx context.Context, id string, legs []ledger.Leg) error {
	docs, err := toLegDocs(legs)
	if err != nil {
		return fmt.Errorf("ReplaceLegs %s: %w", id, err)
	}
	return r.update(ctx, id, bson.M{"legs": docs})
}

// DeleteTransaction removes one transaction.
func (r *TransactionRepo) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("transaction %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("transaction %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

var _ ledger.TransactionRepository = (*TransactionRepo)(nil)
