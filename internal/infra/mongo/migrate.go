package mongo

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wyat/capital/internal/logger"
)

// IndexSpec is one index a migration creates.
type IndexSpec struct {
	Collection string
	Keys       bson.D
	Unique     bool
}

func (s IndexSpec) String() string {
	parts := make([]string, 0, len(s.Keys))
	for _, k := range s.Keys {
		parts = append(parts, fmt.Sprintf("%s:%v", k.Key, k.Value))
	}
	u := ""
	if s.Unique {
		u = " unique"
	}
	return fmt.Sprintf("%s(%s)%s", s.Collection, strings.Join(parts, ","), u)
}

// Migration is a versioned set of indexes.
type Migration struct {
	Version int
	Name    string
	Indexes []IndexSpec
}

// Checksum fingerprints the index definitions so a changed migration is
// visible in schema_migrations.
func (m Migration) Checksum() string {
	specs := make([]string, 0, len(m.Indexes))
	for _, ix := range m.Indexes {
		specs = append(specs, ix.String())
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(strings.Join(specs, "\n"))))
}

// Label is the "0001_name" form used in logs.
func (m Migration) Label() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// Migrations is the ordered schema history.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "ledger_indexes",
		Indexes: []IndexSpec{
			{Collection: CollLedger, Keys: bson.D{{Key: "ts", Value: 1}, {Key: "_id", Value: 1}}},
			{Collection: CollLedger, Keys: bson.D{{Key: "source", Value: 1}, {Key: "ts", Value: 1}}},
			{Collection: CollLedger, Keys: bson.D{{Key: "tx_type", Value: 1}}},
			{Collection: CollLedger, Keys: bson.D{{Key: "legs.account_id", Value: 1}}},
			{Collection: CollLedger, Keys: bson.D{{Key: "legs.category_id", Value: 1}}},
		},
	},
	{
		Version: 2,
		Name:    "document_indexes",
		Indexes: []IndexSpec{
			{Collection: CollDocuments, Keys: bson.D{{Key: "namespace", Value: 1}, {Key: "created_at", Value: -1}}},
			{Collection: CollRuns, Keys: bson.D{{Key: "doc_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Collection: CollBlobs, Keys: bson.D{{Key: "sha256", Value: 1}}},
			{Collection: CollPrompts, Keys: bson.D{{Key: "kind", Value: 1}, {Key: "version", Value: -1}}, Unique: true},
		},
	},
	{
		Version: 3,
		Name:    "envelope_indexes",
		Indexes: []IndexSpec{
			{Collection: CollEnvelopes, Keys: bson.D{{Key: "status", Value: 1}, {Key: "last_period", Value: 1}}},
		},
	},
}

// MigrateResult lists what Migrate did.
type MigrateResult struct {
	Applied []string
	Skipped []string
}

// Migrate applies every migration not yet recorded in schema_migrations, in
// version order, and records each one after its indexes exist.
func Migrate(ctx context.Context, db *mongo.Database, migrations []Migration, appliedBy string) (MigrateResult, error) {
	log := logger.ForComponent(logger.FromContext(ctx), "migrate")
	coll := db.Collection(CollSchemaMigrations)

	applied, err := appliedVersions(ctx, coll)
	if err != nil {
		return MigrateResult{}, fmt.Errorf("Migrate: %w", err)
	}

	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	var res MigrateResult
	for _, m := range sorted {
		if sum, ok := applied[m.Version]; ok {
			if sum != m.Checksum() {
				log.Warn().Str("migration", m.Label()).Msg("Checksum differs from the applied migration")
			}
			log.Info().Msgf("  [SKIP] %s (already applied)", m.Label())
			res.Skipped = append(res.Skipped, m.Label())
			continue
		}

		log.Info().Msgf("  [RUN]  %s", m.Label())
		for _, ix := range m.Indexes {
			model := mongo.IndexModel{Keys: ix.Keys}
			if ix.Unique {
				model.Options = options.Index().SetUnique(true)
			}
			if _, err := db.Collection(ix.Collection).Indexes().CreateOne(ctx, model); err != nil {
				return res, fmt.Errorf("Migrate %s: creating index %s: %w", m.Label(), ix, err)
			}
		}

		rec := migrationDoc{
			Version:   m.Version,
			Name:      m.Name,
			Checksum:  m.Checksum(),
			AppliedAt: time.Now().UTC(),
			AppliedBy: appliedBy,
		}
		if _, err := coll.InsertOne(ctx, rec); err != nil {
			return res, fmt.Errorf("Migrate %s: recording: %w", m.Label(), err)
		}
		log.Info().Msgf("  [OK]   %s", m.Label())
		res.Applied = append(res.Applied, m.Label())
	}
	return res, nil
}

func appliedVersions(ctx context.Context, coll *mongo.Collection) (map[int]string, error) {
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	var docs []migrationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding applied migrations: %w", err)
	}
	out := make(map[int]string, len(docs))
	for _, d := range docs {
		out[d.Version] = d.Checksum
	}
	return out, nil
}
