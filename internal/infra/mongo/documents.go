package mongo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wyat/capital/internal/extraction"
	"github.com/wyat/capital/internal/ledger"
)

// DocumentRepo stores uploaded documents, their extraction runs, blob
// content and extraction prompts.
type DocumentRepo struct {
	docs    *mongo.Collection
	runs    *mongo.Collection
	blobs   *mongo.Collection
	prompts *mongo.Collection
}

func (r *DocumentRepo) InsertDocument(ctx context.Context, d *extraction.Document) error {
	_, err := r.docs.InsertOne(ctx, toDocumentDoc(d))
	return mapWriteError(err, "document", d.ID)
}

func (r *DocumentRepo) GetDocument(ctx context.Context, id string) (*extraction.Document, error) {
	var doc documentDoc
	if err := r.docs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapFindError(err, "document", id)
	}
	return fromDocumentDoc(&doc), nil
}

func (r *DocumentRepo) SetLatestRun(ctx context.Context, docID, runID string) error {
	res, err := r.docs.UpdateOne(ctx, bson.M{"_id": docID}, bson.M{"$set": bson.M{"latest_extraction_run_id": runID}})
	if err != nil {
		return fmt.Errorf("document %s: %w", docID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("document %s: %w", docID, ledger.ErrNotFound)
	}
	return nil
}

func (r *DocumentRepo) InsertRun(ctx context.Context, run *extraction.Run) error {
	_, err := r.runs.InsertOne(ctx, toRunDoc(run))
	return mapWriteError(err, "extraction run", run.ID)
}

func (r *DocumentRepo) GetRun(ctx context.Context, id string) (*extraction.Run, error) {
	var doc runDoc
	if err := r.runs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mapFindError(err, "extraction run", id)
	}
	return fromRunDoc(&doc), nil
}

func (r *DocumentRepo) FinishRun(ctx context.Context, runID string, status extraction.RunStatus, result *extraction.Result, errMsg string) error {
	set := bson.M{
		"status":      string(status),
		"finished_at": time.Now().UTC(),
	}
	if result != nil {
		set["result"] = toResultDoc(result)
	}
	if errMsg != "" {
		set["error"] = errMsg
	}
	res, err := r.runs.UpdateOne(ctx, bson.M{"_id": runID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("extraction run %s: %w", runID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("extraction run %s: %w", runID, ledger.ErrNotFound)
	}
	return nil
}

// Get implements extraction.BlobStore.
func (r *DocumentRepo) Get(ctx context.Context, blobID string) ([]byte, error) {
	var doc blobDoc
	if err := r.blobs.FindOne(ctx, bson.M{"_id": blobID}).Decode(&doc); err != nil {
		return nil, mapFindError(err, "blob", blobID)
	}
	return doc.Data, nil
}

// Put implements extraction.BlobStore. Content is addressed by its sha256
// alongside the blob id.
func (r *DocumentRepo) Put(ctx context.Context, blobID string, data []byte, contentType string) error {
	sum := sha256.Sum256(data)
	doc := blobDoc{
		ID:          blobID,
		SHA256:      hex.EncodeToString(sum[:]),
		Size:        int64(len(data)),
		ContentType: contentType,
		Data:        data,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.blobs.ReplaceOne(ctx, bson.M{"_id": blobID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("blob %s: %w", blobID, err)
	}
	return nil
}

// GetPrompt returns the highest-version template for kind.
func (r *DocumentRepo) GetPrompt(ctx context.Context, kind string) (string, error) {
	var doc promptDoc
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	if err := r.prompts.FindOne(ctx, bson.M{"kind": kind}, opts).Decode(&doc); err != nil {
		return "", mapFindError(err, "prompt", kind)
	}
	return doc.Template, nil
}

// PutPrompt stores a prompt template version.
func (r *DocumentRepo) PutPrompt(ctx context.Context, kind string, version int, model, template string) error {
	doc := promptDoc{
		ID:        fmt.Sprintf("%s_v%d", kind, version),
		Kind:      kind,
		Version:   version,
		Model:     model,
		Template:  template,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.prompts.InsertOne(ctx, doc)
	return mapWriteError(err, "prompt", doc.ID)
}

var (
	_ extraction.DocumentRepository = (*DocumentRepo)(nil)
	_ extraction.BlobStore          = (*DocumentRepo)(nil)
	_ extraction.PromptRepository   = (*DocumentRepo)(nil)
)
