package extraction

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// NewDocument describes an upload.
type NewDocument struct {
	Namespace string
	Kind      string
	Title     string
	MIMEType  string
	Data      []byte
}

// CreateDocument stores the bytes as a blob and inserts the document
// record pointing at it.
func CreateDocument(ctx context.Context, docs DocumentRepository, blobs BlobStore, in NewDocument) (*Document, error) {
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("CreateDocument: empty document")
	}
	id := uuid.NewString()
	doc := &Document{
		ID:        id,
		BlobID:    path.Join(namespaceOr(in.Namespace), id),
		Namespace: namespaceOr(in.Namespace),
		Kind:      in.Kind,
		Title:     in.Title,
		MIMEType:  in.MIMEType,
		CreatedAt: time.Now().UTC(),
	}
	if doc.Kind == "" {
		doc.Kind = DefaultKind
	}
	if doc.MIMEType == "" {
		doc.MIMEType = "application/pdf"
	}

	if err := blobs.Put(ctx, doc.BlobID, in.Data, doc.MIMEType); err != nil {
		return nil, fmt.Errorf("CreateDocument: storing blob: %w", err)
	}
	if err := docs.InsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("CreateDocument: inserting document: %w", err)
	}
	return doc, nil
}

func namespaceOr(ns string) string {
	if ns == "" {
		return "capital"
	}
	return ns
}
