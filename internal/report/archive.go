package report

import (
	"bytes"
	"context"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/diagnoclinic/apiserver/internal/storage"
	"github.com/diagnoclinic/apiserver/types"
)

// Archive keeps a copy of exported reports in object storage.
type Archive struct {
	store *storage.Storage
}

// NewArchive returns nil when store is nil. A nil Archive stores nothing and
// finds nothing.
func NewArchive(store *storage.Storage) *Archive {
	if store == nil {
		return nil
	}
	return &Archive{store: store}
}

// StoredKey is the key of the report of a record in the patient history.
func StoredKey(recordID string) string {
	return path.Join("reports", recordID+".pdf")
}

// AdhocKey is a fresh key for a report built from posted data.
func AdhocKey(now time.Time) string {
	return path.Join("reports", "adhoc", now.Format("20060102"), uuid.NewString()+".pdf")
}

func (a *Archive) Put(ctx context.Context, key string, rec types.DiagnosisRecord, pdf []byte) error {
	if a == nil {
		return nil
	}
	meta := map[string]string{"physician": rec.Physician.Username}
	if rec.ID != "" {
		meta["record-id"] = rec.ID
	}
	return a.store.Put(ctx, storage.Object{
		Key:         key,
		Body:        bytes.NewReader(pdf),
		Size:        int64(len(pdf)),
		ContentType: "application/pdf",
		Metadata:    meta,
	})
}

// Get returns the archived PDF or storage.ErrObjectNotFound.
func (a *Archive) Get(ctx context.Context, key string) ([]byte, error) {
	if a == nil {
		return nil, storage.ErrObjectNotFound
	}
	body, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}
