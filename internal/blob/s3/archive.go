package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/klauspost/pgzip"

	"github.com/xenking/bestdeal/internal/domain/product"
	"github.com/xenking/bestdeal/internal/wire"
)

// SnapshotPrefix is the key prefix of archived search runs.
const SnapshotPrefix = "snapshots/"

const snapshotContentType = "application/gzip"

type objectWriter interface {
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, key string, data io.Reader, contentType string, partSize int64) error
}

// Archive uploads the raw listings of each scraped search run as gzip NDJSON.
type Archive struct {
	w   objectWriter
	now func() time.Time
}

func NewArchive(w *Writer) *Archive {
	return &Archive{w: w, now: time.Now}
}

// SnapshotKey returns snapshots/yyyy/mm/dd/<normalized query>-<id>.ndjson.gz.
func SnapshotKey(query string, at time.Time, id string) string {
	name := product.Normalize(query)
	if name == "" {
		name = "query"
	}
	at = at.UTC()
	return fmt.Sprintf("%s%04d/%02d/%02d/%s-%s.ndjson.gz",
		SnapshotPrefix, at.Year(), int(at.Month()), at.Day(), name, id)
}

// Store archives listings scraped for query and returns the object key.
func (a *Archive) Store(ctx context.Context, query string, listings []product.Listing) (string, error) {
	at := a.now()

	var buf bytes.Buffer
	zw := pgzip.NewWriter(&buf)
	if err := wire.WriteSnapshots(zw, query, at, listings); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", errors.Wrap(err, "close gzip")
	}

	key := SnapshotKey(query, at, uuid.NewString())
	var err error
	if int64(buf.Len()) > minPartSize {
		err = a.w.PutMultipart(ctx, key, &buf, snapshotContentType, minPartSize)
	} else {
		err = a.w.Put(ctx, key, &buf, snapshotContentType)
	}
	if err != nil {
		return "", errors.Wrap(err, "upload snapshot")
	}
	return key, nil
}
