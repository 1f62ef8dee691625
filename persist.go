package annkit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/annkit/blobstore"
	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/index/flat"
	"github.com/hupe1980/annkit/index/hnsw"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/resource"
	"github.com/hupe1980/annkit/space"
)

// SnapshotPrefix starts the name of every blob written by Publish.
const SnapshotPrefix = "snapshot-"

// Serialize writes the index in the persistence format.
func (ix *Index[E]) Serialize(w io.Writer) error {
	a, done, err := ix.backend()
	if err != nil {
		return err
	}
	defer done()
	return translateError(a.SaveIndex(w))
}

// Deserialize validates doc for the DESERIALIZE phase and replaces the
// index contents with the index read from r. The stream must hold an
// index of the same kind and element type. A failed load leaves the
// index as it was.
func (ix *Index[E]) Deserialize(r io.Reader, doc config.Document) error {
	return ix.load(context.Background(), "stream", func() (index.Algorithm[E], io.Closer, bool, error) {
		if _, err := ix.prepare(doc, config.PhaseDeserialize); err != nil {
			return nil, nil, false, err
		}
		a, err := ix.decode(r)
		return a, nil, false, err
	})
}

// DeserializeFromFile validates doc for the DESERIALIZE_FROM_FILE phase
// and loads the index stored at path. With enable_mmap the file is
// mapped read-only and vectors are used in place; such an index rejects
// inserts with ErrReadOnly and holds the mapping until Close. Compressed
// files cannot be mapped and are read onto the heap.
func (ix *Index[E]) DeserializeFromFile(path string, doc config.Document) error {
	return ix.load(context.Background(), path, func() (index.Algorithm[E], io.Closer, bool, error) {
		cfg, err := ix.prepare(doc, config.PhaseDeserializeFromFile)
		if err != nil {
			return nil, nil, false, err
		}
		if cfg.Base().EnableMmap.Value() {
			m, err := persistence.MmapFile(path)
			if err != nil {
				return nil, nil, false, err
			}
			if mappable(m.Bytes()) {
				a, err := ix.view(m.Bytes())
				if err != nil {
					_ = m.Close()
					return nil, nil, false, err
				}
				return a, m, true, nil
			}
			_ = m.Close()
		}

		var a index.Algorithm[E]
		err = persistence.LoadFromFile(path, func(r io.Reader) error {
			var err error
			a, err = ix.decode(r)
			return err
		})
		return a, nil, false, err
	})
}

// mappable reports whether data holds an uncompressed index.
func mappable(data []byte) bool {
	h, err := persistence.PeekHeader(data)
	return err == nil && h.Compression == persistence.CompressionNone
}

// load runs open under the mutation slot and installs its result.
func (ix *Index[E]) load(ctx context.Context, source string, open func() (index.Algorithm[E], io.Closer, bool, error)) (err error) {
	start := time.Now()
	mapped, rows := false, 0
	defer func() {
		err = translateError(err)
		ix.logger.LogLoad(ctx, source, mapped, rows, err)
		ix.opts.metricsCollector.RecordLoad(string(ix.kind), mapped, time.Since(start), err)
	}()

	release, err := ix.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	a, backing, isMapped, err := open()
	if err != nil {
		return err
	}
	if !isMapped {
		ix.applyCompression(a)
	}
	if err := ix.swap(a, backing); err != nil {
		return err
	}
	mapped, rows = isMapped, a.Count()
	return nil
}

// aborter is implemented by writable blobs that can discard a partial
// upload.
type aborter interface {
	Abort() error
}

// Save writes the index to store under name. Writes are throttled by
// the resource controller's IO limit.
func (ix *Index[E]) Save(ctx context.Context, store blobstore.BlobStore, name string) (err error) {
	defer func() {
		err = translateError(err)
		ix.logger.LogSave(ctx, name, err)
	}()

	a, done, err := ix.backend()
	if err != nil {
		return err
	}
	defer done()

	wb, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := a.SaveIndex(resource.NewThrottledWriter(ctx, wb, ix.opts.resources)); err != nil {
		if ab, ok := wb.(aborter); ok {
			_ = ab.Abort()
		} else {
			_ = wb.Close()
		}
		return err
	}
	if err := wb.Sync(); err != nil {
		_ = wb.Close()
		return err
	}
	return wb.Close()
}

// Load validates doc for the DESERIALIZE_FROM_FILE phase and loads the
// index stored in store under name. With enable_mmap and a store whose
// blobs are memory-resident or mapped, the index aliases the blob.
func (ix *Index[E]) Load(ctx context.Context, store blobstore.BlobStore, name string, doc config.Document) error {
	return ix.load(ctx, name, func() (index.Algorithm[E], io.Closer, bool, error) {
		cfg, err := ix.prepare(doc, config.PhaseDeserializeFromFile)
		if err != nil {
			return nil, nil, false, err
		}
		blob, err := store.Open(ctx, name)
		if err != nil {
			return nil, nil, false, err
		}

		if mb, ok := blob.(blobstore.Mappable); ok && cfg.Base().EnableMmap.Value() {
			data, err := mb.Bytes()
			if err == nil && mappable(data) {
				a, err := ix.view(data)
				if err != nil {
					_ = blob.Close()
					return nil, nil, false, err
				}
				return a, blob, true, nil
			}
		}

		defer func() { _ = blob.Close() }()
		r := resource.NewThrottledReader(ctx, blobstore.NewReader(ctx, blob), ix.opts.resources)
		a, err := ix.decode(r)
		return a, nil, false, err
	})
}

// Publish saves the index as a new snapshot and points CURRENT at it.
// It returns the snapshot name. When CURRENT cannot be written, for
// example because a commit-log store saw a racing publisher, the snapshot
// is deleted again.
func (ix *Index[E]) Publish(ctx context.Context, store blobstore.BlobStore) (string, error) {
	name := fmt.Sprintf("%s%s-%020d.ank", SnapshotPrefix, strings.ToLower(string(ix.kind)), time.Now().UTC().UnixNano())
	if err := ix.Save(ctx, store, name); err != nil {
		return "", err
	}
	if err := blobstore.WriteCurrent(ctx, store, name); err != nil {
		// The snapshot was never published; drop it.
		_ = store.Delete(context.WithoutCancel(ctx), name)
		return "", err
	}
	return name, nil
}

// OpenLatest loads the snapshot CURRENT points at.
func (ix *Index[E]) OpenLatest(ctx context.Context, store blobstore.BlobStore, doc config.Document) error {
	name, err := blobstore.ReadCurrent(ctx, store)
	if err != nil {
		return err
	}
	return ix.Load(ctx, store, name, doc)
}

// Open reads a serialized index of any kind from r and wraps it in an
// Index of the matching kind.
func Open[E space.Element](r io.Reader, optFns ...Option) (*Index[E], error) {
	a, err := index.Load[E](r)
	if err != nil {
		return nil, translateError(err)
	}

	var kind Kind
	switch a.(type) {
	case *hnsw.HNSW[E]:
		kind = KindHNSW
	case *flat.Flat[E]:
		kind = KindFlat
	default:
		return nil, fmt.Errorf("%w: %T", ErrIncompatibleIndex, a)
	}

	ix, err := New[E](string(kind), optFns...)
	if err != nil {
		return nil, err
	}
	ix.applyCompression(a)
	ix.algo = a
	return ix, nil
}
