// Package objectstore abstracts where sealed archives are durably kept.
// The local backend is the filesystem paths spec.md §6 names directly;
// the Azure backend is an optional secondary replication target for
// operators who want archives mirrored off-host, grounded on
// legacy/massifs/blobreader.go and massifcommitter.go's Put/Reader usage
// of github.com/datatrails/go-datatrails-common/azblob.
package objectstore

import "context"

// Store is the narrow interface the Archiver's optional replication step
// depends on.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
