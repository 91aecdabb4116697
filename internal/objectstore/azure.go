package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/azblob"
)

// blobStore narrows github.com/datatrails/go-datatrails-common/azblob's
// client to the two calls legacy/massifs/massifcommitter.go and
// blobreader.go make: Put to write a blob and Reader to stream one back.
// Constructing the concrete client (credentials, container, endpoint) is
// environment-specific and is the caller's responsibility, the same way
// legacy/massifs leaves credential wiring to its own callers.
type blobStore interface {
	Put(ctx context.Context, identity string, content azblob.ReaderCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	Reader(ctx context.Context, identity string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
}

// AzureStore replicates archive objects to Azure Blob Storage, for
// operators who opt into off-host archive replication. It is a secondary
// target; the LocalStore copy under archive_base_path remains the
// authoritative one spec.md §6 describes.
type AzureStore struct {
	client blobStore
}

// NewAzureStore wraps an already-constructed azblob client.
func NewAzureStore(client blobStore) *AzureStore {
	return &AzureStore{client: client}
}

// Put uploads data under key, unconditionally overwriting any existing
// blob at that identity.
func (s *AzureStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.Put(ctx, key, azblob.NewBytesReaderCloser(data))
	if err != nil {
		return fmt.Errorf("objectstore: azure put %s: %w", key, err)
	}
	return nil
}

// Get downloads the blob at key.
func (s *AzureStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.Reader(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("objectstore: azure get %s: %w", key, err)
	}
	defer resp.Close()
	return io.ReadAll(resp)
}

// Delete is not supported by the narrow blobStore interface; archive
// retention against the Azure replica is managed by a lifecycle policy on
// the container rather than per-object deletes from this process.
func (s *AzureStore) Delete(ctx context.Context, key string) error {
	return fmt.Errorf("objectstore: azure delete not supported, manage retention via container lifecycle policy")
}

var _ Store = (*AzureStore)(nil)
