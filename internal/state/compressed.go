package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MetaEncoding marks records written by CompressedStore.
const (
	MetaEncoding = "content-encoding"
	encodingZstd = "zstd"
)

// CompressedStore zstd-compresses values before handing them to the next store.
// Values smaller than threshold are written as-is.
type CompressedStore struct {
	next      Store
	threshold int

	encoder     *zstd.Encoder
	decoderPool sync.Pool
}

// NewCompressedStore wraps next.
func NewCompressedStore(next Store, threshold int) (*CompressedStore, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &CompressedStore{
		next:      next,
		threshold: threshold,
		encoder:   enc,
		decoderPool: sync.Pool{
			New: func() any {
				d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				if err != nil {
					// Cannot fail with nil input and default options.
					panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
				}
				return d
			},
		},
	}, nil
}

// Write implements Store. Compressed records carry content-encoding=zstd.
func (c *CompressedStore) Write(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	if len(value) < c.threshold {
		return c.next.Write(ctx, key, value, metadata)
	}
	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	md[MetaEncoding] = encodingZstd
	return c.next.Write(ctx, key, c.encoder.EncodeAll(value, nil), md)
}

// Read implements Reader when the wrapped store does. Values that are not
// zstd frames are returned unchanged.
func (c *CompressedStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	r, ok := c.next.(Reader)
	if !ok {
		return nil, false, persistenceError("read", key, fmt.Errorf("wrapped store is write-only"))
	}
	raw, found, err := r.Read(ctx, key)
	if err != nil || !found {
		return raw, found, err
	}
	if !isZstdFrame(raw) {
		return raw, true, nil
	}
	dec := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(dec)
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, persistenceError("decompress", key, err)
	}
	return out, true, nil
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

func isZstdFrame(b []byte) bool {
	if len(b) < len(zstdMagic) {
		return false
	}
	for i, m := range zstdMagic {
		if b[i] != m {
			return false
		}
	}
	return true
}

var _ ReadWriter = (*CompressedStore)(nil)
