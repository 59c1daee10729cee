package history

import (
	"bytes"
	"errors"
	"fmt"

	"flashback/internal/history/interfaces"

	"github.com/klauspost/compress/zstd"
)

// maxSnapshotMemory caps what a decoded snapshot may allocate.
const maxSnapshotMemory = 2 << 30

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	ErrNotCompressed = errors.New("snapshot is not zstd-compressed")
)

// SnapshotCodec compresses snapshot files. Only the scheduler writes
// snapshots, so single-threaded coders are enough.
type SnapshotCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func NewSnapshotCodec() (interfaces.CompressorInterface, error) {
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxSnapshotMemory),
	)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &SnapshotCodec{encoder: encoder, decoder: decoder}, nil
}

func (c *SnapshotCodec) Compress(val []byte) ([]byte, error) {
	return c.encoder.EncodeAll(val, nil), nil
}

// Decompress accepts an empty input as an empty snapshot body.
func (c *SnapshotCodec) Decompress(val []byte) ([]byte, error) {
	if len(val) == 0 {
		return nil, nil
	}
	if !bytes.HasPrefix(val, zstdMagic) {
		return nil, ErrNotCompressed
	}
	out, err := c.decoder.DecodeAll(val, nil)
	if err != nil {
		return nil, fmt.Errorf("corrupt snapshot frame: %w", err)
	}
	return out, nil
}

func (c *SnapshotCodec) Close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}
