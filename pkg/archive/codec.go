package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	kio "github.com/flanglet/kanzi-go/v2/io"
)

// codec сжимает и распаковывает снимок целиком, в памяти. Снимки
// читаются редко, поэтому симметрия Encode/Decode важнее потоковости.
type codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
	Ext() string
}

func newCodec(name string, level int) (codec, error) {
	switch name {
	case "", "zstd":
		return newZstdCodec(level)
	case "kanzi":
		return &kanziCodec{}, nil
	}
	return nil, fmt.Errorf("unsupported compression '%s', must be 'zstd' or 'kanzi'", name)
}

// --- zstd ---

type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	if level <= 0 {
		level = 3
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(4),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(4))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdCodec{encoder: encoder, decoder: decoder}, nil
}

func (c *zstdCodec) Encode(data []byte) ([]byte, error) {
	return c.encoder.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decode(data []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress zstd: %w", err)
	}
	return out, nil
}

func (c *zstdCodec) Ext() string { return "zst" }

// --- kanzi ---

// kanziCodec использует текстовый преобразователь kanzi: снимки — это
// CSV, словарная модель TEXT даёт на них заметно лучшую степень сжатия,
// чем универсальные кодеки.
type kanziCodec struct{}

const (
	kanziTransform = "TEXT+RLT"
	kanziEntropy   = "HUFFMAN"
	kanziBlockSize = 4 * 1024 * 1024
	kanziJobs      = 4
)

func (c *kanziCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := kio.NewWriter(nopWriteCloser{&buf}, kanziTransform, kanziEntropy,
		kanziBlockSize, kanziJobs, 0, int64(len(data)), false)
	if err != nil {
		return nil, fmt.Errorf("failed to create kanzi writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress with kanzi: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish kanzi stream: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *kanziCodec) Decode(data []byte) ([]byte, error) {
	r, err := kio.NewReader(io.NopCloser(bytes.NewReader(data)), kanziJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to create kanzi reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress with kanzi: %w", err)
	}
	return out, nil
}

func (c *kanziCodec) Ext() string { return "knz" }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
