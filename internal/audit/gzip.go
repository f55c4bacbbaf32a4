// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

const maxChunkSize = 64 << 20

var errChunkTooLarge = errors.New("decompressed chunk exceeds 64MB")

var gzipWriterPool = sync.Pool{
	New: func() any { return gzip.NewWriter(nil) },
}

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// compress gzips data with pooled writers and buffers.
func compress(data []byte) ([]byte, error) {
	buf := bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufPool.Put(buf)

	gw := gzipWriterPool.Get().(*gzip.Writer)
	gw.Reset(buf)
	defer func() {
		gw.Reset(nil)
		gzipWriterPool.Put(gw)
	}()

	if _, err := gw.Write(data); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

// decompress reverses compress, refusing output larger than maxChunkSize.
func decompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	out, err := io.ReadAll(io.LimitReader(gr, maxChunkSize+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxChunkSize {
		return nil, errChunkTooLarge
	}
	return out, nil
}
