/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Algorithm names a payload encoding.
// The values follow the IANA HTTP content-coding registry.
// Reference: https://www.iana.org/assignments/http-parameters/http-parameters.xml#content-coding
type Algorithm string

const (
	// None stores payloads as is
	None Algorithm = ""
	// Zstd is the name of the Zstandard compression algorithm.
	Zstd Algorithm = "zstd"
	// Brotli is the name of the brotli compression algorithm.
	Brotli Algorithm = "br"
)

// ErrUnknownAlgorithm is returned when the algorithm is not supported
var ErrUnknownAlgorithm = errors.New("unknown compression algorithm")

// ParseAlgorithm resolves an algorithm from its name.
// "none" and the empty string both resolve to None.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "", "none":
		return None, nil
	case string(Zstd):
		return Zstd, nil
	case string(Brotli), "brotli":
		return Brotli, nil
	default:
		return None, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
	}
}

// String returns the algorithm name
func (a Algorithm) String() string {
	if a == None {
		return "none"
	}
	return string(a)
}

// Compress encodes data with the given algorithm
func Compress(algorithm Algorithm, data []byte) ([]byte, error) {
	switch algorithm {
	case None:
		return data, nil
	case Zstd:
		enc := zstdEncoder()
		defer releaseZstdEncoder(enc)
		return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
	case Brotli:
		buf := new(bytes.Buffer)
		writer := brotliWriter(buf)
		defer releaseBrotliWriter(writer)
		if _, err := writer.Write(data); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

// Decompress decodes data previously encoded by Compress with the same algorithm
func Decompress(algorithm Algorithm, data []byte) ([]byte, error) {
	switch algorithm {
	case None:
		return data, nil
	case Zstd:
		dec := zstdDecoder()
		defer releaseZstdDecoder(dec)
		return dec.DecodeAll(data, nil)
	case Brotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, algorithm)
	}
}

var zstdEncodersPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil)
		return enc
	},
}

func zstdEncoder() *zstd.Encoder {
	enc, ok := zstdEncodersPool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		enc, _ = zstd.NewWriter(nil)
	}
	return enc
}

func releaseZstdEncoder(enc *zstd.Encoder) {
	zstdEncodersPool.Put(enc)
}

var zstdDecodersPool = sync.Pool{
	New: func() any {
		// a single goroutine is enough for EncodeAll/DecodeAll usage
		dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		return dec
	},
}

func zstdDecoder() *zstd.Decoder {
	dec, ok := zstdDecodersPool.Get().(*zstd.Decoder)
	if !ok || dec == nil {
		dec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	}
	return dec
}

func releaseZstdDecoder(dec *zstd.Decoder) {
	zstdDecodersPool.Put(dec)
}

var brotliWritersPool = sync.Pool{
	New: func() any {
		return brotli.NewWriterLevel(nil, brotli.DefaultCompression)
	},
}

func brotliWriter(w io.Writer) *brotli.Writer {
	writer, ok := brotliWritersPool.Get().(*brotli.Writer)
	if !ok || writer == nil {
		writer = brotli.NewWriterLevel(nil, brotli.DefaultCompression)
	}
	writer.Reset(w)
	return writer
}

func releaseBrotliWriter(writer *brotli.Writer) {
	writer.Reset(nil)
	brotliWritersPool.Put(writer)
}
