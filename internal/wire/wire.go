// Package wire encodes shard payloads for the remote document store.
//
// A payload is the JSON shard map, zstd compressed and base64 encoded so it
// stays plain ASCII text inside a document file.
package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/listenupapp/tagsync/internal/domain"
)

var (
	encOnce sync.Once
	encoder *zstd.Encoder
	decOnce sync.Once
	decoder *zstd.Decoder
)

func getEncoder() *zstd.Encoder {
	encOnce.Do(func() {
		// nil writer with default options cannot fail
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	})
	return encoder
}

func getDecoder() *zstd.Decoder {
	decOnce.Do(func() {
		decoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
	})
	return decoder
}

// Compress returns the text form of s.
func Compress(s string) string {
	packed := getEncoder().EncodeAll([]byte(s), nil)
	return base64.StdEncoding.EncodeToString(packed)
}

// Decompress reverses Compress. An empty string decodes to an empty string.
func Decompress(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	packed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	raw, err := getDecoder().DecodeAll(packed, nil)
	if err != nil {
		return "", fmt.Errorf("decompress: %w", err)
	}
	return string(raw), nil
}

// EncodeShard serializes and compresses a shard map.
func EncodeShard(records map[string]*domain.PostTagRecord) (string, error) {
	if records == nil {
		records = map[string]*domain.PostTagRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode shard: %w", err)
	}
	return Compress(string(data)), nil
}

// DecodeShard decompresses a shard payload to its JSON text. The JSON is
// untrusted and must be sanitized by the caller.
func DecodeShard(content string) ([]byte, error) {
	s, err := Decompress(content)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
