package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbeddingBlob renders a float32 vector as the legacy
// scene_embeddings BLOB format: 4 bytes little-endian dimension count
// followed by dimensions*4 bytes of little-endian float32 values. Kept
// for migrate_from_blob_storage and for writing the sidecar column
// alongside the in-memory HNSW index.
func EncodeEmbeddingBlob(vec []float32) []byte {
	buf := make([]byte, 4+len(vec)*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4+i*4:8+i*4], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbeddingBlob parses the format EncodeEmbeddingBlob produces.
func DecodeEmbeddingBlob(buf []byte) ([]float32, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("embedding blob too short: %d bytes", len(buf))
	}
	dims := binary.LittleEndian.Uint32(buf[0:4])
	want := 4 + int(dims)*4
	if len(buf) != want {
		return nil, fmt.Errorf("embedding blob length mismatch: want %d bytes for %d dims, got %d", want, dims, len(buf))
	}
	vec := make([]float32, dims)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(buf[4+i*4 : 8+i*4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
