// Package datastore provides the dataset.Store implementations: an
// in-memory store, a file-per-snapshot store, an S3 store, a JSON-RPC
// client for a remote store, an LRU read cache and the volatile overlay used
// when a workflow is rebuilt without persisting anything.
package datastore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/dshills/vizier/pkg/dataset"
)

const (
	codecMagic   = "VZDS"
	codecVersion = 1
	headerSize   = 4 + 1 + 8
)

// ErrCorrupt is returned when a stored snapshot fails its checksum or cannot be decoded.
var ErrCorrupt = errors.New("datastore: corrupt snapshot")

// Encode serializes a snapshot for blob storage.
// Format: 4 bytes magic + 1 byte version + 8 bytes murmur3 sum of the JSON
// payload + snappy(JSON payload)
func Encode(d *dataset.Dataset) ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset %s: %w", d.ID, err)
	}

	compressed := snappy.Encode(nil, payload)

	buf := make([]byte, headerSize+len(compressed))
	copy(buf[0:4], codecMagic)
	buf[4] = codecVersion
	binary.LittleEndian.PutUint64(buf[5:13], murmur3.Sum64(payload))
	copy(buf[headerSize:], compressed)
	return buf, nil
}

// Decode reconstructs a snapshot written by Encode.
func Decode(data []byte) (*dataset.Dataset, error) {
	if len(data) < headerSize || string(data[0:4]) != codecMagic {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if data[4] != codecVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[4])
	}

	payload, err := snappy.Decode(nil, data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("%w: snappy decompress failed: %v", ErrCorrupt, err)
	}
	if sum := binary.LittleEndian.Uint64(data[5:13]); sum != murmur3.Sum64(payload) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var d dataset.Dataset
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	d.Annotations = d.Annotations.Copy()
	return &d, nil
}
