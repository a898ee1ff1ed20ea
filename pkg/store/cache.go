package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Cache is a bbolt-backed embedding cache. Both evaluation runs over a
// task touch the same corpus, so pooled chunk vectors and token embedding
// matrices are cached keyed by model, pooling mode and content hash.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) a cache database at path
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key builds a cache key from the model, pooling mode and content
func Key(model, mode, content string) string {
	sum := sha256.Sum256([]byte(content))
	return model + "|" + mode + "|" + hex.EncodeToString(sum[:])
}

// GetVector returns a cached pooled vector, reporting whether it was found
func (c *Cache) GetVector(bucket, key string) ([]float32, bool, error) {
	var vec []float32
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		v, err := decodeVector(data)
		if err != nil {
			return err
		}
		vec = v
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}
	return vec, found, nil
}

// PutVector stores a pooled vector
func (c *Cache) PutVector(bucket, key string, vec []float32) error {
	data := encodeVector(vec)
	err := c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// GetMatrix returns a cached token embedding matrix, reporting whether it
// was found
func (c *Cache) GetMatrix(bucket, key string) ([][]float32, bool, error) {
	var mat [][]float32
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		m, err := decodeMatrix(data)
		if err != nil {
			return err
		}
		mat = m
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}
	return mat, found, nil
}

// PutMatrix stores a token embedding matrix
func (c *Cache) PutMatrix(bucket, key string, mat [][]float32) error {
	data, err := encodeMatrix(mat)
	if err != nil {
		return err
	}
	err = c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// encodeVector packs a float32 vector as length-prefixed little-endian bits
func encodeVector(vec []float32) []byte {
	data := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(data, uint32(len(vec)))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(data[4+4*i:], math.Float32bits(v))
	}
	return data
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("vector record too short: %d bytes", len(data))
	}
	n := int(binary.LittleEndian.Uint32(data))
	if len(data) != 4+4*n {
		return nil, fmt.Errorf("vector record size mismatch: header says %d floats, have %d bytes", n, len(data)-4)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+4*i:]))
	}
	return vec, nil
}

// encodeMatrix packs a row-major matrix as rows, cols then float32 bits.
// Rows must share one width.
func encodeMatrix(mat [][]float32) ([]byte, error) {
	rows := len(mat)
	cols := 0
	if rows > 0 {
		cols = len(mat[0])
	}
	data := make([]byte, 8+4*rows*cols)
	binary.LittleEndian.PutUint32(data, uint32(rows))
	binary.LittleEndian.PutUint32(data[4:], uint32(cols))
	for i, row := range mat {
		if len(row) != cols {
			return nil, fmt.Errorf("ragged matrix: row %d has %d cols, expected %d", i, len(row), cols)
		}
		for j, v := range row {
			binary.LittleEndian.PutUint32(data[8+4*(i*cols+j):], math.Float32bits(v))
		}
	}
	return data, nil
}

func decodeMatrix(data []byte) ([][]float32, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("matrix record too short: %d bytes", len(data))
	}
	rows := int(binary.LittleEndian.Uint32(data))
	cols := int(binary.LittleEndian.Uint32(data[4:]))
	if len(data) != 8+4*rows*cols {
		return nil, fmt.Errorf("matrix record size mismatch: header says %dx%d, have %d bytes", rows, cols, len(data)-8)
	}
	mat := make([][]float32, rows)
	for i := range mat {
		row := make([]float32, cols)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[8+4*(i*cols+j):]))
		}
		mat[i] = row
	}
	return mat, nil
}
