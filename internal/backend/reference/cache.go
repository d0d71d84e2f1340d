package reference

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/born-ml/mnn/internal/native"
)

const cacheMagic = "MNNREFC1"

// Cache envelope field numbers.
const (
	fieldMagic protowire.Number = 1
	fieldKey   protowire.Number = 2
	fieldModel protowire.Number = 3
	fieldOps   protowire.Number = 4
)

// ErrCacheMismatch is returned when a cache file belongs to another model.
var ErrCacheMismatch = errors.New("cache key mismatch")

type cacheHeader struct {
	Key   []byte
	Model string
	Ops   uint64
}

// cacheKey hashes the first keySize bytes of the model source.
func cacheKey(model []byte, keySize int) []byte {
	if keySize > 0 && keySize < len(model) {
		model = model[:keySize]
	}
	sum := sha256.Sum256(model)
	return sum[:]
}

func encodeCache(h cacheHeader) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMagic, protowire.BytesType)
	b = protowire.AppendString(b, cacheMagic)
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendBytes(b, h.Key)
	b = protowire.AppendTag(b, fieldModel, protowire.BytesType)
	b = protowire.AppendString(b, h.Model)
	b = protowire.AppendTag(b, fieldOps, protowire.VarintType)
	b = protowire.AppendVarint(b, h.Ops)
	return b
}

func decodeCache(b []byte) (cacheHeader, error) {
	var h cacheHeader
	magic := false
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return h, fmt.Errorf("cache tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldMagic && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return h, fmt.Errorf("cache magic: %w", protowire.ParseError(n))
			}
			magic = v == cacheMagic
			b = b[n:]
		case num == fieldKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return h, fmt.Errorf("cache key: %w", protowire.ParseError(n))
			}
			h.Key = bytes.Clone(v)
			b = b[n:]
		case num == fieldModel && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return h, fmt.Errorf("cache model: %w", protowire.ParseError(n))
			}
			h.Model = v
			b = b[n:]
		case num == fieldOps && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return h, fmt.Errorf("cache ops: %w", protowire.ParseError(n))
			}
			h.Ops = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return h, fmt.Errorf("cache field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !magic {
		return h, errors.New("not a cache file")
	}
	return h, nil
}

// SetCacheFile names the cache file and checks whether it already matches
// the model.
func (r *Runtime) SetCacheFile(net native.Net, path string, keySize int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nets[net]
	if n == nil {
		return
	}
	n.cachePath, n.keySize, n.cacheValid = path, keySize, false

	data, err := os.ReadFile(path)
	if err != nil {
		r.log.V(4).Info("no cache file yet", "path", path)
		return
	}
	h, err := decodeCache(data)
	if err != nil {
		r.log.Info("ignoring unreadable cache file", "path", path, "err", err)
		return
	}
	if !bytes.Equal(h.Key, cacheKey(n.model.raw, keySize)) {
		r.log.Info("ignoring cache file", "path", path, "err", ErrCacheMismatch)
		return
	}
	n.cacheValid = true
	r.stats.cacheHits.Add(1)
}

// UpdateCacheFile writes the cache file unless it already matches.
func (r *Runtime) UpdateCacheFile(net native.Net, session native.Session) native.ErrorCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nets[net]
	if n == nil || r.sessions[session] == nil {
		return native.InvalidValue
	}
	if n.cachePath == "" {
		return native.NotSupport
	}
	if n.cacheValid {
		return native.NoError
	}
	data := encodeCache(cacheHeader{
		Key:   cacheKey(n.model.raw, n.keySize),
		Model: n.model.Name,
		Ops:   uint64(len(n.model.Ops)),
	})
	if err := writeFileAtomic(n.cachePath, data); err != nil {
		r.log.Error(err, "writing cache file", "path", n.cachePath)
		return native.InvalidValue
	}
	n.cacheValid = true
	r.stats.cacheWrites.Add(1)
	return native.NoError
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
