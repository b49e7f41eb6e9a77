package safetensors

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"
)

// IndexFile is the conventional name of a sharded checkpoint index.
const IndexFile = "model.safetensors.index.json"

// Checkpoint is a model stored in one or more safetensors shards.
type Checkpoint struct {
	Shards []*File
	owner  map[string]*File
}

type shardIndex struct {
	WeightMap map[string]string `json:"weight_map"`
}

// OpenCheckpoint opens a single .safetensors file, a sharded index file or a
// directory holding either model.safetensors or an index.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		idx := filepath.Join(path, IndexFile)
		if _, err := os.Stat(idx); err == nil {
			return openIndex(idx)
		}
		path = filepath.Join(path, "model.safetensors")
	} else if filepath.Base(path) == IndexFile || filepath.Ext(path) == ".json" {
		return openIndex(path)
	}
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	return newCheckpoint([]*File{f})
}

func openIndex(path string) (*Checkpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx shardIndex
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("%w: index %s: %v", ErrCorrupt, path, err)
	}
	if len(idx.WeightMap) == 0 {
		return nil, fmt.Errorf("%w: index %s has an empty weight_map", ErrCorrupt, path)
	}

	dir := filepath.Dir(path)
	names := slices.Sorted(maps.Values(idx.WeightMap))
	names = slices.Compact(names)
	shards := make([]*File, 0, len(names))
	for _, name := range names {
		f, err := Open(filepath.Join(dir, name))
		if err != nil {
			for _, s := range shards {
				_ = s.Close()
			}
			return nil, fmt.Errorf("open shard %s: %w", name, err)
		}
		shards = append(shards, f)
	}
	return newCheckpoint(shards)
}

func newCheckpoint(shards []*File) (*Checkpoint, error) {
	c := &Checkpoint{Shards: shards, owner: make(map[string]*File)}
	for _, f := range shards {
		for name := range f.Tensors {
			if prev, dup := c.owner[name]; dup {
				_ = c.Close()
				return nil, fmt.Errorf("%w: tensor %q in both %s and %s", ErrCorrupt, name, prev.Path, f.Path)
			}
			c.owner[name] = f
		}
	}
	return c, nil
}

func (c *Checkpoint) Close() error {
	var errs []error
	for _, f := range c.Shards {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

func (c *Checkpoint) Names() []string {
	return slices.Sorted(maps.Keys(c.owner))
}

func (c *Checkpoint) Tensor(name string) (TensorInfo, bool) {
	f, ok := c.owner[name]
	if !ok {
		return TensorInfo{}, false
	}
	return f.Tensor(name)
}

func (c *Checkpoint) ReadF32(name string) ([]float32, TensorInfo, error) {
	f, ok := c.owner[name]
	if !ok {
		return nil, TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return f.ReadF32(name)
}

// CountParams sums the element counts over all shards.
func (c *Checkpoint) CountParams() int64 {
	var n int64
	for _, f := range c.Shards {
		n += f.CountParams()
	}
	return n
}

// Len is the number of tensors in the checkpoint.
func (c *Checkpoint) Len() int { return len(c.owner) }
