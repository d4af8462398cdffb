package scalecache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// EntryInfo is a point-in-time description of one stored entry.
type EntryInfo struct {
	Kind        string  `json:"kind" cbor:"kind" msgpack:"kind"`
	Description string  `json:"description" cbor:"description" msgpack:"description"`
	Format      string  `json:"format" cbor:"format" msgpack:"format"`
	Scale       float64 `json:"scale" cbor:"scale" msgpack:"scale"`
	Width       int     `json:"width" cbor:"width" msgpack:"width"`
	Height      int     `json:"height" cbor:"height" msgpack:"height"`
	Bytes       int64   `json:"bytes" cbor:"bytes" msgpack:"bytes"`
	Checksum    uint64  `json:"checksum" cbor:"checksum" msgpack:"checksum"`
	Original    bool    `json:"original" cbor:"original" msgpack:"original"`
}

// Visit calls fn for each stored entry in cache order until fn returns
// false. fn runs without the cache lock held, over the entries present
// when Visit was called.
func (c *Cache) Visit(fn func(Entry) bool) {
	entries, _ := c.entries()
	for _, e := range entries {
		if !fn(e) {
			return
		}
	}
}

func (c *Cache) entries() ([]Entry, Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, c.tree.Len())
	c.tree.Ascend(func(e Entry) bool {
		out = append(out, e)
		return true
	})
	return out, c.original
}

// Snapshot lists the stored entries in cache order.
func (c *Cache) Snapshot() []EntryInfo {
	entries, orig := c.entries()
	out := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		info := EntryInfo{
			Kind:        e.Kind().String(),
			Description: e.String(),
			Bytes:       e.MemoryFootprint(),
			Original:    e == orig,
		}
		if k, ok := e.(interface {
			Scale() float64
			Width() int
		}); ok {
			info.Scale, info.Width = k.Scale(), k.Width()
		}
		if r := e.Payload(); r != nil {
			info.Format = r.Format.String()
			info.Height = r.Height
			info.Checksum = r.Checksum()
		}
		out = append(out, info)
	}
	return out
}

// Dump writes one line per stored entry in cache order. The format is for
// humans and may change.
func (c *Cache) Dump(w io.Writer) error {
	infos := c.Snapshot()
	if _, err := fmt.Fprintf(w, "scalecache: %d entries, %s\n", len(infos), humanize.IBytes(uint64(c.MemoryUsed()))); err != nil {
		return err
	}
	for _, in := range infos {
		mark := " "
		if in.Original {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-48s %4dx%-4d %10s %016x\n",
			mark, in.Description, in.Width, in.Height, humanize.IBytes(uint64(in.Bytes)), in.Checksum); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) String() string {
	var b bytes.Buffer
	_ = c.Dump(&b)
	return b.String()
}
