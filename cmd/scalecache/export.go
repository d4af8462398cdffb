package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/unkn0wn-root/scalecache"
	"github.com/unkn0wn-root/scalecache/codec"
)

// maxExport bounds what inspect will decode.
const maxExport = 64 << 20

// record is EntryInfo with the checksum spelled in hex, since protobuf
// values carry numbers as float64.
type record struct {
	Kind        string  `json:"kind" cbor:"kind" msgpack:"kind"`
	Description string  `json:"description" cbor:"description" msgpack:"description"`
	Format      string  `json:"format" cbor:"format" msgpack:"format"`
	Scale       float64 `json:"scale" cbor:"scale" msgpack:"scale"`
	Width       int     `json:"width" cbor:"width" msgpack:"width"`
	Height      int     `json:"height" cbor:"height" msgpack:"height"`
	Bytes       int64   `json:"bytes" cbor:"bytes" msgpack:"bytes"`
	Checksum    string  `json:"checksum" cbor:"checksum" msgpack:"checksum"`
	Original    bool    `json:"original" cbor:"original" msgpack:"original"`
}

type export struct {
	Version int      `json:"version" cbor:"version" msgpack:"version"`
	Entries []record `json:"entries" cbor:"entries" msgpack:"entries"`
}

func toExport(infos []scalecache.EntryInfo) export {
	out := export{Version: 1, Entries: make([]record, 0, len(infos))}
	for _, in := range infos {
		out.Entries = append(out.Entries, record{
			Kind:        in.Kind,
			Description: in.Description,
			Format:      in.Format,
			Scale:       in.Scale,
			Width:       in.Width,
			Height:      in.Height,
			Bytes:       in.Bytes,
			Checksum:    strconv.FormatUint(in.Checksum, 16),
			Original:    in.Original,
		})
	}
	return out
}

func exportCodec(format string) (codec.Codec[export], error) {
	c, ok := codec.ByName[export](format)
	if !ok {
		return nil, fmt.Errorf("unknown export format %q", format)
	}
	return codec.Limit[export]{Inner: c, MaxDecode: maxExport}, nil
}

func writeExport(path, format string, infos []scalecache.EntryInfo) error {
	c, err := exportCodec(format)
	if err != nil {
		return err
	}
	b, err := c.Encode(toExport(infos))
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return os.WriteFile(path, b, 0o644)
}

func readExport(path, format string) (export, error) {
	c, err := exportCodec(format)
	if err != nil {
		return export{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return export{}, err
	}
	out, err := c.Decode(b)
	if err != nil {
		return export{}, fmt.Errorf("decode %s: %w", format, err)
	}
	return out, nil
}
