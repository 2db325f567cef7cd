// Package image implements the on-disk container cmd/mkimage writes and
// cmd/kernel reads at boot to preload more than one named program into
// the fs registry (§4.3, §9: "no persistent storage" rules out a real
// filesystem, not a flat bundle of the ELF binaries execve will need).
//
// The format is a small fixed-record layout rather than a borrowed
// general-purpose serialization library: every entry is already raw ELF
// bytes, so there is nothing here that benefits from a schema-aware
// encoder, and no example repo in the retrieval pack reaches for one for
// a job this shallow.
package image

import (
	"encoding/binary"
	"fmt"
	"io"
)

// magic identifies the container format; Unpack rejects anything else.
const magic = uint32(0x5249_5343) // "RISC" in ASCII, big-endian-ish for readability in a hex dump

// Pack writes entries (path -> ELF bytes) to w in registration order,
// sorted by the caller beforehand if a deterministic on-disk layout
// matters; Pack itself does not sort.
func Pack(w io.Writer, order []string, entries map[string][]byte) error {
	if err := binary.Write(w, binary.BigEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(order))); err != nil {
		return err
	}
	for _, name := range order {
		data, ok := entries[name]
		if !ok {
			return fmt.Errorf("image: pack: %q not present in entries", name)
		}
		if err := writeRecord(w, name, data); err != nil {
			return fmt.Errorf("image: pack %q: %w", name, err)
		}
	}
	return nil
}

func writeRecord(w io.Writer, name string, data []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint64(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// Unpack reads a container Pack wrote, returning the names in their
// original order and the path->bytes map cmd/kernel hands to fs.Register.
func Unpack(r io.Reader) ([]string, map[string][]byte, error) {
	var got uint32
	if err := binary.Read(r, binary.BigEndian, &got); err != nil {
		return nil, nil, fmt.Errorf("image: read magic: %w", err)
	}
	if got != magic {
		return nil, nil, fmt.Errorf("image: bad magic %#x", got)
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, nil, fmt.Errorf("image: read count: %w", err)
	}

	order := make([]string, 0, count)
	entries := make(map[string][]byte, count)
	for i := uint32(0); i < count; i++ {
		name, data, err := readRecord(r)
		if err != nil {
			return nil, nil, fmt.Errorf("image: read record %d: %w", i, err)
		}
		order = append(order, name)
		entries[name] = data
	}
	return order, entries, nil
}

func readRecord(r io.Reader) (name string, data []byte, err error) {
	var nameLen uint32
	if err = binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return "", nil, err
	}
	nameBytes := make([]byte, nameLen)
	if _, err = io.ReadFull(r, nameBytes); err != nil {
		return "", nil, err
	}
	var dataLen uint64
	if err = binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return "", nil, err
	}
	data = make([]byte, dataLen)
	if _, err = io.ReadFull(r, data); err != nil {
		return "", nil, err
	}
	return string(nameBytes), data, nil
}
