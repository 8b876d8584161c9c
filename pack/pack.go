// Package pack implements the OPK pack-image container: a
// fixed power-of-two-size byte array holding a header, a record index, and
// the procedure/data record payloads the device loader reads from a pack
// slot. Record payload checksums use hash/crc32; the header checksum is
// the additive variant the device loader expects (the sum of all header
// bytes, the checksum field included, equals zero mod 256).
package pack

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"strings"
	"time"
)

// RecordType distinguishes a loadable procedure from a plain data blob.
type RecordType byte

const (
	RecordProcedure RecordType = 0
	RecordData      RecordType = 1
)

func (t RecordType) String() string {
	if t == RecordData {
		return "data"
	}
	return "procedure"
}

// SizeClass enumerates the supported pack image sizes: powers of two from
// 8KiB to 128KiB.
type SizeClass uint32

const (
	Size8K   SizeClass = 8 * 1024
	Size16K  SizeClass = 16 * 1024
	Size32K  SizeClass = 32 * 1024
	Size64K  SizeClass = 64 * 1024
	Size128K SizeClass = 128 * 1024
)

// validSizes lists the only SizeClass values Create accepts.
var validSizes = map[SizeClass]bool{Size8K: true, Size16K: true, Size32K: true, Size64K: true, Size128K: true}

// magic opens every pack image.
var magic = [4]byte{'O', 'P', 'K', '1'}

const (
	nameLen = 8
	// headerLen is magic(4) + totalLen(4) + created(4) + checksum(1) +
	// pad(1) + recordCount(2) = 16 bytes, a round number so the record
	// table that follows starts on an even boundary.
	headerLen = 16
	// recordEntryLen is name(8) + type(1) + offset(4) + length(4) +
	// checksum(4, crc32) = 21 bytes.
	recordEntryLen = nameLen + 1 + 4 + 4 + 4
)

// Record is one named payload to place in a pack image.
type Record struct {
	Name    string
	Type    RecordType
	Payload []byte
}

// DirEntry describes one record as read back from an image by Inspect,
// without its payload.
type DirEntry struct {
	Name     string
	Type     RecordType
	Offset   uint32
	Length   uint32
	Checksum uint32
}

// Directory is the ordered list of records an image contains.
type Directory []DirEntry

// DeriveName implements the procedure-name derivation rule:
// strip the extension, uppercase, drop non-alphanumeric characters,
// truncate to 8 characters; the result must start with a letter.
func DeriveName(filename string) (string, error) {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i != -1 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i != -1 {
		base = base[:i]
	}
	var b strings.Builder
	for _, r := range strings.ToUpper(base) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if len(name) > nameLen {
		name = name[:nameLen]
	}
	if name == "" || name[0] < 'A' || name[0] > 'Z' {
		return "", fmt.Errorf("derived procedure name %q does not start with a letter", name)
	}
	return name, nil
}

// padName space-pads and validates a caller-given record name: exactly 8
// bytes once padded, uppercased, and rejecting characters the device
// convention disallows (anything but A-Z, 0-9).
func padName(name string) ([nameLen]byte, error) {
	var out [nameLen]byte
	upper := strings.ToUpper(name)
	if len(upper) > nameLen {
		return out, fmt.Errorf("record name %q longer than %d characters", name, nameLen)
	}
	for i := range out {
		out[i] = ' '
	}
	for i := 0; i < len(upper); i++ {
		c := upper[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return out, fmt.Errorf("record name %q contains disallowed character %q", name, c)
		}
		out[i] = c
	}
	return out, nil
}

func trimName(b [nameLen]byte) string {
	return strings.TrimRight(string(b[:]), " ")
}

// Create builds a pack image of the given size class from records,
// rejecting duplicate names, oversize payloads, and invalid record names.
func Create(records []Record, size SizeClass, created time.Time) ([]byte, error) {
	if !validSizes[size] {
		return nil, fmt.Errorf("unsupported pack size %d", size)
	}

	seen := map[string]bool{}
	type built struct {
		name [nameLen]byte
		typ  RecordType
		data []byte
	}
	entries := make([]built, 0, len(records))
	for _, r := range records {
		nb, err := padName(r.Name)
		if err != nil {
			return nil, err
		}
		key := trimName(nb)
		if seen[key] {
			return nil, fmt.Errorf("duplicate record name %q", key)
		}
		seen[key] = true
		entries = append(entries, built{name: nb, typ: r.Type, data: r.Payload})
	}

	tableLen := recordEntryLen * len(entries)
	offset := uint32(headerLen + tableLen)
	payloadStart := offset
	var payloads []byte
	table := make([]byte, 0, tableLen)
	for _, e := range entries {
		sum := crc32.ChecksumIEEE(e.data)
		table = append(table, e.name[:]...)
		table = append(table, byte(e.typ))
		table = binary.BigEndian.AppendUint32(table, offset)
		table = binary.BigEndian.AppendUint32(table, uint32(len(e.data)))
		table = binary.BigEndian.AppendUint32(table, sum)
		payloads = append(payloads, e.data...)
		offset += uint32(len(e.data))
	}

	total := int(offset)
	if total > int(size) {
		return nil, fmt.Errorf("records (%d bytes from offset %d) overflow %d-byte pack", total-int(payloadStart), payloadStart, size)
	}

	// Everything outside the header, table, and payloads reads as erased
	// EPROM, so the image can be programmed onto a pack directly.
	img := make([]byte, size)
	for i := range img {
		img[i] = 0xFF
	}
	copy(img[:4], magic[:])
	binary.BigEndian.PutUint32(img[4:8], uint32(size))
	binary.BigEndian.PutUint32(img[8:12], uint32(created.Unix()))
	binary.BigEndian.PutUint16(img[14:16], uint16(len(entries)))
	copy(img[headerLen:], table)
	copy(img[headerLen+tableLen:], payloads)
	img[12] = headerChecksum(img)
	return img, nil
}

// headerChecksum computes the additive header checksum: the byte value
// that, added to every other header byte, makes the sum zero mod 256.
func headerChecksum(img []byte) byte {
	var sum byte
	for i := 0; i < headerLen; i++ {
		if i == 12 {
			continue
		}
		sum += img[i]
	}
	return byte(-sum)
}

// Inspect validates an image (magic, total length, header checksum, every
// record's payload fitting within its declared length, every record
// checksum, no duplicate names) and returns its directory. A failure at
// any check rejects the file and names the offending field.
func Inspect(img []byte) (Directory, error) {
	if len(img) < headerLen {
		return nil, fmt.Errorf("pack too short for header: %d bytes", len(img))
	}
	if string(img[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("bad magic: %q", img[:4])
	}
	total := binary.BigEndian.Uint32(img[4:8])
	if int(total) != len(img) {
		return nil, fmt.Errorf("total length mismatch: header says %d, file is %d bytes", total, len(img))
	}
	wantChecksum := headerChecksum(img)
	if img[12] != wantChecksum {
		return nil, fmt.Errorf("header checksum mismatch: want %#02x, got %#02x", wantChecksum, img[12])
	}
	count := int(binary.BigEndian.Uint16(img[14:16]))

	tableStart := headerLen
	tableLen := recordEntryLen * count
	if tableStart+tableLen > len(img) {
		return nil, fmt.Errorf("record table (%d entries) overruns pack image", count)
	}

	dir := make(Directory, 0, count)
	seen := map[string]bool{}
	for i := 0; i < count; i++ {
		entry := img[tableStart+i*recordEntryLen: tableStart+(i+1)*recordEntryLen]
		var nb [nameLen]byte
		copy(nb[:], entry[:nameLen])
		name := trimName(nb)
		if seen[name] {
			return nil, fmt.Errorf("duplicate record name %q", name)
		}
		seen[name] = true
		typ := RecordType(entry[nameLen])
		off := binary.BigEndian.Uint32(entry[nameLen+1: nameLen+5])
		length := binary.BigEndian.Uint32(entry[nameLen+5: nameLen+9])
		sum := binary.BigEndian.Uint32(entry[nameLen+9: nameLen+13])

		if uint64(off)+uint64(length) > uint64(len(img)) {
			return nil, fmt.Errorf("record %q payload (offset %d, length %d) overruns pack image", name, off, length)
		}
		payload := img[off: off+length]
		if got := crc32.ChecksumIEEE(payload); got != sum {
			return nil, fmt.Errorf("record %q checksum mismatch: want %#08x, got %#08x", name, sum, got)
		}
		dir = append(dir, DirEntry{Name: name, Type: typ, Offset: off, Length: length, Checksum: sum})
	}

	return dir, nil
}

// Extract returns one record's payload bytes by name, re-validating the
// image first.
func Extract(img []byte, name string) ([]byte, error) {
	dir, err := Inspect(img)
	if err != nil {
		return nil, err
	}
	upper := strings.ToUpper(name)
	for _, e := range dir {
		if e.Name == upper {
			return img[e.Offset: e.Offset+e.Length], nil
		}
	}
	return nil, fmt.Errorf("no record named %q in pack", name)
}
