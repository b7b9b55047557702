package diskback

import "encoding/binary"

// Keyspace layout (byte-wise, lexicographically sortable):
//
//	hist \x00 {key} \x00 m                   object meta (last assigned seq, BE8)
//	hist \x00 {key} \x00 e \x00 {seq_be8}    one stored line
//
// The NUL separator cannot occur in a conversation key, so keys that are
// prefixes of one another can never alias each other's ranges.

var (
	histPrefix = []byte("hist\x00")
	sep        = byte(0x00)
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyMeta builds the object metadata key.
func keyMeta(object string) []byte {
	k := make([]byte, 0, len(histPrefix)+len(object)+2)
	k = append(k, histPrefix...)
	k = append(k, object...)
	k = append(k, sep, 'm')
	return k
}

func keyEntryPrefix(object string) []byte {
	k := make([]byte, 0, len(histPrefix)+len(object)+3)
	k = append(k, histPrefix...)
	k = append(k, object...)
	k = append(k, sep, 'e', sep)
	return k
}

// keyEntry builds the line key; the big-endian sequence keeps arrival order.
func keyEntry(object string, seq uint64) []byte {
	return appendBE8(keyEntryPrefix(object), seq)
}

// entryBounds returns the [low, high) iterator bounds covering every line
// of object.
func entryBounds(object string) (low, high []byte) {
	low = keyEntry(object, 0)
	high = append(keyEntry(object, ^uint64(0)), 0x00)
	return low, high
}

func seqFromKey(prefix, key []byte) uint64 {
	if len(key) != len(prefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(prefix):])
}
