package diskback

import (
	"encoding/binary"
	"encoding/json"
	"hash/crc32"
	"time"

	"github.com/westor7/ircd/internal/msgtag"
)

// Stored record: varint headerLen | header | payload | crc32c(header|payload).
// The header is an 8-byte big-endian unix-ms timestamp followed by the JSON
// tag list (an array, so tag order survives); the payload is the line text.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(ts time.Time, tags msgtag.List, line string) ([]byte, error) {
	tagJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	header := make([]byte, 8, 8+len(tagJSON))
	binary.BigEndian.PutUint64(header, uint64(ts.UnixMilli()))
	header = append(header, tagJSON...)
	payload := []byte(line)

	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...), nil
}

type decodedLine struct {
	t    time.Time
	tags msgtag.List
	text string
}

func decodeRecord(b []byte) (decodedLine, bool) {
	if len(b) < 1+8+4 {
		return decodedLine{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 || int(hlen) < 8 || n+int(hlen)+4 > len(b) {
		return decodedLine{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return decodedLine{}, false
	}

	ms := int64(binary.BigEndian.Uint64(header[:8]))
	var tags msgtag.List
	if len(header) > 8 {
		if err := json.Unmarshal(header[8:], &tags); err != nil {
			return decodedLine{}, false
		}
	}
	return decodedLine{
		t:    time.UnixMilli(ms).UTC(),
		tags: tags,
		text: string(payload),
	}, true
}
