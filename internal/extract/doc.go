package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Word 97-2003 binary format (MS-DOC) offsets into the FIB.
const (
	fibIdent      = 0xA5EC
	fibFlagsOff   = 0x000A
	fibCcpTextOff = 0x004C
	fibFcClxOff   = 0x01A2
	fibLcbClxOff  = 0x01A6
	fibMinLen     = 0x01AA

	flagEncrypted = 0x0100
	flagTable1    = 0x0200

	pcdSize        = 8
	fcCompressed   = 0x40000000
	fcOffsetMask   = 0x3FFFFFFF
	clxtPrc        = 0x01
	clxtPcdt       = 0x02
	maxPieceLength = 16 << 20
)

var errNoWordStream = errors.New("WordDocument stream not found")

type fib struct {
	ccpText uint32
	fcClx   uint32
	lcbClx  uint32
	table1  bool
}

func extractDOC(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty doc data")
	}
	cf, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open compound file: %w", err)
	}

	streams := map[string][]byte{}
	for entry, err := cf.Next(); err == nil; entry, err = cf.Next() {
		switch entry.Name {
		case "WordDocument", "0Table", "1Table":
			buf, rerr := io.ReadAll(entry)
			if rerr != nil {
				return "", fmt.Errorf("read %s: %w", entry.Name, rerr)
			}
			streams[entry.Name] = buf
		}
	}

	wordDoc, ok := streams["WordDocument"]
	if !ok {
		return "", errNoWordStream
	}
	f, err := parseFIB(wordDoc)
	if err != nil {
		return "", err
	}
	tableName := "0Table"
	if f.table1 {
		tableName = "1Table"
	}
	table, ok := streams[tableName]
	if !ok {
		return "", fmt.Errorf("%s stream not found", tableName)
	}
	return pieceText(wordDoc, table, f)
}

func parseFIB(wordDoc []byte) (fib, error) {
	if len(wordDoc) < fibMinLen {
		return fib{}, errors.New("fib truncated")
	}
	le := binary.LittleEndian
	if le.Uint16(wordDoc[0:]) != fibIdent {
		return fib{}, errors.New("not a Word binary document")
	}
	flags := le.Uint16(wordDoc[fibFlagsOff:])
	if flags&flagEncrypted != 0 {
		return fib{}, errors.New("document is encrypted")
	}
	return fib{
		ccpText: le.Uint32(wordDoc[fibCcpTextOff:]),
		fcClx:   le.Uint32(wordDoc[fibFcClxOff:]),
		lcbClx:  le.Uint32(wordDoc[fibLcbClxOff:]),
		table1:  flags&flagTable1 != 0,
	}, nil
}

// pieceText walks the piece table (PlcPcd) inside the CLX and decodes the
// main document text, stopping after ccpText characters.
func pieceText(wordDoc, table []byte, f fib) (string, error) {
	plc, err := findPlcPcd(table, f)
	if err != nil {
		return "", err
	}
	if len(plc) < 4 || (len(plc)-4)%(4+pcdSize) != 0 {
		return "", errors.New("malformed piece table")
	}
	n := (len(plc) - 4) / (4 + pcdSize)
	le := binary.LittleEndian
	cp := func(i int) uint32 { return le.Uint32(plc[4*i:]) }
	pcds := plc[4*(n+1):]

	cp1252 := charmap.Windows1252.NewDecoder()
	utf16le := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	var b strings.Builder
	for i := 0; i < n; i++ {
		start, end := cp(i), cp(i+1)
		if f.ccpText > 0 {
			if start >= f.ccpText {
				break
			}
			if end > f.ccpText {
				end = f.ccpText
			}
		}
		if end <= start {
			continue
		}
		count := int(end - start)
		if count > maxPieceLength {
			return "", fmt.Errorf("piece %d too large", i)
		}
		fc := le.Uint32(pcds[i*pcdSize+2:])
		dec, off, ln := utf16le, int(fc&fcOffsetMask), 2*count
		if fc&fcCompressed != 0 {
			dec, off, ln = cp1252, off/2, count
		}
		if off+ln > len(wordDoc) {
			return "", fmt.Errorf("piece %d out of range", i)
		}
		text, err := dec.Bytes(wordDoc[off : off+ln])
		if err != nil {
			return "", fmt.Errorf("decode piece %d: %w", i, err)
		}
		b.Write(text)
	}
	return cleanWordText(b.String()), nil
}

func findPlcPcd(table []byte, f fib) ([]byte, error) {
	start, end := int(f.fcClx), int(f.fcClx)+int(f.lcbClx)
	if f.lcbClx == 0 || end > len(table) || start < 0 {
		return nil, errors.New("clx out of range")
	}
	clx := table[start:end]
	le := binary.LittleEndian
	for pos := 0; pos < len(clx); {
		switch clx[pos] {
		case clxtPrc:
			if pos+3 > len(clx) {
				return nil, errors.New("truncated Prc")
			}
			cb := int(int16(le.Uint16(clx[pos+1:])))
			if cb < 0 {
				return nil, errors.New("negative Prc size")
			}
			pos += 3 + cb
		case clxtPcdt:
			if pos+5 > len(clx) {
				return nil, errors.New("truncated Pcdt")
			}
			lcb := int(le.Uint32(clx[pos+1:]))
			if pos+5+lcb > len(clx) {
				return nil, errors.New("PlcPcd out of range")
			}
			return clx[pos+5 : pos+5+lcb], nil
		default:
			return nil, fmt.Errorf("unexpected clxt 0x%02x", clx[pos])
		}
	}
	return nil, errors.New("no piece table in clx")
}

// cleanWordText maps Word control characters to plain text and drops field
// instructions, keeping field results.
func cleanWordText(s string) string {
	var (
		b      strings.Builder
		fields []bool // true while inside a field instruction
	)
	inInstruction := func() bool {
		for _, v := range fields {
			if v {
				return true
			}
		}
		return false
	}
	for _, r := range s {
		switch r {
		case 0x13: // field begin
			fields = append(fields, true)
			continue
		case 0x14: // field separator
			if len(fields) > 0 {
				fields[len(fields)-1] = false
			}
			continue
		case 0x15: // field end
			if len(fields) > 0 {
				fields = fields[:len(fields)-1]
			}
			continue
		}
		if inInstruction() {
			continue
		}
		switch {
		case r == '\r', r == 0x0B, r == 0x0C:
			b.WriteByte('\n')
		case r == 0x07:
			b.WriteByte('\t')
		case r == '\t' || r == '\n':
			b.WriteRune(r)
		case r < 0x20:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
