package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"lattice/internal/value"
)

// Serializable byte layout for a persisted Chunk (§6): magic, version,
// code bytes, constant pool (tag + payload per entry, floats stored as
// their IEEE-754 bit pattern for bit-exact round-trip), line table,
// local-name table and export list. Parameter names, defaults and phases
// are not written, so a deserialized chunk carries none of them.
// Grounded on sentra's internal/buildutil/build.go serializer, adapted
// from its uint32-instruction / interface{}-constant format to
// Lattice's byte-instruction / tagged-Value format.
const (
	MagicNumber    uint32 = 0x4C415454 // "LATT"
	ChunkVersion   uint32 = 1
	tagNil         byte   = 0
	tagBool        byte   = 1
	tagInt         byte   = 2
	tagFloat       byte   = 3
	tagString      byte   = 4
)

func (c *Chunk) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ChunkVersion); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	if err := writeBytes(w, c.Code); err != nil {
		return fmt.Errorf("write code: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Constants))); err != nil {
		return err
	}
	for i, k := range c.Constants {
		if err := serializeConstant(w, k); err != nil {
			return fmt.Errorf("constant %d: %w", i, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Lines))); err != nil {
		return err
	}
	for _, line := range c.Lines {
		if err := binary.Write(w, binary.LittleEndian, int32(line)); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.LocalNames))); err != nil {
		return err
	}
	for slot, name := range c.LocalNames {
		binary.Write(w, binary.LittleEndian, uint32(slot))
		writeString(w, name)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(c.Exports))); err != nil {
		return err
	}
	for _, name := range c.Exports {
		writeString(w, name)
	}
	return nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func serializeConstant(w io.Writer, v value.Value) error {
	switch v.Kind {
	case value.KindNil, value.KindUnit:
		_, err := w.Write([]byte{tagNil})
		return err
	case value.KindBool:
		b := byte(0)
		if v.B {
			b = 1
		}
		_, err := w.Write([]byte{tagBool, b})
		return err
	case value.KindInt:
		if _, err := w.Write([]byte{tagInt}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, v.I)
	case value.KindFloat:
		if _, err := w.Write([]byte{tagFloat}); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, math.Float64bits(v.F))
	case value.KindString:
		if _, err := w.Write([]byte{tagString}); err != nil {
			return err
		}
		return writeString(w, v.AsString())
	default:
		return fmt.Errorf("constant kind %s is not persistable in a compiled chunk", v.Kind)
	}
}

func Deserialize(r io.Reader) (*Chunk, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("bad magic number %x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	c := NewChunk("<deserialized>")
	code, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read code: %w", err)
	}
	c.Code = code

	var nConst uint32
	if err := binary.Read(r, binary.LittleEndian, &nConst); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nConst; i++ {
		v, err := deserializeConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		c.Constants = append(c.Constants, v)
	}

	var nLines uint32
	if err := binary.Read(r, binary.LittleEndian, &nLines); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nLines; i++ {
		var line int32
		if err := binary.Read(r, binary.LittleEndian, &line); err != nil {
			return nil, err
		}
		c.Lines = append(c.Lines, int(line))
	}

	var nLocals uint32
	if err := binary.Read(r, binary.LittleEndian, &nLocals); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nLocals; i++ {
		var slot uint32
		if err := binary.Read(r, binary.LittleEndian, &slot); err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		c.LocalNames[int(slot)] = name
	}

	var nExports uint32
	if err := binary.Read(r, binary.LittleEndian, &nExports); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nExports; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		c.Exports = append(c.Exports, name)
	}
	return c, nil
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func deserializeConstant(r io.Reader) (value.Value, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return value.Nil(), err
	}
	switch tag[0] {
	case tagNil:
		return value.Nil(), nil
	case tagBool:
		var b [1]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return value.Nil(), err
		}
		return value.Bool(b[0] != 0), nil
	case tagInt:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return value.Nil(), err
		}
		return value.Int(i), nil
	case tagFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return value.Nil(), err
		}
		return value.Float(math.Float64frombits(bits)), nil
	case tagString:
		s, err := readString(r)
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(s), nil
	default:
		return value.Nil(), fmt.Errorf("unknown constant tag %d", tag[0])
	}
}
