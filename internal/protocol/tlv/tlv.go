package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrMissingField     = errors.New("tlv: missing field")
)

// Type IDs. Values are big-endian; floats are IEEE 754 bit patterns.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
	TypeI32    uint8 = 8
	TypeF64    uint8 = 9
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func U32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: TypeU32, Value: buf}
}

func U64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: TypeU64, Value: buf}
}

func I32(id uint16, v int32) Field {
	f := U32(id, uint32(v))
	f.Type = TypeI32
	return f
}

func F64(id uint16, v float64) Field {
	f := U64(id, math.Float64bits(v))
	f.Type = TypeF64
	return f
}

func U32FromBytes(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("tlv: invalid u32 length: %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

func U64FromBytes(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("tlv: invalid u64 length: %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// Reader pulls typed values out of a decoded field list. The first failure
// sticks; later calls return zero values and Err reports it.
type Reader struct {
	fields []Field
	err    error
}

func NewReader(fields []Field) *Reader {
	return &Reader{fields: fields}
}

func (r *Reader) Err() error { return r.err }

func (r *Reader) get(id uint16, typ uint8) ([]byte, bool) {
	if r.err != nil {
		return nil, false
	}
	f, ok := GetField(r.fields, id)
	if !ok {
		r.err = fmt.Errorf("%w: %d", ErrMissingField, id)
		return nil, false
	}
	if err := MustType(f, typ); err != nil {
		r.err = err
		return nil, false
	}
	return f.Value, true
}

func (r *Reader) String(id uint16) string {
	b, ok := r.get(id, TypeString)
	if !ok {
		return ""
	}
	return string(b)
}

func (r *Reader) Bool(id uint16) bool {
	b, ok := r.get(id, TypeBool)
	if !ok {
		return false
	}
	if len(b) != 1 {
		r.err = fmt.Errorf("tlv: invalid bool length: %d", len(b))
		return false
	}
	return b[0] != 0
}

func (r *Reader) U32(id uint16) uint32 {
	b, ok := r.get(id, TypeU32)
	if !ok {
		return 0
	}
	v, err := U32FromBytes(b)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *Reader) U64(id uint16) uint64 {
	b, ok := r.get(id, TypeU64)
	if !ok {
		return 0
	}
	v, err := U64FromBytes(b)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *Reader) I32(id uint16) int32 {
	b, ok := r.get(id, TypeI32)
	if !ok {
		return 0
	}
	v, err := U32FromBytes(b)
	if err != nil {
		r.err = err
	}
	return int32(v)
}

func (r *Reader) F64(id uint16) float64 {
	b, ok := r.get(id, TypeF64)
	if !ok {
		return 0
	}
	v, err := U64FromBytes(b)
	if err != nil {
		r.err = err
	}
	return math.Float64frombits(v)
}
