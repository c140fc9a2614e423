package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
)

// Constant pool tags.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// ConstantPool indexes the raw constant pool of a class. Entries are decoded
// on demand; nothing is copied out of the class bytes.
type ConstantPool struct {
	data    []byte
	tags    []byte
	offsets []int // payload offset per index; slot 0 and Long/Double tails are unused
}

func parsePool(r *reader) (*ConstantPool, error) {
	count := int(r.u2())
	if r.err != nil {
		return nil, r.err
	}
	p := &ConstantPool{
		data:    r.data,
		tags:    make([]byte, count),
		offsets: make([]int, count),
	}
	for i := 1; i < count; i++ {
		tag := r.u1()
		p.tags[i] = tag
		p.offsets[i] = r.off
		switch tag {
		case TagUtf8:
			r.skip(int(r.u2()))
		case TagInteger, TagFloat, TagFieldref, TagMethodref, TagInterfaceMethodref,
			TagNameAndType, TagDynamic, TagInvokeDynamic:
			r.skip(4)
		case TagLong, TagDouble:
			r.skip(8)
			i++ // eight-byte constants take two slots
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			r.skip(2)
		case TagMethodHandle:
			r.skip(3)
		default:
			if r.err != nil {
				return nil, r.err
			}
			return nil, fmt.Errorf("unknown constant pool tag %d at index %d (offset %d)", tag, i, r.off-1)
		}
		if r.err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, r.err)
		}
	}
	return p, nil
}

// Len returns constant_pool_count, one more than the highest index.
func (p *ConstantPool) Len() int {
	return len(p.tags)
}

// Tag returns the tag at index i, or 0 for unusable slots.
func (p *ConstantPool) Tag(i int) byte {
	if i <= 0 || i >= len(p.tags) {
		return 0
	}
	return p.tags[i]
}

func (p *ConstantPool) entry(i int, tag byte) (int, error) {
	if got := p.Tag(i); got != tag {
		return 0, fmt.Errorf("constant pool index %d: want tag %d, have %d", i, tag, got)
	}
	return p.offsets[i], nil
}

// UTF8 decodes the CONSTANT_Utf8 entry at index i.
func (p *ConstantPool) UTF8(i int) (string, error) {
	off, err := p.entry(i, TagUtf8)
	if err != nil {
		return "", err
	}
	n := int(binary.BigEndian.Uint16(p.data[off:]))
	return decodeModifiedUTF8(p.data[off+2 : off+2+n]), nil
}

// ClassName returns the internal name referenced by the CONSTANT_Class at i.
func (p *ConstantPool) ClassName(i int) (string, error) {
	off, err := p.entry(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.UTF8(int(binary.BigEndian.Uint16(p.data[off:])))
}

// Literal renders a loadable constant (Integer, Float, Long, Double, String
// or Utf8) as text.
func (p *ConstantPool) Literal(i int) (string, error) {
	switch p.Tag(i) {
	case TagUtf8:
		return p.UTF8(i)
	case TagString:
		off := p.offsets[i]
		return p.UTF8(int(binary.BigEndian.Uint16(p.data[off:])))
	case TagInteger:
		v := int32(binary.BigEndian.Uint32(p.data[p.offsets[i]:]))
		return strconv.FormatInt(int64(v), 10), nil
	case TagFloat:
		v := math.Float32frombits(binary.BigEndian.Uint32(p.data[p.offsets[i]:]))
		return strconv.FormatFloat(float64(v), 'g', -1, 32), nil
	case TagLong:
		v := int64(binary.BigEndian.Uint64(p.data[p.offsets[i]:]))
		return strconv.FormatInt(v, 10), nil
	case TagDouble:
		v := math.Float64frombits(binary.BigEndian.Uint64(p.data[p.offsets[i]:]))
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("constant pool index %d: tag %d is not a literal", i, p.Tag(i))
	}
}

// decodeModifiedUTF8 decodes the JVM's modified UTF-8: NUL is two bytes and
// supplementary characters are stored as surrogate pairs.
func decodeModifiedUTF8(b []byte) string {
	plain := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			plain = false
			break
		}
	}
	if plain {
		return string(b)
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return string(utf16.Decode(units))
}
