package vm

import (
	"bytes"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Bundle is the serialized form of one compiled module: its module artifact
// followed by its holder artifacts.
type Bundle struct {
	Module    string
	Artifacts []*Artifact
}

// bundleMagic starts every serialized bundle.
var bundleMagic = []byte{'M', 'M', 'L', 'B'}

const bundleVersion byte = 0x01

// Serialize converts a Bundle to binary format.
// Format:
// - Magic number (4 bytes): "MMLB"
// - Version (1 byte): 0x01
// - protobuf wire encoded bundle
func (b *Bundle) Serialize() []byte {
	out := append([]byte{}, bundleMagic...)
	out = append(out, bundleVersion)
	out = protowire.AppendTag(out, 1, protowire.BytesType)
	out = protowire.AppendString(out, b.Module)
	for _, a := range b.Artifacts {
		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendBytes(out, encodeArtifact(a))
	}
	return out
}

// Deserialize reads a bundle written by Serialize.
func Deserialize(data []byte) (*Bundle, error) {
	if len(data) < len(bundleMagic)+1 || !bytes.Equal(data[:len(bundleMagic)], bundleMagic) {
		return nil, fmt.Errorf("not a miniml bundle")
	}
	if v := data[len(bundleMagic)]; v != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", v)
	}
	b := &Bundle{}
	err := decodeMessage(data[len(bundleMagic)+1:], func(f wireField) error {
		switch f.num {
		case 1:
			b.Module = string(f.bytes)
		case 2:
			a, err := decodeArtifact(f.bytes)
			if err != nil {
				return err
			}
			b.Artifacts = append(b.Artifacts, a)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bundle decoding failed: %w", err)
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func encodeArtifact(a *Artifact) []byte {
	var b []byte
	b = appendString(b, 1, a.Name)
	b = appendVarint(b, 2, uint64(a.Kind))
	b = appendString(b, 3, a.Sum)
	b = appendVarint(b, 4, uint64(a.Tag))
	b = appendVarint(b, 5, protowire.EncodeBool(a.Payload))
	for _, c := range a.Constants {
		b = protowire.AppendTag(b, 6, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeConstant(c))
	}
	for _, m := range a.Methods {
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMethod(m))
	}
	for _, f := range a.Fields {
		var fb []byte
		fb = appendString(fb, 1, f.Name)
		fb = appendString(fb, 2, f.Descriptor)
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendBytes(b, fb)
	}
	return b
}

func encodeConstant(c Constant) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(c.Kind))
	b = appendVarint(b, 2, protowire.EncodeZigZag(c.Int))
	if c.Double != 0 || math.Signbit(c.Double) {
		b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(c.Double))
	}
	b = appendString(b, 4, c.Str)
	b = appendString(b, 5, c.Owner)
	b = appendString(b, 6, c.Name)
	b = appendString(b, 7, c.Descriptor)
	return b
}

func encodeMethod(m *Method) []byte {
	var b []byte
	b = appendString(b, 1, m.Name)
	b = appendString(b, 2, m.Descriptor)
	b = appendVarint(b, 3, uint64(m.MaxLocals))
	b = protowire.AppendTag(b, 4, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Code)
	var lines []byte
	for _, l := range m.Lines {
		lines = protowire.AppendVarint(lines, uint64(l))
	}
	b = protowire.AppendTag(b, 5, protowire.BytesType)
	b = protowire.AppendBytes(b, lines)
	b = appendString(b, 6, m.Function)
	b = appendString(b, 7, m.Signature)
	return b
}

// wireField is one decoded field; varint and fixed64 values are in u.
type wireField struct {
	num   protowire.Number
	u     uint64
	bytes []byte
}

func decodeMessage(b []byte, fn func(wireField) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		f := wireField{num: num}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func decodeArtifact(b []byte) (*Artifact, error) {
	a := &Artifact{}
	err := decodeMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			a.Name = string(f.bytes)
		case 2:
			a.Kind = ArtifactKind(f.u)
		case 3:
			a.Sum = string(f.bytes)
		case 4:
			a.Tag = int(f.u)
		case 5:
			a.Payload = protowire.DecodeBool(f.u)
		case 6:
			c, err := decodeConstant(f.bytes)
			if err != nil {
				return err
			}
			a.Constants = append(a.Constants, c)
		case 7:
			m, err := decodeMethod(f.bytes)
			if err != nil {
				return err
			}
			a.Methods = append(a.Methods, m)
		case 8:
			fd := &Field{}
			err := decodeMessage(f.bytes, func(f wireField) error {
				switch f.num {
				case 1:
					fd.Name = string(f.bytes)
				case 2:
					fd.Descriptor = string(f.bytes)
				}
				return nil
			})
			if err != nil {
				return err
			}
			a.Fields = append(a.Fields, fd)
		}
		return nil
	})
	return a, err
}

func decodeConstant(b []byte) (Constant, error) {
	var c Constant
	err := decodeMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			c.Kind = ConstKind(f.u)
		case 2:
			c.Int = protowire.DecodeZigZag(f.u)
		case 3:
			c.Double = math.Float64frombits(f.u)
		case 4:
			c.Str = string(f.bytes)
		case 5:
			c.Owner = string(f.bytes)
		case 6:
			c.Name = string(f.bytes)
		case 7:
			c.Descriptor = string(f.bytes)
		}
		return nil
	})
	return c, err
}

func decodeMethod(b []byte) (*Method, error) {
	m := &Method{}
	err := decodeMessage(b, func(f wireField) error {
		switch f.num {
		case 1:
			m.Name = string(f.bytes)
		case 2:
			m.Descriptor = string(f.bytes)
		case 3:
			m.MaxLocals = int(f.u)
		case 4:
			m.Code = append([]byte{}, f.bytes...)
		case 5:
			lines := f.bytes
			for len(lines) > 0 {
				v, n := protowire.ConsumeVarint(lines)
				if n < 0 {
					return protowire.ParseError(n)
				}
				m.Lines = append(m.Lines, int(v))
				lines = lines[n:]
			}
		case 6:
			m.Function = string(f.bytes)
		case 7:
			m.Signature = string(f.bytes)
		}
		return nil
	})
	return m, err
}
