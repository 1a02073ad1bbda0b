// Package asn1 provides a streaming DER decoder and a small DER builder
// for the subset of ASN.1 the crypto subsystem needs: integers, object
// identifiers, octet strings, algorithm identifiers, and the SEQUENCE/SET
// constructed types that back X.509 names and extensions.
//
// Readers operate over a borrowed byte slice and return the decoded value
// together with the remaining, unconsumed bytes. This mirrors a streaming
// parser rather than a whole-document unmarshaller: callers chain reads to
// walk a TLV structure field by field.
package asn1

import (
	"encoding/asn1"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// TagClass identifies the class bits of a DER identifier octet.
type TagClass int

const (
	ClassUniversal TagClass = iota
	ClassApplication
	ClassContextSpecific
	ClassPrivate
)

// Value is a decoded ASN.1 TLV: its tag plus the raw content bytes. The
// content slice borrows from the input buffer and must not be retained
// past the caller's use of that buffer.
type Value struct {
	Class       TagClass
	Tag         int
	Constructed bool
	Content     []byte
}

// Equal reports whether two Values are structurally identical.
func (v Value) Equal(other Value) bool {
	if v.Class != other.Class || v.Tag != other.Tag || v.Constructed != other.Constructed {
		return false
	}
	if len(v.Content) != len(other.Content) {
		return false
	}
	for i := range v.Content {
		if v.Content[i] != other.Content[i] {
			return false
		}
	}
	return true
}

// ParseOptions controls how a single reader treats a missing or
// differently-tagged element.
type ParseOptions struct {
	// Optional marks the element as allowed to be absent. When the next
	// tag in the buffer does not match, the reader returns ErrNotFound
	// and leaves data untouched instead of failing.
	Optional bool

	// TagOverride, when non-nil, replaces the expected tag number for the
	// readers that honour it. ReadSequence and ReadSet then expect a
	// constructed context-specific tag with that number (e.g. a [0]
	// IMPLICIT SEQUENCE); ReadRawValue and ReadStruct compare the tag
	// number only, in any class. ReadInteger, ReadBigInt, ReadOID and
	// ReadOctetString ignore it and always expect their universal tag.
	TagOverride *int
}

// ElementHandler is invoked once per TLV encountered while iterating a
// SEQUENCE, SET, or a single nested structure.
type ElementHandler func(Value) error

// AlgorithmIdentifier is the decoded { OID, ANY parameters OPTIONAL }
// sequence used throughout X.509 (signature algorithms, digest
// algorithms, public key algorithms).
type AlgorithmIdentifier struct {
	OID           string
	Parameters    Value
	HasParameters bool
}

// ErrNotFound is returned by readers when an optional element is absent.
// The input slice is returned unconsumed so the caller can fall through
// to try a different field.
var ErrNotFound = coreerrors.NotFoundf("asn1: optional element not found")

func tagFromCryptobyte(raw cryptobyte_asn1.Tag) (class TagClass, number int, constructed bool) {
	b := byte(raw)
	constructed = b&0x20 != 0
	number = int(b & 0x1f)
	switch b & 0xc0 {
	case 0x00:
		class = ClassUniversal
	case 0x40:
		class = ClassApplication
	case 0x80:
		class = ClassContextSpecific
	case 0xc0:
		class = ClassPrivate
	}
	return class, number, constructed
}

func expectedTag(defaultTag int, opt ParseOptions) cryptobyte_asn1.Tag {
	if opt.TagOverride != nil {
		return cryptobyte_asn1.Tag(*opt.TagOverride).ContextSpecific().Constructed()
	}
	return cryptobyte_asn1.Tag(defaultTag).Constructed()
}

// ReadRawValue reads one TLV without interpreting its content, returning
// its tag metadata and a borrowed slice of the value bytes.
func ReadRawValue(data []byte, opt ParseOptions) (Value, []byte, error) {
	input := cryptobyte.String(data)

	var content cryptobyte.String
	var tag cryptobyte_asn1.Tag
	if !input.ReadAnyASN1(&content, &tag) {
		if opt.Optional {
			return Value{}, data, ErrNotFound
		}
		return Value{}, data, coreerrors.InvalidArgumentf("asn1: malformed value")
	}

	class, number, constructed := tagFromCryptobyte(tag)
	if opt.TagOverride != nil && number != *opt.TagOverride {
		if opt.Optional {
			return Value{}, data, ErrNotFound
		}
		return Value{}, data, coreerrors.InvalidArgumentf("asn1: unexpected tag %d, want %d", number, *opt.TagOverride)
	}

	return Value{
		Class:       class,
		Tag:         number,
		Constructed: constructed,
		Content:     []byte(content),
	}, []byte(input), nil
}

// ReadStruct consumes one TLV header and hands its content, as a single
// Value, to handler. Use this for a single nested element whose internal
// structure the caller will decode separately (e.g. a context-specific
// wrapper around an extension value).
func ReadStruct(data []byte, opt ParseOptions, handler ElementHandler) ([]byte, error) {
	value, remaining, err := ReadRawValue(data, opt)
	if err != nil {
		return data, err
	}
	if err := handler(value); err != nil {
		return data, err
	}
	return remaining, nil
}

func readConstructedElements(data []byte, defaultTag int, opt ParseOptions, handler ElementHandler) ([]byte, error) {
	input := cryptobyte.String(data)

	var body cryptobyte.String
	if !input.ReadASN1(&body, expectedTag(defaultTag, opt)) {
		if opt.Optional {
			return data, ErrNotFound
		}
		return data, coreerrors.InvalidArgumentf("asn1: expected constructed tag %d", defaultTag)
	}

	for !body.Empty() {
		var content cryptobyte.String
		var tag cryptobyte_asn1.Tag
		if !body.ReadAnyASN1(&content, &tag) {
			return data, coreerrors.InvalidArgumentf("asn1: malformed element in constructed value")
		}
		class, number, constructed := tagFromCryptobyte(tag)
		if err := handler(Value{Class: class, Tag: number, Constructed: constructed, Content: []byte(content)}); err != nil {
			return data, err
		}
	}

	return []byte(input), nil
}

// ReadSequence reads a SEQUENCE and invokes handler once per element.
func ReadSequence(data []byte, opt ParseOptions, handler ElementHandler) ([]byte, error) {
	return readConstructedElements(data, 16, opt, handler) // 16 = SEQUENCE
}

// ReadSet reads a SET and invokes handler once per element.
func ReadSet(data []byte, opt ParseOptions, handler ElementHandler) ([]byte, error) {
	return readConstructedElements(data, 17, opt, handler) // 17 = SET
}

// ReadInteger reads a small INTEGER into a host int.
func ReadInteger(data []byte, opt ParseOptions) (int, []byte, error) {
	input := cryptobyte.String(data)

	var value int64
	if !input.ReadASN1Integer(&value) {
		if opt.Optional {
			return 0, data, ErrNotFound
		}
		return 0, data, coreerrors.InvalidArgumentf("asn1: malformed integer")
	}

	return int(value), []byte(input), nil
}

// ReadBigInt reads an INTEGER's content as big-endian magnitude bytes,
// stripping the single leading zero byte DER adds to keep a positive
// integer's high bit clear.
func ReadBigInt(data []byte, opt ParseOptions) ([]byte, []byte, error) {
	input := cryptobyte.String(data)

	var content cryptobyte.String
	if !input.ReadASN1(&content, cryptobyte_asn1.INTEGER) {
		if opt.Optional {
			return nil, data, ErrNotFound
		}
		return nil, data, coreerrors.InvalidArgumentf("asn1: malformed big integer")
	}

	raw := []byte(content)
	if len(raw) > 1 && raw[0] == 0x00 && raw[1]&0x80 != 0 {
		raw = raw[1:]
	}

	return raw, []byte(input), nil
}

// ReadOID reads an OBJECT IDENTIFIER and returns it as dotted decimal
// text.
func ReadOID(data []byte, opt ParseOptions) (string, []byte, error) {
	input := cryptobyte.String(data)

	var oid asn1.ObjectIdentifier
	if !input.ReadASN1ObjectIdentifier(&oid) {
		if opt.Optional {
			return "", data, ErrNotFound
		}
		return "", data, coreerrors.InvalidArgumentf("asn1: malformed object identifier")
	}

	return oid.String(), []byte(input), nil
}

// ReadOctetString reads an OCTET STRING's content verbatim.
func ReadOctetString(data []byte, opt ParseOptions) ([]byte, []byte, error) {
	input := cryptobyte.String(data)

	var content cryptobyte.String
	if !input.ReadASN1(&content, cryptobyte_asn1.OCTET_STRING) {
		if opt.Optional {
			return nil, data, ErrNotFound
		}
		return nil, data, coreerrors.InvalidArgumentf("asn1: malformed octet string")
	}

	return []byte(content), []byte(input), nil
}

// ReadAlgorithmIdentifier reads a { OID, ANY parameters OPTIONAL }
// SEQUENCE. Parameters, if present, are returned raw with their own tag
// preserved rather than decoded.
func ReadAlgorithmIdentifier(data []byte, opt ParseOptions) (AlgorithmIdentifier, []byte, error) {
	var result AlgorithmIdentifier

	remaining, err := ReadSequence(data, opt, func(v Value) error {
		if result.OID == "" {
			if v.Class != ClassUniversal || v.Tag != asn1.TagOID {
				return coreerrors.InvalidArgumentf("asn1: algorithm identifier does not start with an object identifier")
			}
			// v.Content holds only the OID's content bytes; ReadOID
			// expects a whole TLV, so the header is rebuilt first.
			var b cryptobyte.Builder
			b.AddASN1(cryptobyte_asn1.OBJECT_IDENTIFIER, func(c *cryptobyte.Builder) { c.AddBytes(v.Content) })
			encoded, err := b.Bytes()
			if err != nil {
				return coreerrors.InvalidArgumentf("asn1: malformed object identifier")
			}
			oid, _, err := ReadOID(encoded, ParseOptions{})
			if err != nil {
				return err
			}
			result.OID = oid
			return nil
		}
		result.Parameters = v
		result.HasParameters = true
		return nil
	})
	if err != nil {
		return AlgorithmIdentifier{}, data, err
	}

	return result, remaining, nil
}

// WriteOID encodes a dotted-decimal object identifier string as a DER
// OBJECT IDENTIFIER value.
func WriteOID(dotted string) ([]byte, error) {
	oid, err := parseDottedOID(dotted)
	if err != nil {
		return nil, err
	}
	return asn1.Marshal(oid)
}

func parseDottedOID(dotted string) (asn1.ObjectIdentifier, error) {
	parts := strings.Split(dotted, ".")
	if len(parts) < 2 {
		return nil, coreerrors.InvalidArgumentf("asn1: invalid object identifier %q", dotted)
	}

	oid := make(asn1.ObjectIdentifier, len(parts))
	for i, p := range parts {
		var n int
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil, coreerrors.InvalidArgumentf("asn1: invalid object identifier %q", dotted)
			}
			n = n*10 + int(c-'0')
		}
		oid[i] = n
	}
	return oid, nil
}

// WriteObjectIDs encodes a list of dotted-decimal OID strings as a DER
// SEQUENCE OF OBJECT IDENTIFIER.
func WriteObjectIDs(dotted []string) ([]byte, error) {
	oids := make([]asn1.ObjectIdentifier, len(dotted))
	for i, d := range dotted {
		oid, err := parseDottedOID(d)
		if err != nil {
			return nil, err
		}
		oids[i] = oid
	}
	return asn1.Marshal(oids)
}

// WriteBigInt encodes big-endian magnitude bytes as a DER INTEGER,
// reinserting a leading zero byte if the high bit of the first byte would
// otherwise make the value look negative.
func WriteBigInt(number []byte) ([]byte, error) {
	content := append([]byte(nil), number...)
	if len(content) == 0 {
		content = []byte{0x00}
	}
	if content[0]&0x80 != 0 {
		content = append([]byte{0x00}, content...)
	}

	return asn1.Marshal(asn1.RawValue{
		Class: asn1.ClassUniversal,
		Tag:   asn1.TagInteger,
		Bytes: content,
	})
}

// WriteDERSequence concatenates already-DER-encoded items and wraps them
// in a single SEQUENCE.
func WriteDERSequence(items [][]byte) ([]byte, error) {
	var body []byte
	for _, item := range items {
		body = append(body, item...)
	}

	return asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSequence,
		IsCompound: true,
		Bytes:      body,
	})
}
