package asn1

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"strings"

	coreerrors "github.com/aosedge/aos_core_lib_go/infrastructure/errors"
)

// attributeOIDs maps the RFC 4514 short attribute names this codec
// understands to their well-known OIDs.
var attributeOIDs = map[string]asn1.ObjectIdentifier{
	"CN":           {2, 5, 4, 3},
	"C":            {2, 5, 4, 6},
	"O":            {2, 5, 4, 10},
	"OU":           {2, 5, 4, 11},
	"L":            {2, 5, 4, 7},
	"ST":           {2, 5, 4, 8},
	"STREET":       {2, 5, 4, 9},
	"SERIALNUMBER": {2, 5, 4, 5},
	"UID":          {0, 9, 2342, 19200300, 100, 1, 1},
}

var attributeNames = func() map[string]string {
	names := make(map[string]string, len(attributeOIDs))
	for name, oid := range attributeOIDs {
		names[oid.String()] = name
	}
	return names
}()

// EncodeDN builds a DER-encoded X.501 Name from text of the form
// "CN=A, C=B" (both ',' and '/' are accepted as component separators).
func EncodeDN(text string) ([]byte, error) {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '/' })

	var rdns pkix.RDNSequence
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, coreerrors.InvalidArgumentf("asn1: malformed DN component %q", part)
		}

		key := strings.ToUpper(strings.TrimSpace(kv[0]))
		value := strings.TrimSpace(kv[1])

		oid, ok := attributeOIDs[key]
		if !ok {
			return nil, coreerrors.InvalidArgumentf("asn1: unknown DN attribute %q", key)
		}

		rdns = append(rdns, pkix.RelativeDistinguishedNameSET{
			{Type: oid, Value: value},
		})
	}

	return asn1.Marshal(rdns)
}

// DecodeDN parses a DER-encoded X.501 Name into the canonical
// "CN=A, C=B" text form, in the order the RDNs appear.
func DecodeDN(der []byte) (string, error) {
	var rdns pkix.RDNSequence
	if _, err := asn1.Unmarshal(der, &rdns); err != nil {
		return "", coreerrors.InvalidArgumentf("asn1: malformed DN: %v", err)
	}

	var components []string
	for _, rdn := range rdns {
		for _, atv := range rdn {
			name, ok := attributeNames[atv.Type.String()]
			if !ok {
				continue
			}
			value, ok := atv.Value.(string)
			if !ok {
				value = fmt.Sprintf("%v", atv.Value)
			}
			components = append(components, fmt.Sprintf("%s=%s", name, value))
		}
	}

	return strings.Join(components, ", "), nil
}
