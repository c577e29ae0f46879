package pricing

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// PriceInfo is one pricing descriptor: cost per pixelsPerUnit pixels.
// Capability-scoped descriptors additionally carry a capability identifier
// and a free-form constraint string.
type PriceInfo struct {
	PricePerUnit  int64
	PixelsPerUnit int64
	Capability    uint32
	Constraint    string
}

// OrchestratorInfo is the decoded orchestrator pricing message the gateway
// receives base64-embedded in payment request bodies.
type OrchestratorInfo struct {
	Transcoder         string
	Address            []byte
	PriceInfo          *PriceInfo
	CapabilitiesPrices []PriceInfo
}

// Field numbers of the wire format.
const (
	fieldTranscoder         = 1
	fieldAddress            = 2
	fieldPriceInfo          = 3
	fieldCapabilitiesPrices = 4

	fieldPricePerUnit  = 1
	fieldPixelsPerUnit = 2
	fieldCapability    = 3
	fieldConstraint    = 4
)

// AddressHex renders the orchestrator address as a 0x-prefixed hex string,
// or "" when the message carried no address.
func (o *OrchestratorInfo) AddressHex() string {
	if len(o.Address) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(o.Address)
}

// Decode parses a binary orchestrator info message. Malformed bytes return an
// error; callers on the payment path absorb it and degrade to zero price.
func Decode(data []byte) (*OrchestratorInfo, error) {
	info := &OrchestratorInfo{}

	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("malformed orchestrator info: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTranscoder:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed transcoder field: %w", protowire.ParseError(n))
			}
			info.Transcoder = v
			b = b[n:]
		case fieldAddress:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed address field: %w", protowire.ParseError(n))
			}
			info.Address = append([]byte(nil), v...)
			b = b[n:]
		case fieldPriceInfo:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed price info field: %w", protowire.ParseError(n))
			}
			price, err := decodePriceInfo(v)
			if err != nil {
				return nil, err
			}
			info.PriceInfo = price
			b = b[n:]
		case fieldCapabilitiesPrices:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed capability price field: %w", protowire.ParseError(n))
			}
			price, err := decodePriceInfo(v)
			if err != nil {
				return nil, err
			}
			info.CapabilitiesPrices = append(info.CapabilitiesPrices, *price)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return info, nil
}

// DecodeBase64 parses a base64-encoded orchestrator info message, the form
// it takes inside JSON request bodies.
func DecodeBase64(encoded string) (*OrchestratorInfo, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 orchestrator info: %w", err)
	}
	return Decode(data)
}

func decodePriceInfo(data []byte) (*PriceInfo, error) {
	price := &PriceInfo{PixelsPerUnit: 1}

	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("malformed price info: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldPricePerUnit:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed price per unit: %w", protowire.ParseError(n))
			}
			price.PricePerUnit = int64(v)
			b = b[n:]
		case fieldPixelsPerUnit:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed pixels per unit: %w", protowire.ParseError(n))
			}
			price.PixelsPerUnit = int64(v)
			b = b[n:]
		case fieldCapability:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed capability: %w", protowire.ParseError(n))
			}
			price.Capability = uint32(v)
			b = b[n:]
		case fieldConstraint:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return nil, fmt.Errorf("malformed constraint: %w", protowire.ParseError(n))
			}
			price.Constraint = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	return price, nil
}

// Encode serializes an orchestrator info message to its wire form.
func Encode(info *OrchestratorInfo) []byte {
	var b []byte

	if info.Transcoder != "" {
		b = protowire.AppendTag(b, fieldTranscoder, protowire.BytesType)
		b = protowire.AppendString(b, info.Transcoder)
	}
	if len(info.Address) > 0 {
		b = protowire.AppendTag(b, fieldAddress, protowire.BytesType)
		b = protowire.AppendBytes(b, info.Address)
	}
	if info.PriceInfo != nil {
		b = protowire.AppendTag(b, fieldPriceInfo, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePriceInfo(info.PriceInfo))
	}
	for i := range info.CapabilitiesPrices {
		b = protowire.AppendTag(b, fieldCapabilitiesPrices, protowire.BytesType)
		b = protowire.AppendBytes(b, encodePriceInfo(&info.CapabilitiesPrices[i]))
	}

	return b
}

// EncodeBase64 serializes an orchestrator info message to base64 text.
func EncodeBase64(info *OrchestratorInfo) string {
	return base64.StdEncoding.EncodeToString(Encode(info))
}

func encodePriceInfo(price *PriceInfo) []byte {
	var b []byte

	if price.PricePerUnit != 0 {
		b = protowire.AppendTag(b, fieldPricePerUnit, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(price.PricePerUnit))
	}
	if price.PixelsPerUnit != 0 {
		b = protowire.AppendTag(b, fieldPixelsPerUnit, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(price.PixelsPerUnit))
	}
	if price.Capability != 0 {
		b = protowire.AppendTag(b, fieldCapability, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(price.Capability))
	}
	if price.Constraint != "" {
		b = protowire.AppendTag(b, fieldConstraint, protowire.BytesType)
		b = protowire.AppendString(b, price.Constraint)
	}

	return b
}
