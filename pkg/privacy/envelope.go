package privacy

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// envelopeVersion is the only framing version produced and accepted.
const envelopeVersion uint32 = 1

// contextPair is one encryption context entry.
type contextPair struct {
	Key   string
	Value string
}

// keyID identifies the wrapping key. It is the AAD of the wrapped data key.
type keyID struct {
	Namespace string
	Name      string
}

// envelope is the XDR framing of a protected value:
//
//	version | key namespace | key name | context pairs |
//	wrap iv | wrapped data key | body iv | body
type envelope struct {
	Version    uint32
	Key        keyID
	Context    []contextPair
	WrapIV     []byte
	WrappedKey []byte
	IV         []byte
	Body       []byte
}

// sortedPairs returns ctx as pairs ordered by key.
func sortedPairs(ctx map[string]string) []contextPair {
	pairs := make([]contextPair, 0, len(ctx))
	for k, v := range ctx {
		pairs = append(pairs, contextPair{Key: k, Value: v})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

// encodeXDR marshals v to its XDR representation.
func encodeXDR(v any) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *envelope) marshal() ([]byte, error) {
	return encodeXDR(e)
}

var errTruncated = errors.New("truncated envelope")

// checkBounds walks the length prefixes of an encoded envelope and fails if
// any variable-length field claims more bytes than remain, so that decoding
// never allocates beyond the input size.
func checkBounds(data []byte) error {
	off := 0
	word := func() (int, error) {
		if len(data)-off < 4 {
			return 0, errTruncated
		}
		v := binary.BigEndian.Uint32(data[off:])
		off += 4
		return int(v), nil
	}
	opaque := func() error {
		n, err := word()
		if err != nil {
			return err
		}
		padded := (n + 3) &^ 3
		if n < 0 || padded < n || padded > len(data)-off {
			return errTruncated
		}
		off += padded
		return nil
	}

	if _, err := word(); err != nil { // version
		return err
	}
	for i := 0; i < 2; i++ { // key namespace, key name
		if err := opaque(); err != nil {
			return err
		}
	}
	pairs, err := word()
	if err != nil {
		return err
	}
	if pairs < 0 || pairs > (len(data)-off)/8 {
		return errTruncated
	}
	for i := 0; i < 2*pairs; i++ {
		if err := opaque(); err != nil {
			return err
		}
	}
	for i := 0; i < 4; i++ { // wrap iv, wrapped key, iv, body
		if err := opaque(); err != nil {
			return err
		}
	}
	if off != len(data) {
		return fmt.Errorf("%d trailing bytes", len(data)-off)
	}
	return nil
}

// unmarshalEnvelope decodes data, rejecting truncated input and trailing bytes.
func unmarshalEnvelope(data []byte) (*envelope, error) {
	if err := checkBounds(data); err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var env envelope
	if _, err := xdr.Unmarshal(r, &env); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return &env, nil
}

// contextMap converts the embedded pairs to a map, rejecting duplicate or
// unsorted keys so each context has exactly one encoding.
func (e *envelope) contextMap() (map[string]string, error) {
	m := make(map[string]string, len(e.Context))
	for i, p := range e.Context {
		if i > 0 && e.Context[i-1].Key >= p.Key {
			return nil, fmt.Errorf("context keys not strictly ordered at %q", p.Key)
		}
		m[p.Key] = p.Value
	}
	return m, nil
}
