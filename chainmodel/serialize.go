package chainmodel

import "encoding/json"

// MarshalJSON and UnmarshalJSON rely on the struct tags above for the exact
// field layout required by the wire schema; these helpers exist so callers
// in p2p/node don't need to import encoding/json directly for this type.

// EncodeTransaction serialises t to the wire JSON schema.
func EncodeTransaction(t *Transaction) ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTransaction parses the wire JSON schema and re-derives the
// transaction through NewTransaction, so a tampered Hash field is ignored
// rather than trusted.
func DecodeTransaction(data []byte) (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	t.Hash = ""
	return NewTransaction(t), nil
}

// EncodeBlock serialises b to the wire JSON schema.
func EncodeBlock(b *Block) ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBlock parses the wire JSON schema and re-derives the block hash.
func DecodeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	b.Hash = ""
	return NewBlock(b), nil
}
