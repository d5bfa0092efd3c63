package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vmihailenco/msgpack/v5"
)

// Canonicalize produces the deterministic byte sequence the exchange
// hashes for signing: the msgpack encoding of the action, the nonce as an
// 8-byte big-endian integer, then a vault marker (0x00 when absent, else
// 0x01 followed by the raw 20-byte vault address).
//
// Determinism comes from the typed action structs: msgpack key order is
// struct declaration order, and integers are packed in their smallest
// form to match the exchange's packer. Identical logical input yields
// identical bytes no matter how the caller assembled the action.
func Canonicalize(action Action, nonce uint64, vault *common.Address) ([]byte, error) {
	if action == nil {
		return nil, encodingErrorf("nil action")
	}
	if err := action.validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	if err := enc.Encode(action); err != nil {
		return nil, encodingErrorf("msgpack encode %s action: %v", action.ActionType(), err)
	}

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	buf.Write(n[:])

	if vault == nil {
		buf.WriteByte(0x00)
	} else {
		buf.WriteByte(0x01)
		buf.Write(vault.Bytes())
	}
	return buf.Bytes(), nil
}
