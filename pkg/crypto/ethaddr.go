// file: pkg/crypto/ethaddr.go
package crypto

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// EIP55 computes the checksummed hex address string from 20-byte raw address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20) // lower
	// keccak of lowercase hex
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)
	// apply checksum
	var out = make([]byte, 2+len(hexaddr))
	copy(out, []byte("0x"))
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// if high nibble of corresponding hash byte >= 8, uppercase
		// (each hex char maps to 4 bits; i>>1 picks the byte; even/odd decides high/low nibble)
		hb := hash[i>>1]
		nibble := hb
		if i%2 == 0 {
			nibble = (hb >> 4) & 0x0f
		} else {
			nibble = hb & 0x0f
		}
		if nibble >= 8 {
			out[2+i] = byte(strings.ToUpper(string(c))[0])
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}

// ValidChecksum reports whether addr is an acceptable 0x-prefixed address.
// All-lowercase and all-uppercase bodies carry no checksum intent and pass;
// a mixed-case body must match its EIP-55 encoding exactly. Catches vault and
// wallet addresses mangled in config before any action is signed for them.
func ValidChecksum(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	body := addr[2:]
	raw, err := hex.DecodeString(strings.ToLower(body))
	if err != nil {
		return false
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return EIP55(raw) == addr
}
