package order

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewCloid returns a fresh client order id in the exchange's format:
// 0x followed by 16 random bytes hex-encoded.
func NewCloid() string {
	u := uuid.New()
	return "0x" + hex.EncodeToString(u[:])
}
