package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// The exchange verifies action signatures against this fixed EIP-712 domain.
// chainId 1337 and the zero verifying contract are protocol constants shared
// by mainnet and testnet; the network is discriminated by the agent source
// field, never by the domain.
const (
	domainName    = "Exchange"
	domainVersion = "1"
	domainChainID = 1337

	sourceMainnet = "a"
	sourceTestnet = "b"
)

// RSV is a signature in the exchange's wire form: 0x-prefixed 32-byte hex
// for r and s, v as 27 or 28.
type RSV struct {
	R string `json:"r"`
	S string `json:"s"`
	V uint8  `json:"v"`
}

func rsvFromSignature(sig []byte) (RSV, error) {
	if len(sig) != 65 {
		return RSV{}, &SigningError{Op: "encode signature", Err: fmt.Errorf("length %d, want 65", len(sig))}
	}
	return RSV{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: sig[64] + 27,
	}, nil
}

// Signature reassembles the 65-byte [R || S || V] form with V as raw
// recovery id, the layout Ecrecover expects.
func (sig RSV) Signature() ([]byte, error) {
	if sig.V != 27 && sig.V != 28 {
		return nil, &SigningError{Op: "decode signature", Err: fmt.Errorf("v = %d, want 27 or 28", sig.V)}
	}
	r, err := hexutil.Decode(sig.R)
	if err != nil {
		return nil, &SigningError{Op: "decode signature", Err: fmt.Errorf("r: %w", err)}
	}
	s, err := hexutil.Decode(sig.S)
	if err != nil {
		return nil, &SigningError{Op: "decode signature", Err: fmt.Errorf("s: %w", err)}
	}
	if len(r) > 32 || len(s) > 32 {
		return nil, &SigningError{Op: "decode signature", Err: fmt.Errorf("r/s longer than 32 bytes")}
	}
	out := make([]byte, 65)
	copy(out[32-len(r):32], r)
	copy(out[64-len(s):64], s)
	out[64] = sig.V - 27
	return out, nil
}

// ConnectionID is the keccak-256 digest of an action's canonical bytes, the
// only action-dependent input to the signed typed data.
func ConnectionID(canonical []byte) common.Hash {
	return crypto.Keccak256Hash(canonical)
}

func agentTypedData(source string, connectionID common.Hash) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           math.NewHexOrDecimal256(domainChainID),
			VerifyingContract: common.Address{}.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": connectionID.Hex(),
		},
	}
}

// AgentDigest computes the digest the exchange verifies for an action:
// keccak256("\x19\x01" || domainSeparator || hashStruct(Agent)), where the
// agent message wraps the connection id for the given network.
func AgentDigest(canonical []byte, mainnet bool) (common.Hash, error) {
	source := sourceTestnet
	if mainnet {
		source = sourceMainnet
	}
	typedData := agentTypedData(source, ConnectionID(canonical))

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, &SigningError{Op: "hash domain", Err: err}
	}
	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, &SigningError{Op: "hash agent", Err: err}
	}
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(structHash)))
	return crypto.Keccak256Hash(rawData), nil
}

// SignL1Action signs the canonical bytes of an exchange action and returns
// the signature in submission form.
func SignL1Action(s *Signer, canonical []byte, mainnet bool) (RSV, error) {
	digest, err := AgentDigest(canonical, mainnet)
	if err != nil {
		return RSV{}, err
	}
	sig, err := s.Sign(digest.Bytes())
	if err != nil {
		return RSV{}, err
	}
	return rsvFromSignature(sig)
}

// RecoverActionSigner returns the address that produced sig over the given
// canonical action bytes. The exchange runs the same recovery to attribute
// an action to an account.
func RecoverActionSigner(canonical []byte, mainnet bool, sig RSV) (common.Address, error) {
	digest, err := AgentDigest(canonical, mainnet)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := sig.Signature()
	if err != nil {
		return common.Address{}, err
	}
	return RecoverAddress(digest.Bytes(), raw)
}
