package crypto

import (
	"strings"
	"testing"
)

func TestSignL1ActionRecovers(t *testing.T) {
	signer, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	canonical := []byte("canonical action bytes")

	// Two signatures over the same input must both attribute to the signer.
	for i := 0; i < 2; i++ {
		sig, err := SignL1Action(signer, canonical, true)
		if err != nil {
			t.Fatalf("SignL1Action: %v", err)
		}
		recovered, err := RecoverActionSigner(canonical, true, sig)
		if err != nil {
			t.Fatalf("RecoverActionSigner: %v", err)
		}
		if recovered != signer.Address() {
			t.Errorf("recovered = %s, want %s", recovered.Hex(), signer.Address().Hex())
		}
	}
}

func TestSignL1ActionRSVShape(t *testing.T) {
	signer, _ := GenerateKey()
	sig, err := SignL1Action(signer, []byte{0xde, 0xad}, false)
	if err != nil {
		t.Fatalf("SignL1Action: %v", err)
	}

	for name, comp := range map[string]string{"r": sig.R, "s": sig.S} {
		if !strings.HasPrefix(comp, "0x") {
			t.Errorf("%s = %q, want 0x prefix", name, comp)
		}
		if len(comp) != 66 {
			t.Errorf("%s length = %d, want 66 (0x + 32 bytes)", name, len(comp))
		}
	}
	if sig.V != 27 && sig.V != 28 {
		t.Errorf("v = %d, want 27 or 28", sig.V)
	}
}

// The digest must change with the network flag even though the typed-data
// domain is identical on both networks.
func TestAgentDigestNetworkDiscrimination(t *testing.T) {
	canonical := []byte("same action")

	mainnet, err := AgentDigest(canonical, true)
	if err != nil {
		t.Fatalf("AgentDigest mainnet: %v", err)
	}
	testnet, err := AgentDigest(canonical, false)
	if err != nil {
		t.Fatalf("AgentDigest testnet: %v", err)
	}
	if mainnet == testnet {
		t.Error("mainnet and testnet digests are equal")
	}
}

func TestAgentDigestTracksCanonicalBytes(t *testing.T) {
	d1, err := AgentDigest([]byte("action A"), true)
	if err != nil {
		t.Fatalf("AgentDigest: %v", err)
	}
	d2, err := AgentDigest([]byte("action B"), true)
	if err != nil {
		t.Fatalf("AgentDigest: %v", err)
	}
	if d1 == d2 {
		t.Error("digests for different canonical bytes are equal")
	}

	// Same bytes must digest identically across calls.
	again, err := AgentDigest([]byte("action A"), true)
	if err != nil {
		t.Fatalf("AgentDigest: %v", err)
	}
	if again != d1 {
		t.Error("digest not deterministic for identical input")
	}
}

func TestCrossNetworkSignatureDoesNotAttribute(t *testing.T) {
	signer, _ := GenerateKey()
	canonical := []byte("an order")

	sig, err := SignL1Action(signer, canonical, true)
	if err != nil {
		t.Fatalf("SignL1Action: %v", err)
	}

	// Recovering under the wrong network yields a different digest and so a
	// different (or no) address.
	recovered, err := RecoverActionSigner(canonical, false, sig)
	if err == nil && recovered == signer.Address() {
		t.Error("mainnet signature attributed under testnet digest")
	}
}

func TestRSVSignatureRejectsBadV(t *testing.T) {
	signer, _ := GenerateKey()
	sig, err := SignL1Action(signer, []byte("x"), true)
	if err != nil {
		t.Fatalf("SignL1Action: %v", err)
	}

	sig.V = 2
	if _, err := sig.Signature(); err == nil {
		t.Error("v = 2 accepted, want error")
	}

	sig.V = 27
	sig.R = "not hex"
	if _, err := sig.Signature(); err == nil {
		t.Error("non-hex r accepted, want error")
	}
}
