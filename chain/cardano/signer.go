package cardano

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Salvionied/apollo/serialization/Key"
	"github.com/blinklabs-io/bursa"

	"oracle-node/oracle/txbuilder"
)

// mnemonicFileName is the file operator_keyring_dir is expected to hold:
// a single BIP-39 mnemonic phrase, one line, used to derive the node's
// payment signing key. The mnemonic itself is never logged; only the
// derived address is.
const mnemonicFileName = "mnemonic.txt"

// LoadSigner derives the node's payment key pair from the mnemonic stored
// under keyringDir, following the file-backend keyring convention. It
// returns the derived address alongside the Signer so callers can log and
// compare it against the configured operator address without re-deriving.
func LoadSigner(keyringDir string) (txbuilder.Signer, string, error) {
	raw, err := os.ReadFile(filepath.Join(keyringDir, mnemonicFileName))
	if err != nil {
		return txbuilder.Signer{}, "", fmt.Errorf("reading keyring mnemonic: %w", err)
	}
	mnemonic := strings.TrimSpace(string(raw))

	wallet, err := bursa.NewWallet(mnemonic, "", 0)
	if err != nil {
		return txbuilder.Signer{}, "", fmt.Errorf("deriving wallet from mnemonic: %w", err)
	}

	vKeyBytes, err := hex.DecodeString(wallet.PaymentVKey.CborHex)
	if err != nil {
		return txbuilder.Signer{}, "", fmt.Errorf("decoding payment verification key: %w", err)
	}
	sKeyBytes, err := hex.DecodeString(wallet.PaymentExtendedSKey.CborHex)
	if err != nil {
		return txbuilder.Signer{}, "", fmt.Errorf("decoding payment signing key: %w", err)
	}

	// Strip the CBOR byte-string header apollo's Key types don't expect,
	// then the embedded public-key half of the extended private key.
	vKeyBytes = vKeyBytes[2:]
	sKeyBytes = sKeyBytes[2:]
	sKeyBytes = append(sKeyBytes[:64], sKeyBytes[96:]...)

	signer := txbuilder.Signer{
		VKey: Key.VerificationKey{Payload: vKeyBytes},
		SKey: Key.SigningKey{Payload: sKeyBytes},
	}
	return signer, wallet.PaymentAddress, nil
}
