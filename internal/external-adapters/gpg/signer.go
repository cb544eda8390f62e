// Package gpg produces detached OpenPGP signatures for release artifacts.
package gpg

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/ochairo/redist/internal/domain-adapters/gateways"
	"github.com/ochairo/redist/internal/domain/interfaces"
)

// Signer implements detached signing using ProtonMail's go-crypto,
// a maintained fork of golang.org/x/crypto/openpgp
type Signer struct {
	logger interfaces.Logger
}

// NewSigner creates a new signer
func NewSigner(logger interfaces.Logger) *Signer {
	return &Signer{logger: interfaces.OrNoOp(logger)}
}

// Sign writes an armored detached signature of src to dest using the first
// signing-capable key in keyFile. Encrypted keys are unlocked with passphrase.
func (s *Signer) Sign(keyFile string, passphrase []byte, src, dest string) error {
	entity, err := s.loadSigningKey(keyFile, passphrase)
	if err != nil {
		return err
	}

	//nolint:gosec // G304: src is a workspace artifact
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	err = gateways.AtomicWriteFile(dest, 0644, func(w io.Writer) error {
		return openpgp.ArmoredDetachSign(w, entity, f, &packet.Config{})
	})
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", src, err)
	}

	s.logger.Info("signed artifact",
		interfaces.F("file", src),
		interfaces.F("key", entity.PrimaryKey.KeyIdString()))
	return nil
}

// loadSigningKey reads an armored or binary keyring
func (s *Signer) loadSigningKey(keyFile string, passphrase []byte) (*openpgp.Entity, error) {
	//nolint:gosec // G304: keyFile is the configured signing key
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key %s: %w", keyFile, err)
		}
	}

	for _, entity := range keyring {
		if entity.PrivateKey == nil {
			continue
		}
		if err := decrypt(entity, passphrase); err != nil {
			return nil, err
		}
		return entity, nil
	}
	return nil, fmt.Errorf("no private key found in %s", keyFile)
}

func decrypt(entity *openpgp.Entity, passphrase []byte) error {
	if entity.PrivateKey.Encrypted {
		if err := entity.PrivateKey.Decrypt(passphrase); err != nil {
			return fmt.Errorf("failed to unlock signing key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if sub.PrivateKey != nil && sub.PrivateKey.Encrypted {
			if err := sub.PrivateKey.Decrypt(passphrase); err != nil {
				return fmt.Errorf("failed to unlock signing subkey: %w", err)
			}
		}
	}
	return nil
}
