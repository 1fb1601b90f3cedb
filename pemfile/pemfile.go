// Package pemfile generates and loads the ssh host key of the server.
package pemfile

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/zond/hitres"

	gossh "golang.org/x/crypto/ssh"
)

// DefaultBits is the RSA key size used when KeyParams.Bits is zero.
const DefaultBits = 4096

type KeyParams struct {
	KeyPath       string
	SSHPubKeyPath string
	Bits          int
}

// Generate writes a new RSA private key to KeyPath and its public half, in
// authorized_keys format, to SSHPubKeyPath.
func (k KeyParams) Generate() error {
	bits := k.Bits
	if bits == 0 {
		bits = DefaultBits
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return hitres.WithStack(err)
	}
	keyBytes := x509.MarshalPKCS1PrivateKey(privateKey)

	if err := os.WriteFile(k.KeyPath, pem.EncodeToMemory(
		&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: keyBytes,
		}),
		0600,
	); err != nil {
		return hitres.WithStack(err)
	}

	pub, err := gossh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return hitres.WithStack(err)
	}
	if err := os.WriteFile(k.SSHPubKeyPath, gossh.MarshalAuthorizedKey(pub), 0600); err != nil {
		return hitres.WithStack(err)
	}
	return nil
}

// Signer returns the key at KeyPath, generating it first if it is missing.
// The bool is true if the key was generated.
func (k KeyParams) Signer() (gossh.Signer, bool, error) {
	generated := false
	if _, err := os.Stat(k.KeyPath); os.IsNotExist(err) {
		if err := k.Generate(); err != nil {
			return nil, false, err
		}
		generated = true
	} else if err != nil {
		return nil, false, hitres.WithStack(err)
	}
	pemBytes, err := os.ReadFile(k.KeyPath)
	if err != nil {
		return nil, false, hitres.WithStack(err)
	}
	signer, err := gossh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, false, hitres.WithStack(err)
	}
	return signer, generated, nil
}
