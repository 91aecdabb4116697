// Package signing implements C4: file hashing, RSA-PSS-SHA256 signing
// wrapped in a detached COSE_Sign1 envelope, self-signed certificate
// management, and optional RFC 3161-style timestamping. It is grounded on
// two sources: the certificate and hashing shape follow
// original_source/scripts/digital_signer.py's DigitalSigner class
// (setup_certificates/generate_certificates, calculate_file_hash,
// sign_data), while the envelope construction follows
// legacy/massifs/rootsigner.go's pattern of signing a payload and then
// detaching it from the stored message so the two can be reunited at
// verification time.
package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// certSubject matches original_source's generate_certificates Subject
// fields: Country TR, Locality Istanbul, Organization "LogMaster System".
func certSubject(deviceOrgUnit string) pkix.Name {
	return pkix.Name{
		Country:            []string{"TR"},
		Locality:           []string{"Istanbul"},
		Organization:       []string{"LogMaster System"},
		OrganizationalUnit: []string{deviceOrgUnit},
		CommonName:         "LogMaster Signing Authority",
	}
}

// KeyMaterial bundles the RSA key pair and self-signed certificate used to
// sign and verify DeviceFile signatures.
type KeyMaterial struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
	DER         []byte
}

// Fingerprint returns the SHA-256 hex digest of the certificate's DER
// encoding, per original_source's get_certificate_fingerprint.
func (k *KeyMaterial) Fingerprint() string {
	sum := sha256.Sum256(k.DER)
	return fmt.Sprintf("%x", sum)
}

// GenerateKeyMaterial creates a new RSA key pair of the given size and a
// self-signed certificate valid for 5 years, matching
// original_source/scripts/digital_signer.py's generate_certificates.
func GenerateKeyMaterial(keySize int) (*KeyMaterial, error) {
	if keySize <= 0 {
		keySize = 2048
	}
	priv, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, fmt.Errorf("signing: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("signing: generate serial: %w", err)
	}

	now := time.Now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               certSubject("Log Signing"),
		NotBefore:             now,
		NotAfter:              now.AddDate(5, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("signing: create certificate: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("signing: parse certificate: %w", err)
	}

	return &KeyMaterial{PrivateKey: priv, Certificate: cert, DER: der}, nil
}

// LoadOrCreateKeyMaterial loads the PEM-encoded key and certificate from
// certPath/keyPath, generating and persisting a new pair if either file is
// absent. This mirrors setup_certificates's "generate if missing" behavior.
func LoadOrCreateKeyMaterial(certPath, keyPath string, keySize int) (*KeyMaterial, error) {
	if fileExists(certPath) && fileExists(keyPath) {
		return loadKeyMaterial(certPath, keyPath)
	}

	km, err := GenerateKeyMaterial(keySize)
	if err != nil {
		return nil, err
	}
	if err := persistKeyMaterial(km, certPath, keyPath); err != nil {
		return nil, err
	}
	return km, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func persistKeyMaterial(km *KeyMaterial, certPath, keyPath string) error {
	if err := os.MkdirAll(filepath.Dir(certPath), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(keyPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(certPath, encodeCertPEM(km.DER), 0o644); err != nil {
		return fmt.Errorf("signing: write cert: %w", err)
	}
	if err := os.WriteFile(keyPath, encodeKeyPEM(km.PrivateKey), 0o600); err != nil {
		return fmt.Errorf("signing: write key: %w", err)
	}
	return nil
}
