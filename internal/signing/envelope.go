package signing

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/veraison/go-cose"
)

// Algorithm is the only signature algorithm spec.md §6 names:
// RSA-PSS-SHA256, which go-cose identifies as PS256.
const Algorithm = "RSA-PSS-SHA256"

// SignDetached produces a COSE_Sign1 message over content using the given
// key material, then detaches the payload before returning the encoded
// bytes — the same sign-then-detach sequence legacy/massifs/rootsigner.go
// uses to keep large payloads out of the stored envelope. The payload
// (here, the DeviceFile's full bytes) must be re-supplied at verification
// time.
func SignDetached(km *KeyMaterial, content []byte) ([]byte, error) {
	signer, err := cose.NewSigner(cose.AlgorithmPS256, km.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("signing: new signer: %w", err)
	}

	msg := cose.NewSign1Message()
	msg.Headers.Protected.SetAlgorithm(cose.AlgorithmPS256)
	msg.Payload = content

	if err := msg.Sign(rand.Reader, nil, signer); err != nil {
		return nil, fmt.Errorf("signing: sign: %w", err)
	}

	msg.Payload = nil // detach; verifiers reattach the current file bytes

	encoded, err := msg.MarshalCBOR()
	if err != nil {
		return nil, fmt.Errorf("signing: marshal envelope: %w", err)
	}
	return encoded, nil
}

// VerifyDetached reattaches content to the stored envelope and checks the
// COSE_Sign1 signature against the given public key.
func VerifyDetached(km *KeyMaterial, envelope []byte, content []byte) (bool, error) {
	verifier, err := cose.NewVerifier(cose.AlgorithmPS256, &km.PrivateKey.PublicKey)
	if err != nil {
		return false, fmt.Errorf("signing: new verifier: %w", err)
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(envelope); err != nil {
		return false, fmt.Errorf("signing: unmarshal envelope: %w", err)
	}
	msg.Payload = content

	if err := msg.Verify(nil, verifier); err != nil {
		return false, nil
	}
	return true, nil
}

// VerifyDetachedWithCert is VerifyDetached for callers that only have a
// certificate (C6's re-verification path never loads a private key).
func VerifyDetachedWithCert(cert *x509.Certificate, envelope []byte, content []byte) (bool, error) {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false, fmt.Errorf("signing: certificate public key is not RSA")
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmPS256, pub)
	if err != nil {
		return false, fmt.Errorf("signing: new verifier: %w", err)
	}

	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(envelope); err != nil {
		return false, fmt.Errorf("signing: unmarshal envelope: %w", err)
	}
	msg.Payload = content

	if err := msg.Verify(nil, verifier); err != nil {
		return false, nil
	}
	return true, nil
}
