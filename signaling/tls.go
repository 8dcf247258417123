// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

const (
	// TLSCertEnv names the environment variable holding the path of the
	// PKCS#12 bundle served by the signaling binary.
	TLSCertEnv = "RENDEZVOUS_TLS_CERT"

	// TLSPassphraseEnv names the environment variable holding the
	// bundle's passphrase.
	TLSPassphraseEnv = "RENDEZVOUS_TLS_PASSPHRASE"
)

// LoadTLSConfig reads a PKCS#12 bundle holding the server certificate,
// any intermediates, and the private key. The bundle must use the
// legacy SHA-1/3DES (or RC2) protection understood by
// golang.org/x/crypto/pkcs12; OpenSSL 3 produces it with
// -keypbe PBE-SHA1-3DES -certpbe PBE-SHA1-3DES -macalg sha1.
func LoadTLSConfig(path, passphrase string) (*tls.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TLS bundle: %w", err)
	}

	blocks, err := pkcs12.ToPEM(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decoding TLS bundle %s: %w", path, err)
	}

	var certificatePEM, keyPEM []byte
	for _, block := range blocks {
		encoded := pem.EncodeToMemory(block)
		switch block.Type {
		case "CERTIFICATE":
			certificatePEM = append(certificatePEM, encoded...)
		case "PRIVATE KEY":
			keyPEM = append(keyPEM, encoded...)
		}
	}
	if len(certificatePEM) == 0 {
		return nil, fmt.Errorf("TLS bundle %s: %w", path, errors.New("no certificate"))
	}
	if len(keyPEM) == 0 {
		return nil, fmt.Errorf("TLS bundle %s: %w", path, errors.New("no private key"))
	}

	certificate, err := tls.X509KeyPair(certificatePEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("TLS bundle %s: %w", path, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// TLSConfigFromEnv loads the bundle named by RENDEZVOUS_TLS_CERT with
// the passphrase in RENDEZVOUS_TLS_PASSPHRASE. It returns nil, nil when
// neither variable is set, meaning the server should run in plaintext.
func TLSConfigFromEnv() (*tls.Config, error) {
	path := os.Getenv(TLSCertEnv)
	passphrase, hasPassphrase := os.LookupEnv(TLSPassphraseEnv)
	if path == "" {
		if hasPassphrase {
			return nil, fmt.Errorf("%s is set but %s is not", TLSPassphraseEnv, TLSCertEnv)
		}
		return nil, nil
	}
	return LoadTLSConfig(path, passphrase)
}
