package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

const SignaturePrefix = "sha256="

var ErrEmptySecret = errors.New("signing secret is empty")

// GetMessageDigestOrSignature returns the hex HMAC-SHA256 of body keyed with secret.
func GetMessageDigestOrSignature(body, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// SignatureHeader formats a digest the way X-Hub-Signature-256 carries it.
func SignatureHeader(body, secret []byte) (string, error) {
	digest, err := GetMessageDigestOrSignature(body, secret)
	if err != nil {
		return "", err
	}
	return SignaturePrefix + digest, nil
}

// VerifySignatureHeader checks a "sha256=<hex>" header against body in
// constant time. The header must match byte for byte, lower case hex included.
func VerifySignatureHeader(header string, body, secret []byte) bool {
	expected, err := SignatureHeader(body, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(header), []byte(expected))
}
