package whatsapp

import (
	"github.com/uzzaidev/ChatBot-Oficial-sub002/pkg/utils"
)

const SignatureHeader = "X-Hub-Signature-256"

// VerifySignature checks the X-Hub-Signature-256 header Meta sends with every
// webhook POST against the tenant's app secret.
func VerifySignature(appSecret, header string, rawBody []byte) bool {
	if appSecret == "" || header == "" {
		return false
	}
	return utils.VerifySignatureHeader(header, rawBody, []byte(appSecret))
}
