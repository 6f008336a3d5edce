package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// CRCResponse is the answer to Twitter's challenge-response check.
type CRCResponse struct {
	ResponseToken string `json:"response_token"`
}

// ValidateWebhook computes the response to a CRC challenge: an HMAC-SHA256
// of the token keyed by the app's consumer secret, base64-encoded. Pure and
// synchronous; Twitter expects the answer within a few seconds.
func ValidateWebhook(crcToken, consumerSecret string) CRCResponse {
	mac := hmac.New(sha256.New, []byte(consumerSecret))
	mac.Write([]byte(crcToken))
	digest := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return CRCResponse{ResponseToken: "sha256=" + digest}
}
