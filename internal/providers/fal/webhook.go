package fal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// Header names the vendor sets on webhook deliveries.
const (
	HeaderRequestID = "X-Fal-Webhook-Request-Id"
	HeaderUserID    = "X-Fal-Webhook-User-Id"
	HeaderTimestamp = "X-Fal-Webhook-Timestamp"
	HeaderSignature = "X-Fal-Webhook-Signature"
)

// WebhookHeaders lists every custom header a delivery carries, for CORS
// preflight allow-listing.
var WebhookHeaders = []string{HeaderRequestID, HeaderUserID, HeaderTimestamp, HeaderSignature}

var (
	ErrMissingHeaders     = errors.New("fal: webhook headers missing")
	ErrStaleTimestamp     = errors.New("fal: webhook timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("fal: webhook signature mismatch")
	ErrMalformedTimestamp = errors.New("fal: webhook timestamp malformed")
)

// timestampTolerance bounds how far a delivery timestamp may drift from the
// receiver's clock before the delivery is rejected as a replay.
const timestampTolerance = 5 * time.Minute

// WebhookPayload mirrors the queue's callback body.
type WebhookPayload struct {
	RequestID        string  `json:"request_id"`
	GatewayRequestID string  `json:"gateway_request_id"`
	Status           string  `json:"status"` // "OK" or "ERROR"
	Payload          *Result `json:"payload,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// OK reports whether the delivery signals a successful generation.
func (p *WebhookPayload) OK() bool {
	return p != nil && p.Status == "OK"
}

// SignWebhook computes the delivery signature: HMAC-SHA256 with the shared
// secret over request id, issuer id, timestamp and the body digest.
func SignWebhook(secret, requestID, userID, timestamp string, body []byte) string {
	digest := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(requestID))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(userID))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(hex.EncodeToString(digest[:])))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook authenticates a delivery against the shared secret using the
// raw request body. It rejects missing headers, stale timestamps and
// signatures that fail to verify.
func VerifyWebhook(secret string, header http.Header, body []byte, now time.Time) error {
	requestID := header.Get(HeaderRequestID)
	userID := header.Get(HeaderUserID)
	timestamp := header.Get(HeaderTimestamp)
	signature := header.Get(HeaderSignature)
	if requestID == "" || userID == "" || timestamp == "" || signature == "" {
		return ErrMissingHeaders
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformedTimestamp
	}
	drift := now.Sub(time.Unix(unix, 0))
	if drift > timestampTolerance || drift < -timestampTolerance {
		return ErrStaleTimestamp
	}

	expected := SignWebhook(secret, requestID, userID, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
