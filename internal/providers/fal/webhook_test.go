package fal

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func signedHeaders(secret string, body []byte, ts time.Time) http.Header {
	timestamp := fmt.Sprintf("%d", ts.Unix())
	h := http.Header{}
	h.Set(HeaderRequestID, "req-1")
	h.Set(HeaderUserID, "issuer-1")
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderSignature, SignWebhook(secret, "req-1", "issuer-1", timestamp, body))
	return h
}

func TestVerifyWebhookRoundTrip(t *testing.T) {
	body := []byte(`{"request_id":"req-1","status":"OK"}`)
	now := time.Now()
	headers := signedHeaders("shared-secret", body, now)

	if err := VerifyWebhook("shared-secret", headers, body, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyWebhookMissingHeaders(t *testing.T) {
	body := []byte(`{}`)
	headers := signedHeaders("s", body, time.Now())
	headers.Del(HeaderSignature)

	if err := VerifyWebhook("s", headers, body, time.Now()); err != ErrMissingHeaders {
		t.Fatalf("err = %v, want ErrMissingHeaders", err)
	}
}

func TestVerifyWebhookWrongSecret(t *testing.T) {
	body := []byte(`{"status":"OK"}`)
	now := time.Now()
	headers := signedHeaders("right-secret", body, now)

	if err := VerifyWebhook("wrong-secret", headers, body, now); err != ErrSignatureMismatch {
		t.Fatalf("err = %v, want ErrSignatureMismatch", err)
	}
}

func TestVerifyWebhookTamperedBody(t *testing.T) {
	body := []byte(`{"status":"OK"}`)
	now := time.Now()
	headers := signedHeaders("s", body, now)

	tampered := []byte(`{"status":"ERROR"}`)
	if err := VerifyWebhook("s", headers, tampered, now); err != ErrSignatureMismatch {
		t.Fatalf("err = %v, want ErrSignatureMismatch", err)
	}
}

func TestVerifyWebhookStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	headers := signedHeaders("s", body, signedAt)

	if err := VerifyWebhook("s", headers, body, time.Now()); err != ErrStaleTimestamp {
		t.Fatalf("err = %v, want ErrStaleTimestamp", err)
	}
}

func TestVerifyWebhookFutureTimestampWithinTolerance(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	headers := signedHeaders("s", body, now.Add(2*time.Minute))

	if err := VerifyWebhook("s", headers, body, now); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyWebhookMalformedTimestamp(t *testing.T) {
	body := []byte(`{}`)
	headers := signedHeaders("s", body, time.Now())
	headers.Set(HeaderTimestamp, "yesterday")

	if err := VerifyWebhook("s", headers, body, time.Now()); err != ErrMalformedTimestamp {
		t.Fatalf("err = %v, want ErrMalformedTimestamp", err)
	}
}
