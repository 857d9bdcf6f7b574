package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testClerkSecret = "whsec_dGVzdC1zaWduaW5nLWtleS0xMjM0NTY3OA=="

func svixSign(t *testing.T, secret, id, timestamp string, body []byte) string {
	t.Helper()
	key, err := base64.StdEncoding.DecodeString(secret[len("whsec_"):])
	if err != nil {
		t.Fatal(err)
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(id + "." + timestamp + "." + string(body)))
	return "v1," + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func svixHeaders(id, timestamp, signature string) http.Header {
	h := http.Header{}
	h.Set("svix-id", id)
	h.Set("svix-timestamp", timestamp)
	h.Set("svix-signature", signature)
	return h
}

func TestVerifyClerkSignatureValid(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", testClerkSecret)

	body := []byte(`{"type":"user.created","object":"event"}`)
	sig := svixSign(t, testClerkSecret, "msg_1", "1756600000", body)

	assert.True(t, verifyClerkSignature(svixHeaders("msg_1", "1756600000", sig), body))
}

func TestVerifyClerkSignatureTamperedBody(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", testClerkSecret)

	body := []byte(`{"type":"user.created"}`)
	sig := svixSign(t, testClerkSecret, "msg_1", "1756600000", body)

	tampered := []byte(`{"type":"user.deleted"}`)
	assert.False(t, verifyClerkSignature(svixHeaders("msg_1", "1756600000", sig), tampered))
}

func TestVerifyClerkSignatureWrongKey(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", testClerkSecret)

	body := []byte(`{"type":"user.created"}`)
	sig := svixSign(t, "whsec_b3RoZXIta2V5LW5vdC10aGUtcmVhbC1vbmU=", "msg_1", "1756600000", body)

	assert.False(t, verifyClerkSignature(svixHeaders("msg_1", "1756600000", sig), body))
}

func TestVerifyClerkSignatureMissingHeaders(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", testClerkSecret)

	assert.False(t, verifyClerkSignature(http.Header{}, []byte(`{}`)))
}

func TestVerifyClerkSignatureMultipleEntries(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", testClerkSecret)

	body := []byte(`{"type":"user.updated"}`)
	good := svixSign(t, testClerkSecret, "msg_2", "1756600001", body)
	header := "v1,Zm9yZWlnbi1zaWduYXR1cmU= " + good

	assert.True(t, verifyClerkSignature(svixHeaders("msg_2", "1756600001", header), body))
}

func TestVerifyClerkSignatureNoSecretConfigured(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "")

	assert.True(t, verifyClerkSignature(http.Header{}, []byte(`{}`)), "verification is disabled without a secret")
}
