package iot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// CredentialsProvider attaches per-request authentication material. The
// client treats it as opaque and invokes it once per outgoing request.
type CredentialsProvider interface {
	Authorize(req *http.Request) error
}

// StaticCredentials signs requests with a fixed access/secret key pair.
type StaticCredentials struct {
	AccessKey string
	SecretKey string
	Region    string
}

func (c *StaticCredentials) Authorize(req *http.Request) error {
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.Wrap(ErrAuthentication, "missing access or secret key")
	}

	date := time.Now().UTC().Format("20060102T150405Z")
	req.Header.Set("X-Amz-Date", date)

	toSign := fmt.Sprintf("%s\n%s\n%s", req.Method, req.URL.RequestURI(), date)
	mac := hmac.New(sha256.New, []byte(c.SecretKey))
	mac.Write([]byte(toSign))
	signature := hex.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", fmt.Sprintf(
		"THINGSQL1-HMAC-SHA256 Credential=%s/%s, Signature=%s",
		c.AccessKey, c.Region, signature,
	))
	return nil
}
