package ncr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/pos-gateway/internal/vendors/rest"
)

// Sign returns the base64 HMAC-SHA256 of "METHOD\nPATH\nDATE" keyed by secret.
// path includes the query string when present.
func Sign(secret, method, path, date string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.ToUpper(method) + "\n" + path + "\n" + date))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signer stamps the organization, a fresh correlation id, the date and the
// AccessKey authorization on each request.
func signer(accessKey, secret, organization string, now func() time.Time) rest.RequestHook {
	return func(req *http.Request) error {
		date := now().UTC().Format(http.TimeFormat)
		path := req.URL.EscapedPath()
		if req.URL.RawQuery != "" {
			path += "?" + req.URL.RawQuery
		}
		req.Header.Set("nep-organization", organization)
		req.Header.Set("nep-correlation-id", uuid.NewString())
		req.Header.Set("Date", date)
		req.Header.Set("Authorization", "AccessKey "+accessKey+":"+Sign(secret, req.Method, path, date))
		return nil
	}
}
