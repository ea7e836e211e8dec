package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/obscura-systems/wallet-core/internal/werr"
)

// sessionCookieName is the remote services' session cookie.
const sessionCookieName = "id"

// doJSON performs one HTTP round trip, decoding a 200 body into out when
// out is non-nil. Transport failures map to Network or Timeout; non-200
// statuses map through werr.FromStatusCode.
func doJSON(client *http.Client, req *http.Request, service string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return transportError(err, service)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return werr.FromStatusCode(resp.StatusCode, service)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return werr.InvalidData(service+" response malformed", "Unexpected response from "+service)
	}
	return nil
}

func transportError(err error, service string) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return werr.Timeout(service + " request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return werr.Network(service+" request failed", err)
}

func jsonBody(v any) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, werr.Internal("request marshal failed", err)
	}
	return bytes.NewReader(raw), nil
}

func newRequest(ctx context.Context, method, url string, body io.Reader, cookie string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, werr.Internal("request build failed", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: cookie})
	}
	return req, nil
}
