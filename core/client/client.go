/*Package client provides easy and fast in-process access to the gateway.

Instead of marshalling HTTP over the network, the client talks directly to
the mux router. It is perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Client provides easy access to the gateway API.
type Client struct {
	router     http.Handler
	httpClient *http.Client
	url        string
	token      string
}

// NewWithRouter creates a client to make pseudo-REST requests to the
// gateway, through the mux router.
func NewWithRouter(router http.Handler) Client {
	return Client{router: router}
}

// NewWithURL creates a client to make REST requests to the gateway.
func NewWithURL(url string) Client {
	return Client{
		url:        url,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

// WithToken returns a new client with a bearer token added to every request
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// Action posts an action request to the gateway. body may be nil. The
// response body is unmarshalled into result unless result is nil; result
// can also be a raw *[]byte.
//
// It returns the http status code. A non-2xx status is also flagged as an
// error carrying the response body.
func (c Client) Action(action string, body interface{}, result interface{}) (int, error) {
	var err error
	j, ok := body.([]byte)
	if !ok && body != nil {
		j, err = json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, fmt.Errorf("action %s: %w", action, err)
		}
	}

	r, _ := http.NewRequest(http.MethodPost, c.url+"/api?action="+action, bytes.NewBuffer(j))
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}

	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		defer res.Body.Close()
		buffer := new(bytes.Buffer)
		buffer.ReadFrom(res.Body)
		resBody = buffer.Bytes()
	}

	status := res.StatusCode
	if status != http.StatusOK {
		return status, fmt.Errorf("gateway returned status %v: %s",
			status, strings.TrimSpace(string(resBody)))
	}
	if resBody != nil && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, err
}
