package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/procureflow/backend/internal/router"
	"github.com/stretchr/testify/assert"
)

// TOLERANCE is the number of seconds that a CreatedAt or UpdatedAt time.Time
// is allowed to differ from the time at which it is checked.
//
// As CreatedAt and UpdatedAt are automatically set by gorm, we need a tolerance here.
const TOLERANCE time.Duration = 1000000000 * 60

// Request is a helper method to simplify making a HTTP request for tests.
//
// Authentication is disabled for tests, the acting identity comes from the
// X-Actor-* headers.
func Request(t *testing.T, method, url string, body any, headers ...map[string]string) httptest.ResponseRecorder {
	var byteBuffer *bytes.Buffer

	switch b := body.(type) {
	case string:
		byteBuffer = bytes.NewBufferString(b)
	case nil:
		byteBuffer = bytes.NewBuffer([]byte{})
	default:
		byteStr, err := json.Marshal(body)
		if err != nil {
			assert.FailNow(t, "Request body could not be marshalled from struct input", err)
		}
		byteBuffer = bytes.NewBuffer(byteStr)
	}

	os.Setenv("LOG_FORMAT", "human")
	os.Setenv("AUTH_DISABLED", "true")

	r, teardown, err := router.Router()
	if err != nil {
		assert.FailNow(t, "Router could not be initialized")
	}
	defer teardown()

	recorder := httptest.NewRecorder()
	req, _ := http.NewRequest(method, url, byteBuffer)
	req.Header.Set("Content-Type", "application/json")

	for _, headerMap := range headers {
		for header, value := range headerMap {
			req.Header.Set(header, value)
		}
	}

	r.ServeHTTP(recorder, req)

	return *recorder
}

// ActorHeaders builds the identity headers for a request.
func ActorHeaders(name, email, role, department string) map[string]string {
	return map[string]string{
		"X-Actor-Name":       name,
		"X-Actor-Email":      email,
		"X-Actor-Role":       role,
		"X-Actor-Department": department,
	}
}

func AssertHTTPStatus(t *testing.T, expected int, r *httptest.ResponseRecorder) {
	assert.Equal(t, expected, r.Code, "HTTP status is wrong. Response body: %s", r.Body.String())
}

// DecodeResponse decodes an HTTP response into a target struct.
func DecodeResponse(t *testing.T, r *httptest.ResponseRecorder, target interface{}) {
	err := json.NewDecoder(r.Body).Decode(target)
	if err != nil {
		assert.FailNow(t, "Parsing error", "Unable to parse response from server %q into %v, '%v'", r.Body, reflect.TypeOf(target), err)
	}
}
