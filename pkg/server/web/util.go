package web

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

const (
	successJsonKey = "success"
	errorJsonKey   = "error"

	contentTypeHeaderName        = "content-type"
	contentDispositionHeaderName = "content-disposition"
	forwardedForHeaderName       = "x-forwarded-for"
	jsonContentTypeHeaderValue   = "application/json"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody() GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
	}
}

func NewGenericApiFailureResponseBody(err error) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		errorJsonKey:   err.Error(),
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

// clientIP returns the address rate limits are keyed by. The first
// X-Forwarded-For entry is only used when the server sits behind a trusted
// proxy.
func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if forwarded := r.Header.Get(forwardedForHeaderName); len(forwarded) > 0 {
			first, _, _ := strings.Cut(forwarded, ",")
			if ip := strings.TrimSpace(first); len(ip) > 0 {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
