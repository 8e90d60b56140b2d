package metrics

import (
	"net/http"
	"strconv"
)

// Middleware returns HTTP middleware that tracks request and response bytes
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		method := r.Method

		if r.ContentLength > 0 {
			m.bytesReceived.WithLabelValues(method, endpoint).Add(float64(r.ContentLength))
			m.requestSize.WithLabelValues(method, endpoint).Observe(float64(r.ContentLength))
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		if rw.bytesWritten > 0 {
			status := strconv.Itoa(rw.statusCode)
			m.bytesSent.WithLabelValues(method, endpoint, status).Add(float64(rw.bytesWritten))
			m.responseSize.WithLabelValues(method, endpoint, status).Observe(float64(rw.bytesWritten))
		}
	})
}

type responseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
