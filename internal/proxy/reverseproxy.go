package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BackendProxy forwards asset requests (QR images, stylesheets) to the farm
// backend unchanged
type BackendProxy struct {
	target *url.URL
	prefix string
	proxy  *httputil.ReverseProxy
	logger *zap.Logger
}

// NewBackendProxy creates a proxy for requests under prefix. The prefix is
// kept on the forwarded path since the backend serves the same tree.
func NewBackendProxy(targetURL, prefix string, timeout time.Duration, logger *zap.Logger) (*BackendProxy, error) {
	target, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("backend URL %q must be absolute", targetURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger.Info("Creating backend proxy",
		zap.String("target_url", target.String()),
		zap.String("prefix", prefix))

	p := &BackendProxy{target: target, prefix: prefix, logger: logger}
	rp := httputil.NewSingleHostReverseProxy(target)
	rp.BufferPool = newBufferPool()

	originalDirector := rp.Director
	rp.Director = func(req *http.Request) {
		originalPath := req.URL.Path
		originalDirector(req)
		req.Host = target.Host
		req.Header.Set("X-Original-Path", originalPath)
		// session credentials stay with the dashboard
		req.Header.Del("Authorization")
		req.Header.Del("Cookie")
		logger.Debug("Proxying to backend",
			zap.String("method", req.Method),
			zap.String("backend_url", req.URL.String()))
	}

	rp.ModifyResponse = func(resp *http.Response) error {
		// the dashboard's own CORS middleware is authoritative
		for _, h := range []string{
			"Access-Control-Allow-Origin",
			"Access-Control-Allow-Methods",
			"Access-Control-Allow-Headers",
			"Access-Control-Allow-Credentials",
			"Access-Control-Expose-Headers",
			"Access-Control-Max-Age",
			"Set-Cookie",
		} {
			resp.Header.Del(h)
		}
		resp.Header.Set("X-Proxied-By", "farm-dashboard")
		return nil
	}

	rp.ErrorHandler = p.handleError

	rp.Transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	p.proxy = rp
	return p, nil
}

// ServeHTTP forwards GET and HEAD requests under the prefix
func (p *BackendProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !strings.HasPrefix(r.URL.Path, p.prefix) || strings.Contains(r.URL.Path, "..") {
		http.NotFound(w, r)
		return
	}
	p.proxy.ServeHTTP(w, r)
}

func (p *BackendProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("Proxy error occurred",
		zap.String("request_url", r.URL.String()),
		zap.String("target_host", p.target.Host),
		zap.Error(err))

	statusCode := http.StatusBadGateway
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		statusCode = http.StatusGatewayTimeout
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Backend temporarily unavailable"})
}

// bufferPool implements httputil.BufferPool
type bufferPool struct {
	pool chan []byte
}

func newBufferPool() httputil.BufferPool {
	return &bufferPool{
		pool: make(chan []byte, 100),
	}
}

func (bp *bufferPool) Get() []byte {
	select {
	case buf := <-bp.pool:
		return buf
	default:
		return make([]byte, 32*1024)
	}
}

func (bp *bufferPool) Put(buf []byte) {
	select {
	case bp.pool <- buf:
	default:
	}
}
