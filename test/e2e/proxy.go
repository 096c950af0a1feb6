package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Request is one exchange between a client of the controller and the controller.
type Request struct {
	At           time.Time
	Request      *http.Request
	Response     *http.Response
	RequestBody  []byte
	ResponseBody []byte
}

type exchangeKey struct{}

type inflight struct {
	at   time.Time
	body []byte
}

// Proxy forwards to the controller and reports every answered exchange on
// its channel, so the suite can assert how towerqa talks to the API.
type Proxy struct {
	exchanges chan Request
	forward   *httputil.ReverseProxy
}

func NewProxy(target *url.URL, insecure bool) (*Proxy, chan Request) {
	p := &Proxy{exchanges: make(chan Request, 1024)}

	rp := httputil.NewSingleHostReverseProxy(target)
	director := rp.Director
	rp.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
	}
	rp.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}, //nolint:gosec
	}
	rp.ModifyResponse = p.record
	p.forward = rp

	return p, p.exchanges
}

func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), exchangeKey{}, &inflight{at: time.Now(), body: body})
		p.forward.ServeHTTP(w, r.WithContext(ctx))
	})
}

// record runs once the controller answered, before the answer is relayed.
func (p *Proxy) record(resp *http.Response) error {
	started := time.Now()
	var requestBody []byte
	if f, ok := resp.Request.Context().Value(exchangeKey{}).(*inflight); ok {
		started, requestBody = f.at, f.body
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	req := resp.Request.Clone(context.Background())
	req.Body = io.NopCloser(bytes.NewReader(requestBody))
	kept := *resp
	kept.Header = resp.Header.Clone()
	kept.Body = io.NopCloser(bytes.NewReader(body))

	zap.S().Named("proxy").Debugw("exchange", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "took", time.Since(started))

	p.exchanges <- Request{
		At:           started,
		Request:      req,
		Response:     &kept,
		RequestBody:  requestBody,
		ResponseBody: body,
	}
	return nil
}

func (p *Proxy) Close() {
	close(p.exchanges)
}
