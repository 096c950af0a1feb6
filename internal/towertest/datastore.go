package towertest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

// Datastore is a request bin in the manner of postb.in: webhooks are posted
// to /b/<bin> and read back, oldest first, from /api/bin/<bin>/req/shift.
type Datastore struct {
	URL string

	mu   sync.Mutex
	bins map[string][]binRequest
	ts   *httptest.Server
}

type binRequest struct {
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

func StartDatastore() *Datastore {
	d := &Datastore{bins: map[string][]binRequest{}}

	router := gin.New()
	router.POST("/b/:bin", d.record)
	router.GET("/api/bin/:bin/req/shift", d.shift)

	d.ts = httptest.NewServer(router)
	d.URL = d.ts.URL
	return d
}

// BinURL is the address a webhook notification template should post to.
func (d *Datastore) BinURL(bin string) string {
	return d.URL + "/b/" + bin
}

func (d *Datastore) Close() {
	d.ts.Close()
}

func (d *Datastore) record(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	req := binRequest{Method: c.Request.Method, Headers: map[string]string{}}
	for k := range c.Request.Header {
		req.Headers[k] = c.Request.Header.Get(k)
	}
	if err := json.Unmarshal(data, &req.Body); err != nil {
		req.Body = string(data)
	}

	d.mu.Lock()
	d.bins[c.Param("bin")] = append(d.bins[c.Param("bin")], req)
	d.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"msg": "recorded"})
}

func (d *Datastore) shift(c *gin.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	queue := d.bins[c.Param("bin")]
	if len(queue) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"msg": "No requests in this bin"})
		return
	}
	d.bins[c.Param("bin")] = queue[1:]
	c.JSON(http.StatusOK, queue[0])
}
