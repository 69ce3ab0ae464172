package mw

import (
	"bytes"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"

	"pencil-me-in-backend/internal/metrics"
)

type cachedResponse struct {
	status  int
	headers http.Header
	body    []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from memory. Responses depend on the caller's
// device id, so it is part of the key. Any successful write flushes the whole cache.
func Cache(store *cache.Cache, duration time.Duration, rec *metrics.Recorder) gin.HandlerFunc {
	// Bumped by every successful write. A GET that overlapped a write does not
	// store its response.
	var generation atomic.Uint64
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			if s := c.Writer.Status(); s >= 200 && s < 300 {
				generation.Add(1)
				store.Flush()
			}
			return
		}

		key := DeviceID(c) + "|" + c.Request.RequestURI
		if resp, found := store.Get(key); found {
			rec.CacheLookup(true)
			cached := resp.(cachedResponse)
			for k, v := range cached.headers {
				c.Writer.Header()[k] = v
			}
			c.Writer.Header().Set("X-Cache", "HIT")
			c.Writer.WriteHeader(cached.status)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}
		rec.CacheLookup(false)

		gen := generation.Load()
		blw := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		if blw.Status() >= 200 && blw.Status() < 300 && generation.Load() == gen {
			store.Set(key, cachedResponse{
				status:  blw.Status(),
				headers: blw.Header().Clone(),
				body:    blw.body.Bytes(),
			}, duration)
			// A write may have flushed between the check and the Set.
			if generation.Load() != gen {
				store.Delete(key)
			}
		}
	}
}
