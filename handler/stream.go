package handler

import (
	"io"

	"gradient/middleware"
	"gradient/usecase"

	"github.com/gin-gonic/gin"
)

// streamList writes every list the live collection produces as a
// server-sent event until the client leaves or the collection ends. The
// collection is stopped on return.
func streamList[T any, R any](c *gin.Context, live *usecase.LiveCollection[T], event string, convert func([]T) R) {
	defer live.Stop()
	updates, cancel := live.Subscribe()
	defer cancel()

	middleware.ActiveStreams.Inc()
	defer middleware.ActiveStreams.Dec()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case list, ok := <-updates:
			if !ok {
				if err := live.Err(); err != nil {
					c.SSEvent("error", gin.H{"error": err.Error()})
				}
				return false
			}
			c.SSEvent(event, convert(list))
			return true
		}
	})
}
