package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/screens"
)

const defaultStreamHeartbeat = 30 * time.Second

// liveScreen is a screen with a live subscription.
type liveScreen[T any] interface {
	Mount(ctx context.Context)
	Unmount()
	Observe() (<-chan screens.State[T], func())
}

// streamScreen mounts s for the lifetime of the request and writes each
// state as a "state" event. Comment lines keep idle connections open.
func streamScreen[T any](c *gin.Context, s liveScreen[T], heartbeat time.Duration) {
	ctx := c.Request.Context()
	updates, stop := s.Observe()
	s.Mount(ctx)
	defer func() {
		stop()
		s.Unmount()
	}()

	streamEvents(c, "state", updates, heartbeat, func(st screens.State[T]) bool {
		return !terminal(st)
	})
}

// terminal reports whether st ends the screen: it was unmounted, or it sent
// the user back because its subject is gone.
func terminal[T any](st screens.State[T]) bool {
	if st.Phase == screens.PhaseClosed {
		return true
	}
	return st.Phase == screens.PhaseError && st.Alert != nil && st.Alert.NavigateBack
}

// streamEvents writes values from ch as server-sent events until ch closes,
// the client goes away, or more returns false after a write.
func streamEvents[T any](c *gin.Context, event string, ch <-chan T, heartbeat time.Duration, more func(T) bool) {
	if heartbeat <= 0 {
		heartbeat = defaultStreamHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case v, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(event, v)
			c.Writer.Flush()
			if more != nil && !more(v) {
				return
			}
		}
	}
}
