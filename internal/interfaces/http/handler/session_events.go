package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/erp/dashboard/internal/application/dashboard"
	"github.com/erp/dashboard/internal/domain/navigation"
	"github.com/erp/dashboard/internal/domain/session"
	"github.com/erp/dashboard/internal/domain/shared"
	"github.com/erp/dashboard/internal/domain/viewport"
	"github.com/erp/dashboard/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// viewBufferSize is the number of events a view may fall behind by
const viewBufferSize = 64

// ViewObserver counts open live views
type ViewObserver interface {
	ViewOpened()
	ViewClosed()
}

// TierEvent is the data of a device_tier event
type TierEvent struct {
	Tier    viewport.DeviceTier `json:"tier"`
	Compact bool                `json:"compact"`
}

// EventsQuery selects the route a live view is mounted on
type EventsQuery struct {
	Path string `form:"path" binding:"required,startswith=/,max=2048"`
}

// SessionEventsHandler streams the state of one mounted view as server-sent
// events
type SessionEventsHandler struct {
	BaseHandler
	heartbeat time.Duration
	observer  ViewObserver
	logger    *zap.Logger
}

// NewSessionEventsHandler creates the live view handler. observer may be nil.
func NewSessionEventsHandler(heartbeat time.Duration, observer ViewObserver, log *zap.Logger) *SessionEventsHandler {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionEventsHandler{heartbeat: heartbeat, observer: observer, logger: log}
}

// liveView collects the events of one stream. Sources publish from their
// own goroutines; the stream loop is the only writer to the response.
type liveView struct {
	events chan dashboard.Event
	logger *zap.Logger
}

func (v *liveView) send(e dashboard.Event) {
	select {
	case v.events <- e:
	default:
		v.logger.Warn("View channel full, dropping event", zap.String("event", e.Type))
	}
}

// Stream mounts a live view on the requested path.
//
// The view receives snapshots of the session, device tier and active route
// on mount and again whenever they change. Guard redirects for the view's
// path and route pushes of the client are delivered as navigate events.
// Every subscription is released when the request ends or the client is
// evicted.
func (h *SessionEventsHandler) Stream(c *gin.Context) {
	client, ok := h.client(c)
	if !ok {
		return
	}

	var q EventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	ctx := c.Request.Context()
	log := logger.With(ctx, h.logger).With(zap.String("path", q.Path))

	// The stream outlives the server's write timeout
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Write deadline not cleared", zap.Error(err))
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)

	client.OpenView()
	if h.observer != nil {
		h.observer.ViewOpened()
	}
	defer func() {
		client.CloseView(time.Now())
		if h.observer != nil {
			h.observer.ViewClosed()
		}
		log.Info("Live view closed")
	}()

	view := &liveView{events: make(chan dashboard.Event, viewBufferSize), logger: log}

	pushed := client.Hub().Subscribe()
	defer pushed.Close()

	stopSession := client.Session().Subscribe(func(s session.Session) {
		view.send(dashboard.Event{Type: dashboard.EventSession, Data: s})
	})
	defer stopSession()

	stopRoute := client.Tracker().Subscribe(func(st navigation.ActiveState) {
		view.send(dashboard.Event{Type: dashboard.EventActiveRoute, Data: st})
	})
	defer stopRoute()

	// Initial snapshots, then the observers that emit on change
	view.send(dashboard.Event{Type: dashboard.EventSession, Data: client.Session().Current()})
	view.send(dashboard.Event{Type: dashboard.EventActiveRoute, Data: client.Tracker().State()})

	tiers := viewport.NewObserver(client.Viewport(), func(t viewport.DeviceTier) {
		view.send(dashboard.Event{Type: dashboard.EventDeviceTier, Data: TierEvent{Tier: t, Compact: t.Compact()}})
	})
	tiers.Start(ctx)
	defer tiers.Stop()

	guard := client.Guard(shared.NavigatorFunc(func(path string) {
		view.send(dashboard.Event{Type: dashboard.EventNavigate, Data: dashboard.NavigateData{Path: path}})
	}))
	stopGuard := guard.Watch(client.Session(), q.Path)
	defer stopGuard()

	log.Info("Live view opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-pushed.Done:
			log.Debug("Client closed, ending live view")
			return
		case e := <-pushed.C:
			seq++
			if err := writeEvent(c.Writer, e, seq); err != nil {
				log.Debug("Live view write failed", zap.Error(err))
				return
			}
		case e := <-view.events:
			seq++
			if err := writeEvent(c.Writer, e, seq); err != nil {
				log.Debug("Live view write failed", zap.Error(err))
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
		}
		c.Writer.Flush()
	}
}

// writeEvent writes one SSE frame
func writeEvent(w io.Writer, e dashboard.Event, id uint64) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", e.Type, strconv.FormatUint(id, 10), data)
	return err
}
