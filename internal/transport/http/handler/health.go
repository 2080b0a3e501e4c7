package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gobreaker "github.com/sony/gobreaker/v2"

	"listwise/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type runningReporter interface {
	Running() bool
}

type breakerReporter interface {
	State() gobreaker.State
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storeStatus := h.checkStore(ctx)
	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()

	workerStatus := dependencyStatus{OK: true, Message: "disabled"}
	if h.app.RecomputeWorker != nil {
		workerStatus = checkWorker(h.app.RecomputeWorker)
	}
	publisherStatus := dependencyStatus{OK: true, Message: "disabled"}
	if h.app.Publisher != nil {
		publisherStatus = checkPublisher(h.app.Publisher)
	}

	allOK := storeStatus.OK && redisStatus.OK && rmqStatus.OK && workerStatus.OK && publisherStatus.OK
	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": gin.H{
			h.app.Config.Store.Driver: storeStatus,
			"redis":                   redisStatus,
			"rabbitmq":                rmqStatus,
		},
		"components": gin.H{
			"recompute_worker": workerStatus,
			"event_publisher":  publisherStatus,
		},
	})
}

func (h *HealthHandler) checkStore(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.DB.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.app.Redis == nil {
		return dependencyStatus{OK: true, Message: "disabled"}
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil {
		return dependencyStatus{OK: true, Message: "disabled"}
	}
	if h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}

func checkWorker(w runningReporter) dependencyStatus {
	if !w.Running() {
		return dependencyStatus{OK: false, Message: "stopped"}
	}
	return dependencyStatus{OK: true}
}

// checkPublisher fails only while the breaker is open; half-open is already
// letting a trial publish through.
func checkPublisher(p breakerReporter) dependencyStatus {
	state := p.State()
	if state == gobreaker.StateOpen {
		return dependencyStatus{OK: false, Message: "circuit " + state.String()}
	}
	return dependencyStatus{OK: true, Message: "circuit " + state.String()}
}
