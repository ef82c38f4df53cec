package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/diego-dcr-sisco/ZondaAPP/internal/config"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/service"
	"github.com/diego-dcr-sisco/ZondaAPP/internal/field/session"
)

// Handlers bundles the local API handlers the UI layer calls.
type Handlers struct {
	Auth   *AuthHandler
	Order  *OrderHandler
	Report *ReportHandler
	Sync   *SyncHandler
}

func NewHandlers(svc *service.Services, sess *session.Manager, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:   NewAuthHandler(sess),
		Order:  NewOrderHandler(svc.Order, sess),
		Report: NewReportHandler(svc.Report),
		Sync:   NewSyncHandler(svc.Sync, svc.Report),
	}
}

// Response is the envelope for every local API payload.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Code:    status,
		Message: message,
	})
}

// orderIDParam parses the :id path parameter.
func orderIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		Error(c, 400, "invalid order id")
		return 0, false
	}
	return id, true
}
