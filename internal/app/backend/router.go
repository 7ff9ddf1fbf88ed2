/**
 * 后端路由
 * @date: 2026.10.18
 * @description: 探活、提交、状态查询路由
 */
package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lss/internal/model/task"
	"lss/internal/pkg/logger"
	"lss/internal/pkg/monitor"
	"lss/internal/pkg/version"
)

// maxSubmitBody 提交载荷大小上限
const maxSubmitBody = 4 << 20

// Router 后端路由器
type Router struct {
	engine     *gin.Engine
	dispatcher *Dispatcher
	log        *logrus.Entry
}

// NewRouter 创建路由器并注册全部路由
func NewRouter(mode string, dispatcher *Dispatcher, log *logrus.Entry) *Router {
	if mode != "" {
		gin.SetMode(mode)
	}
	engine := gin.New()
	engine.Use(RecoveryMiddleware(log), LoggingMiddleware(log, "/ping", "/health"))

	r := &Router{engine: engine, dispatcher: dispatcher, log: log}
	r.setupHealthRoutes()
	r.setupTaskRoutes()
	return r
}

// Engine gin 引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupHealthRoutes 设置健康检查路由
func (r *Router) setupHealthRoutes() {
	r.engine.GET("/ping", r.handlePing)
	r.engine.GET("/health", r.handleHealth)
	r.engine.GET("/version", r.handleVersion)
}

// setupTaskRoutes 设置任务提交与状态路由
func (r *Router) setupTaskRoutes() {
	r.engine.POST("/submit", r.handleSubmit)
	r.engine.GET("/status", r.handleStatus)
}

// handlePing 前端拉起后端后用来探活
func (r *Router) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "pong",
		"timestamp": logger.NowFormatted(),
	})
}

// handleHealth 健康检查
func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "lss",
		"version":   version.GetVersion(),
		"host":      monitor.GetHostInfo(r.log),
		"metrics":   monitor.GetSystemMetrics(r.log),
		"timestamp": logger.NowFormatted(),
	})
}

// handleVersion 版本信息
func (r *Router) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

// handleSubmit 接收归一化后的队列载荷，校验后放入串行执行队列
func (r *Router) handleSubmit(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSubmitBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": err.Error()})
		return
	}

	job, err := task.ParseJob(data, "")
	if err != nil {
		var cve *task.ConfigValidationError
		if errors.As(err, &cve) {
			c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": cve.Error(), "violations": cve.Violations})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": err.Error()})
		return
	}

	// 插件描述按提交方描述文件所在目录查找
	var head struct {
		BaseDir string `json:"baseDir"`
	}
	_ = json.Unmarshal(data, &head)
	descriptorPath := ""
	if head.BaseDir != "" {
		descriptorPath = filepath.Join(head.BaseDir, "queue.json")
	}

	sub, err := r.dispatcher.Submit(job, descriptorPath)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"accepted": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "queue": job.JobName(), "id": sub.ID})
}

// handleStatus 当前执行状态
func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.dispatcher.Status())
}
