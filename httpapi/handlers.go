package httpapi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/entitypipe/component"
	"github.com/kbukum/entitypipe/engine"
	"github.com/kbukum/entitypipe/errors"
	"github.com/kbukum/entitypipe/httpapi/middleware"
	"github.com/kbukum/entitypipe/loader"
	"github.com/kbukum/entitypipe/logger"
	"github.com/kbukum/entitypipe/pipeline"
	"github.com/kbukum/entitypipe/source"
	"github.com/kbukum/entitypipe/validation"
	"github.com/kbukum/entitypipe/version"
)

// HeaderExecutionID carries the execution ID of a pipeline run.
const HeaderExecutionID = "X-Execution-Id"

// Engine is what the API needs from the pipeline engine.
type Engine interface {
	Pipelines() []engine.Info
	Runner(name string) (loader.Runner, error)
	Definitions() []loader.PipelineDef
	Health(ctx context.Context) component.Health
}

// HealthChecker reports the health of every component /health covers.
type HealthChecker func(ctx context.Context) []component.Health

func engineHealth(e Engine) HealthChecker {
	return func(ctx context.Context) []component.Health {
		return []component.Health{e.Health(ctx)}
	}
}

// ExecuteRequest is the body of POST /pipelines/:name/execute.
type ExecuteRequest struct {
	Data json.RawMessage `json:"data" validate:"required"`
	// Operation is stored in the execution context for consumers.
	Operation string `json:"operation,omitempty"`
	// Values seed the execution context.
	Values map[string]any `json:"values,omitempty"`
}

var startTime = time.Now()

func (s *Server) routes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/info", s.handleInfo)
	s.router.GET("/graph", s.handleGraph)
	s.router.GET("/pipelines", s.handleList)
	s.router.GET("/pipelines/:name", s.handleGet)
	s.router.POST("/pipelines/:name/execute", s.handleExecute)
}

func (s *Server) handleHealth(c *gin.Context) {
	components := s.health(c.Request.Context())
	status := component.Overall(components)

	code := http.StatusOK
	if status == component.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"service":    s.service,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": s.service,
		"version": version.GetVersionInfo(),
		"uptime":  time.Since(startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleGraph(c *gin.Context) {
	dot, err := loader.Graph(s.engine.Definitions())
	if err != nil {
		RespondWithError(c, errors.Internal(err))
		return
	}
	c.Data(http.StatusOK, "text/vnd.graphviz; charset=utf-8", []byte(dot))
}

func (s *Server) handleList(c *gin.Context) {
	RespondOK(c, s.engine.Pipelines())
}

// PipelineDetail is the body of GET /pipelines/:name.
type PipelineDetail struct {
	engine.Info
	Definition loader.PipelineDef `json:"definition"`
}

func (s *Server) handleGet(c *gin.Context) {
	name := c.Param("name")
	var detail *PipelineDetail
	for _, info := range s.engine.Pipelines() {
		if info.Name == name {
			detail = &PipelineDetail{Info: info}
			break
		}
	}
	if detail == nil {
		RespondWithError(c, errors.NotFound("pipeline", name))
		return
	}
	for _, def := range s.engine.Definitions() {
		if def.Name == name {
			detail.Definition = def
			break
		}
	}
	RespondOK(c, detail)
}

func (s *Server) handleExecute(c *gin.Context) {
	name := c.Param("name")
	runner, err := s.engine.Runner(name)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errors.InvalidInput("body", fmt.Sprintf("exceeds %d bytes", tooLarge.Limit)).ToResponse())
			return
		}
		RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		RespondWithError(c, err)
		return
	}

	pctx := pipeline.NewContextWith(req.Values)
	if req.Operation != "" {
		source.WithOperation(pctx, req.Operation)
	}
	c.Header(HeaderExecutionID, pctx.ID())

	ctx := pctx.Bind(c.Request.Context())
	log := s.log.WithContext(ctx).WithFields(logger.Fields(
		logger.FieldPipeline, name,
		logger.FieldRequestID, c.GetHeader(middleware.HeaderRequestID),
	))
	res, err := runner.Run(ctx, req.Data, pctx)
	if err != nil {
		log.Error("pipeline execution failed", logger.MergeWithError(nil, err))
		RespondWithError(c, err)
		return
	}
	log.Debug("pipeline executed", logger.Fields(logger.FieldState, res.State.String()))
	c.JSON(http.StatusOK, res)
}
