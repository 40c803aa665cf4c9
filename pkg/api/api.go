// Package api implements the calculator's REST API.
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/astatarinov/calc/pkg/batch"
	"github.com/astatarinov/calc/pkg/service"
	"github.com/astatarinov/calc/pkg/store"
)

// Options configures the HTTP server.
type Options struct {
	// AccessLog enables per-request logging.
	AccessLog bool
}

// Server is the REST API server.
type Server struct {
	app *fiber.App
	svc *service.Service
}

// New creates a new API server.
func New(svc *service.Service, opts Options) *Server {
	srv := &Server{svc: svc}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}

	// Evaluations API
	app.Post("/v1/evaluations", srv.createEvaluation)
	app.Get("/v1/evaluations", srv.listEvaluations)
	app.Get("/v1/evaluations/:evaluation", srv.getEvaluation)

	// Batches API
	app.Post("/v1/batches", srv.createBatch)
	app.Get("/v1/batches", srv.listBatches)
	app.Get("/v1/batches/:batch", srv.getBatch)
	app.Patch("/v1/batches/:batch", srv.updateBatch)
	app.Delete("/v1/batches/:batch", srv.deleteBatch)
	app.Post("/v1/batches/:batch/runs", srv.runBatch)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// WatchDir loads the batch files in dir and reloads them as they change
// until ctx is done.
func (s *Server) WatchDir(ctx context.Context, dir string) error {
	return s.svc.Watch(ctx, dir)
}

// --- Evaluation Handlers ---

type createEvaluationRequest struct {
	Expression *string `json:"expression"`
}

func (s *Server) createEvaluation(c *fiber.Ctx) error {
	var req createEvaluationRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Expression == nil {
		return errorJSON(c, 400, "INVALID_ARGUMENT", "expression is required")
	}

	// Calculator errors are part of the FAILED evaluation, not an HTTP error.
	ev, _ := s.svc.Evaluate(*req.Expression)
	return c.Status(200).JSON(EvaluationToJSON(ev))
}

func (s *Server) getEvaluation(c *fiber.Ctx) error {
	ev, err := s.svc.Store().GetEvaluation(store.EvaluationName(c.Params("evaluation")))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(EvaluationToJSON(ev))
}

func (s *Server) listEvaluations(c *fiber.Ctx) error {
	var batchName string
	if id := c.Query("batch"); id != "" {
		batchName = store.BatchName(id)
	}
	evals := s.svc.Store().ListEvaluations(batchName)

	items := make([]fiber.Map, len(evals))
	for i, ev := range evals {
		items[i] = EvaluationToJSON(ev)
	}

	return c.JSON(fiber.Map{
		"evaluations": items,
	})
}

// --- Batch Handlers ---

type createBatchRequest struct {
	SourceContents string `json:"sourceContents"`
	Description    string `json:"description"`
}

func (s *Server) createBatch(c *fiber.Ctx) error {
	batchID := c.Query("batchId")
	if batchID == "" {
		return errorJSON(c, 400, "INVALID_ARGUMENT", "batchId query parameter is required")
	}

	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.SourceContents == "" {
		return errorJSON(c, 400, "INVALID_ARGUMENT", "sourceContents is required")
	}

	b, err := s.svc.CreateBatch(batchID, req.SourceContents, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.Status(200).JSON(BatchToJSON(b))
}

func (s *Server) getBatch(c *fiber.Ctx) error {
	b, err := s.svc.Store().GetBatch(store.BatchName(c.Params("batch")))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(BatchToJSON(b))
}

func (s *Server) listBatches(c *fiber.Ctx) error {
	batches := s.svc.Store().ListBatches()

	items := make([]fiber.Map, len(batches))
	for i, b := range batches {
		items[i] = BatchToJSON(b)
	}

	return c.JSON(fiber.Map{
		"batches": items,
	})
}

func (s *Server) updateBatch(c *fiber.Ctx) error {
	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	b, err := s.svc.UpdateBatch(store.BatchName(c.Params("batch")), req.SourceContents, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(BatchToJSON(b))
}

func (s *Server) deleteBatch(c *fiber.Ctx) error {
	name := store.BatchName(c.Params("batch"))
	if err := s.svc.DeleteBatch(name); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{
		"name": name,
		"done": true,
	})
}

func (s *Server) runBatch(c *fiber.Ctx) error {
	run, err := s.svc.RunBatch(c.UserContext(), store.BatchName(c.Params("batch")))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(RunToJSON(run))
}

// --- Helpers ---

func errorJSON(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

// storeError maps service and store errors onto HTTP statuses.
func storeError(c *fiber.Ctx, err error) error {
	var pe *batch.ParseError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errorJSON(c, 404, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return errorJSON(c, 409, "ALREADY_EXISTS", err.Error())
	case errors.As(err, &pe), errors.Is(err, service.ErrInvalidBatchID):
		return errorJSON(c, 400, "INVALID_ARGUMENT", err.Error())
	default:
		return errorJSON(c, 500, "INTERNAL", err.Error())
	}
}

// EvaluationToJSON converts a stored evaluation into its API representation.
func EvaluationToJSON(ev *store.Evaluation) fiber.Map {
	result := fiber.Map{
		"name":       ev.Name,
		"expression": ev.Expression,
		"state":      ev.State,
		"createTime": ev.CreateTime.Format(time.RFC3339),
	}

	if ev.Postfix != "" {
		result["postfix"] = ev.Postfix
	}
	if ev.Result != nil {
		result["result"] = *ev.Result
		result["resultType"] = ev.ResultType
		result["display"] = ev.Result.String()
	}
	if ev.Error != nil {
		result["error"] = ev.Error
	}
	if ev.Batch != "" {
		result["batch"] = ev.Batch
		result["entry"] = ev.Entry
	}

	return result
}

// BatchToJSON converts a stored batch into its API representation.
func BatchToJSON(b *store.Batch) fiber.Map {
	return fiber.Map{
		"name":           b.Name,
		"description":    b.Description,
		"revisionId":     b.RevisionID,
		"createTime":     b.CreateTime.Format(time.RFC3339),
		"updateTime":     b.UpdateTime.Format(time.RFC3339),
		"sourceContents": b.SourceCode,
	}
}

// RunToJSON converts a batch run into its API representation.
func RunToJSON(run *service.BatchRun) fiber.Map {
	evals := make([]fiber.Map, len(run.Evaluations))
	for i, ev := range run.Evaluations {
		evals[i] = EvaluationToJSON(ev)
	}

	result := fiber.Map{
		"batch":       run.Batch,
		"summary":     run.Summary,
		"evaluations": evals,
	}
	if len(run.Skipped) > 0 {
		result["skipped"] = run.Skipped
	}
	if len(run.Mismatched) > 0 {
		result["mismatched"] = run.Mismatched
	}
	if run.Fatal != nil {
		result["fatal"] = fiber.Map{
			"kind":    run.Fatal.Kind,
			"message": run.Fatal.Message,
			"fatal":   run.Fatal.Fatal,
		}
	}
	return result
}
