// Package web provides the embedded web UI for the calculator.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/astatarinov/calc/pkg/service"
	"github.com/astatarinov/calc/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentLimit is the number of evaluations listed on the dashboard.
const recentLimit = 10

// Handler serves the web UI pages.
type Handler struct {
	svc     *service.Service
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(svc *service.Service) *Handler {
	return &Handler{
		svc: svc,
		funcMap: template.FuncMap{
			"shortName":  shortName,
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
			"countLines": countLines,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with the layout on its own so that define blocks
	// from different pages never collide.
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Post("/ui/evaluate", h.evaluate)
	app.Get("/ui/evaluations/:id", h.evaluationDetail)
	app.Get("/ui/batches/:batch", h.batchDetail)
	app.Post("/ui/batches/:batch/run", h.runBatch)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Batches        []*batchView
	Recent         []*store.Evaluation
	SucceededCount int
	FailedCount    int
	FatalCount     int
	LastExpression string
}

type batchView struct {
	*store.Batch
	ID              string
	EvaluationCount int
	FailedCount     int
}

type evaluationDetailContent struct {
	Evaluation *store.Evaluation
	BatchID    string
}

type batchDetailContent struct {
	Batch       *store.Batch
	ID          string
	Evaluations []*store.Evaluation
	Run         *service.BatchRun
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	st := h.svc.Store()
	evals := st.ListEvaluations("")

	var succeeded, failed, fatal int
	for _, ev := range evals {
		switch {
		case ev.State == store.EvaluationSucceeded:
			succeeded++
		case ev.Error != nil && ev.Error.Fatal:
			fatal++
		default:
			failed++
		}
	}

	// Newest first.
	recent := make([]*store.Evaluation, 0, recentLimit)
	for i := len(evals) - 1; i >= 0 && len(recent) < recentLimit; i-- {
		recent = append(recent, evals[i])
	}

	var views []*batchView
	for _, b := range st.ListBatches() {
		bevals := st.ListEvaluations(b.Name)
		failedCount := 0
		for _, ev := range bevals {
			if ev.State == store.EvaluationFailed {
				failedCount++
			}
		}
		views = append(views, &batchView{
			Batch:           b,
			ID:              shortName(b.Name),
			EvaluationCount: len(bevals),
			FailedCount:     failedCount,
		})
	}

	return h.render(c, "dashboard.html", "dashboard", dashboardContent{
		Batches:        views,
		Recent:         recent,
		SucceededCount: succeeded,
		FailedCount:    failed,
		FatalCount:     fatal,
		LastExpression: c.Query("expression"),
	})
}

func (h *Handler) evaluate(c *fiber.Ctx) error {
	// A failed evaluation is recorded too; its page shows the error.
	ev, _ := h.svc.Evaluate(c.FormValue("expression"))
	return c.Redirect("/ui/evaluations/" + shortName(ev.Name))
}

func (h *Handler) evaluationDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	ev, err := h.svc.Store().GetEvaluation(store.EvaluationName(id))
	if err != nil {
		return h.notFound(c, fmt.Sprintf("Evaluation '%s' not found", id))
	}

	var batchID string
	if ev.Batch != "" {
		batchID = shortName(ev.Batch)
	}
	return h.render(c, "evaluation_detail.html", "dashboard", evaluationDetailContent{
		Evaluation: ev,
		BatchID:    batchID,
	})
}

func (h *Handler) batchDetail(c *fiber.Ctx) error {
	return h.renderBatch(c, nil)
}

func (h *Handler) runBatch(c *fiber.Ctx) error {
	run, err := h.svc.RunBatch(c.UserContext(), store.BatchName(c.Params("batch")))
	if err != nil {
		return h.notFound(c, err.Error())
	}
	return h.renderBatch(c, run)
}

func (h *Handler) renderBatch(c *fiber.Ctx, run *service.BatchRun) error {
	id := c.Params("batch")
	name := store.BatchName(id)

	b, err := h.svc.Store().GetBatch(name)
	if err != nil {
		return h.notFound(c, fmt.Sprintf("Batch '%s' not found", id))
	}

	return h.render(c, "batch_detail.html", "batches", batchDetailContent{
		Batch:       b,
		ID:          id,
		Evaluations: h.svc.Store().ListEvaluations(name),
		Run:         run,
	})
}

func (h *Handler) notFound(c *fiber.Ctx, msg string) error {
	c.Status(404)
	return h.render(c, "not_found.html", "", notFoundContent{Message: msg})
}

// --- Template Helpers ---

func shortName(fullName string) string {
	parts := strings.Split(fullName, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return fullName
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func stateClass(ev *store.Evaluation) string {
	switch {
	case ev.State == store.EvaluationSucceeded:
		return "state-succeeded"
	case ev.Error != nil && ev.Error.Fatal:
		return "state-fatal"
	default:
		return "state-failed"
	}
}

func stateIcon(ev *store.Evaluation) template.HTML {
	switch {
	case ev.State == store.EvaluationSucceeded:
		return "&#10003;"
	case ev.Error != nil && ev.Error.Fatal:
		return "&#9632;"
	default:
		return "&#10007;"
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
