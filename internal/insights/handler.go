package insights

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/signalhq/signal/internal/api/respond"
	"github.com/signalhq/signal/internal/tenancy"
	"github.com/signalhq/signal/pkg/fault"
	"github.com/signalhq/signal/pkg/logging"
)

// Handler serves the account insights report.
type Handler struct {
	service *Service
	logger  *logging.Logger
	now     func() time.Time
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// Routes mounts the report endpoint; the whole package is rep-facing.
func (h *Handler) Routes(requireSession func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(requireSession)
	r.Get("/", h.Get)
	return r
}

// Get returns the report, optionally windowed by start_date/end_date
// (YYYY-MM-DD; end_date is inclusive through end of day).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := tenancy.SessionFromContext(r.Context())
	if !ok {
		respond.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	from, to, err := parseWindow(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"), h.now())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	report, err := h.service.Report(r.Context(), sess.AccountID, from, to)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, report)
}

func parseWindow(start, end string, now time.Time) (time.Time, time.Time, error) {
	from := time.Time{}
	to := now
	if start != "" {
		parsed, err := time.Parse("2006-01-02", start)
		if err != nil {
			return time.Time{}, time.Time{}, fault.Validation("invalid start_date, expected YYYY-MM-DD", err)
		}
		from = parsed
	}
	if end != "" {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return time.Time{}, time.Time{}, fault.Validation("invalid end_date, expected YYYY-MM-DD", err)
		}
		to = parsed.Add(24*time.Hour - time.Millisecond)
	}
	return from, to, nil
}
