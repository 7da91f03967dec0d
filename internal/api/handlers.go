package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"github.com/undeadops/snip/internal/ratelimit"
	"github.com/undeadops/snip/internal/service"
	"github.com/undeadops/snip/internal/store"
	"github.com/undeadops/snip/internal/validator"
	"github.com/undeadops/snip/internal/web"
)

// Options configures the router.
type Options struct {
	BaseURL        string
	AllowedOrigins []string
	// RateLimit guards POST /shortUrls. Nil disables rate limiting.
	RateLimit *ratelimit.Options
}

type URLHandler struct {
	svc     *service.Shortener
	views   *web.Views
	baseURL string
	logger  zerolog.Logger
}

func Router(svc *service.Shortener, views *web.Views, opts Options, logger zerolog.Logger) *chi.Mux {
	h := &URLHandler{
		svc:     svc,
		views:   views,
		baseURL: opts.BaseURL,
		logger:  logger,
	}

	r := chi.NewRouter()

	r.Use(middleware.Heartbeat("/ping"))
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	}))

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	r.Get("/", h.Index)
	r.Handle("/static/*", http.StripPrefix("/static/", web.Static()))

	r.Group(func(r chi.Router) {
		if opts.RateLimit != nil {
			r.Use(ratelimit.Middleware(*opts.RateLimit))
		}
		r.Post("/shortUrls", h.CreateShortURL)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/urls", h.ListURLs)
		r.Delete("/urls/{shortUrl}", h.DeleteURL)
		r.Get("/stats/{shortUrl}", h.Stats)
	})

	// static segments above always win over this parameter
	r.Get("/{shortUrl}", h.Redirect)

	return r
}

func (h *URLHandler) Index(w http.ResponseWriter, r *http.Request) {
	urls, err := h.svc.Recent(r.Context())
	if err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	if err := h.views.Index(w, web.IndexData{ShortURLs: urls, BaseURL: h.baseURL}); err != nil {
		h.logger.Error().Err(err).Msg("failed to render index")
	}
}

type CreateShortURLRequest struct {
	FullURL string `json:"fullUrl" form:"fullUrl"`
}

func (c *CreateShortURLRequest) Bind(r *http.Request) error {
	if c.FullURL == "" {
		return &validator.ValidationError{Message: validator.MsgRequired, Rule: validator.RuleRequired}
	}
	return nil
}

func (h *URLHandler) CreateShortURL(w http.ResponseWriter, r *http.Request) {
	data := &CreateShortURLRequest{}
	if err := render.Bind(r, data); err != nil {
		var vErr *validator.ValidationError
		if !errors.As(err, &vErr) {
			// bodies that cannot be decoded carry no URL
			err = &validator.ValidationError{Message: validator.MsgRequired, Rule: validator.RuleRequired}
		}
		render.Render(w, r, errorResponse(r, err))
		return
	}

	if _, err := h.svc.Shorten(r.Context(), data.FullURL); err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *URLHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	render.JSON(w, r, result)
}

type StatsResponse struct {
	Full      string    `json:"full"`
	Short     string    `json:"short"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newStatsResponse(rec store.ShortURL) *StatsResponse {
	return &StatsResponse{
		Full:      rec.Full,
		Short:     rec.Short,
		Clicks:    rec.Clicks,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func (h *URLHandler) Stats(w http.ResponseWriter, r *http.Request) {
	short := chi.URLParam(r, "shortUrl")

	rec, err := h.svc.Stats(r.Context(), short)
	if err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	render.JSON(w, r, newStatsResponse(rec))
}

type DeleteURLResponse struct {
	Message string `json:"message"`
}

func (h *URLHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	short := chi.URLParam(r, "shortUrl")

	if err := h.svc.Delete(r.Context(), short); err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	render.JSON(w, r, &DeleteURLResponse{Message: "URL deleted successfully"})
}

func (h *URLHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	short := chi.URLParam(r, "shortUrl")

	rec, err := h.svc.Resolve(r.Context(), short)
	if errors.Is(err, store.ErrNotFound) {
		h.renderNotFound(w, short)
		return
	}
	if err != nil {
		render.Render(w, r, errorResponse(r, err))
		return
	}

	http.Redirect(w, r, rec.Full, http.StatusFound)
}

func (h *URLHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderNotFound(w, r.URL.Path)
}

func (h *URLHandler) renderNotFound(w http.ResponseWriter, path string) {
	if err := h.views.NotFound(w, path); err != nil {
		h.logger.Error().Err(err).Msg("failed to render not found page")
	}
}
