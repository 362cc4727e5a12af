package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odvcencio/songlist/internal/auth"
	"github.com/odvcencio/songlist/internal/database"
	"github.com/odvcencio/songlist/internal/service"
)

type ServerOptions struct {
	// AppURL is the public base URL. An https URL marks cookies Secure.
	AppURL             string
	TrustedProxies     []string
	CORSAllowedOrigins []string
	// PublicRateLimit is requests per second per client on token lookups.
	// Zero disables limiting.
	PublicRateLimit float64
	PublicRateBurst int
	Providers       []*auth.Provider
	// Backup is nil when no destination is configured; POST /api/backup then
	// answers 501.
	Backup *service.BackupService
	// MetricsRegistry overrides the process-wide Prometheus registry.
	MetricsRegistry *prometheus.Registry
}

type Server struct {
	db            database.DB
	authSvc       *auth.Service
	bandSvc       *service.BandService
	catalogSvc    *service.CatalogService
	repertoireSvc *service.RepertoireService
	songlistSvc   *service.SonglistService
	inviteSvc     *service.InviteService
	backupSvc     *service.BackupService
	providers     map[string]*auth.Provider
	providerNames []string
	secureCookies bool
	clientIPs     *clientIPResolver
	publicLimiter *rateLimiter
	metrics       *httpMetrics
	gatherer      prometheus.Gatherer
	mux           *http.ServeMux
	handler       http.Handler
}

func NewServer(db database.DB, authSvc *auth.Service, opts ServerOptions) *Server {
	bands := service.NewBandService(db)
	s := &Server{
		db:            db,
		authSvc:       authSvc,
		bandSvc:       bands,
		catalogSvc:    service.NewCatalogService(db),
		repertoireSvc: service.NewRepertoireService(db, bands),
		songlistSvc:   service.NewSonglistService(db, bands),
		inviteSvc:     service.NewInviteService(db, bands),
		backupSvc:     opts.Backup,
		providers:     make(map[string]*auth.Provider),
		secureCookies: strings.HasPrefix(strings.ToLower(opts.AppURL), "https://"),
		clientIPs:     newClientIPResolver(opts.TrustedProxies),
		mux:           http.NewServeMux(),
	}
	for _, p := range opts.Providers {
		if p == nil {
			continue
		}
		s.providers[p.Name()] = p
		s.providerNames = append(s.providerNames, p.Name())
	}
	s.publicLimiter = newRateLimiter(opts.PublicRateLimit, opts.PublicRateBurst, s.clientIPs.clientIPFromRequest)
	if opts.MetricsRegistry != nil {
		s.metrics = newHTTPMetrics(opts.MetricsRegistry)
		s.gatherer = opts.MetricsRegistry
	} else {
		s.metrics = getDefaultHTTPMetrics()
		s.gatherer = prometheus.DefaultGatherer
	}
	s.routes()

	var h http.Handler = auth.Middleware(authSvc)(s.mux)
	h = requestBodyLimitMiddleware(h)
	h = corsMiddleware(opts.CORSAllowedOrigins, h)
	h = requestTracingMiddleware(h)
	h = requestMetricsMiddleware(s.metrics, h)
	s.handler = requestLoggingMiddleware(h)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metricsHandler(s.gatherer))

	// Auth
	s.mux.HandleFunc("GET /api/auth/providers", s.handleListProviders)
	s.mux.HandleFunc("GET /api/auth/{provider}/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/auth/{provider}/callback", s.handleCallback)
	s.mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))
	s.mux.HandleFunc("POST /api/auth/logout", s.requireAuth(s.handleLogout))

	// Bands and membership
	s.mux.HandleFunc("GET /api/bands", s.requireAuth(s.handleListBands))
	s.mux.HandleFunc("POST /api/bands", s.requireAuth(s.handleCreateBand))
	s.mux.HandleFunc("GET /api/bands/{id}", s.requireAuth(s.handleGetBand))
	s.mux.HandleFunc("PUT /api/bands/{id}", s.requireAuth(s.handleRenameBand))
	s.mux.HandleFunc("DELETE /api/bands/{id}", s.requireAuth(s.handleDeleteBand))
	s.mux.HandleFunc("GET /api/bands/{id}/members", s.requireAuth(s.handleListMembers))
	s.mux.HandleFunc("POST /api/bands/{id}/leave", s.requireAuth(s.handleLeaveBand))

	// Invites
	s.mux.HandleFunc("POST /api/bands/{id}/invites", s.requireAuth(s.handleCreateInvite))
	s.mux.HandleFunc("GET /api/invites/{token}", s.requireAuth(s.rateLimited(s.handleGetInvite)))
	s.mux.HandleFunc("POST /api/invites/{token}/accept", s.requireAuth(s.rateLimited(s.handleAcceptInvite)))

	// Band repertoire
	s.mux.HandleFunc("GET /api/bands/{id}/songs", s.requireAuth(s.handleListRepertoire))
	s.mux.HandleFunc("POST /api/bands/{id}/songs", s.requireAuth(s.handleAddRepertoire))
	s.mux.HandleFunc("PUT /api/bands/{id}/songs/{songId}", s.requireAuth(s.handleUpdateRepertoire))
	s.mux.HandleFunc("DELETE /api/bands/{id}/songs/{songId}", s.requireAuth(s.handleRemoveRepertoire))
	s.mux.HandleFunc("POST /api/bands/{id}/songs/{songId}/tags", s.requireAuth(s.handleAddRepertoireTag))
	s.mux.HandleFunc("DELETE /api/bands/{id}/songs/{songId}/tags/{tagId}", s.requireAuth(s.handleRemoveRepertoireTag))

	// Song catalog
	s.mux.HandleFunc("GET /api/songs", s.requireAuth(s.handleListSongs))
	s.mux.HandleFunc("POST /api/songs", s.requireAuth(s.handleCreateSong))
	s.mux.HandleFunc("GET /api/songs/{id}", s.requireAuth(s.handleGetSong))
	s.mux.HandleFunc("PUT /api/songs/{id}", s.requireAuth(s.handleUpdateSong))
	s.mux.HandleFunc("DELETE /api/songs/{id}", s.requireAuth(s.handleDeleteSong))
	s.mux.HandleFunc("POST /api/songs/{id}/tags", s.requireAuth(s.handleAddSongTag))
	s.mux.HandleFunc("DELETE /api/songs/{id}/tags/{tagId}", s.requireAuth(s.handleRemoveSongTag))
	s.mux.HandleFunc("GET /api/tags", s.requireAuth(s.handleListTags))
	s.mux.HandleFunc("POST /api/tags", s.requireAuth(s.handleCreateTag))

	// Songlists
	s.mux.HandleFunc("GET /api/songlists", s.requireAuth(s.handleListSonglists))
	s.mux.HandleFunc("POST /api/songlists", s.requireAuth(s.handleCreateSonglist))
	s.mux.HandleFunc("GET /api/songlists/{id}", s.requireAuth(s.handleGetSonglist))
	s.mux.HandleFunc("PUT /api/songlists/{id}", s.requireAuth(s.handleUpdateSonglist))
	s.mux.HandleFunc("DELETE /api/songlists/{id}", s.requireAuth(s.handleDeleteSonglist))
	s.mux.HandleFunc("PUT /api/songlists/{id}/songs", s.requireAuth(s.handleReplaceSonglistSongs))
	s.mux.HandleFunc("POST /api/songlists/{id}/share", s.requireAuth(s.handleShareSonglist))
	s.mux.HandleFunc("DELETE /api/songlists/{id}/share", s.requireAuth(s.handleUnshareSonglist))
	s.mux.HandleFunc("GET /api/share/{token}", s.rateLimited(s.handlePublicSonglist))

	// Maintenance
	s.mux.HandleFunc("POST /api/backup", s.requireAuth(s.handleBackup))
}

func (s *Server) requireAuth(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.GetClaims(r.Context()) == nil {
			jsonError(w, "authentication required", http.StatusUnauthorized)
			return
		}
		fn(w, r)
	}
}
