package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/donorpulse/donor-analytics/internal/analytics"
	"github.com/donorpulse/donor-analytics/internal/attribution"
	"github.com/donorpulse/donor-analytics/internal/config"
	"github.com/donorpulse/donor-analytics/internal/database"
	"github.com/donorpulse/donor-analytics/internal/metrics"
	"github.com/donorpulse/donor-analytics/internal/models"
	"github.com/donorpulse/donor-analytics/internal/rollup"
	"github.com/donorpulse/donor-analytics/internal/storage"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	DB         *database.PostgresDB
	Redis      *database.RedisDB
	ClickHouse *database.ClickHouseDB
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Server wraps HTTP handlers and analytics services.
type Server struct {
	dashboardService *analytics.DashboardService
	reconciler       *attribution.Reconciler
	rollupCache      *rollup.Cache
	txRepo           storage.TransactionRepo
	spendRepo        storage.SpendRepo
	mappingRepo      storage.MappingRepo
	campaignRepo     storage.CampaignRepo
	creativeRepo     storage.CreativeRepo
	touchpoints      storage.TouchpointStore
	logger           *zap.Logger
	config           *config.Config
	metrics          *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	// Initialize repositories
	var txRepo storage.TransactionRepo
	var spendRepo storage.SpendRepo
	var mappingRepo storage.MappingRepo
	var campaignRepo storage.CampaignRepo
	var creativeRepo storage.CreativeRepo

	if deps.DB != nil {
		txRepo = storage.NewPostgresTransactionRepo(deps.DB.Pool)
		spendRepo = storage.NewPostgresSpendRepo(deps.DB.Pool)
		mappingRepo = storage.NewPostgresMappingRepo(deps.DB.Pool)
		campaignRepo = storage.NewPostgresCampaignRepo(deps.DB.Pool)
		creativeRepo = storage.NewPostgresCreativeRepo(deps.DB.Pool)
	} else {
		txRepo = storage.NewInMemoryTransactionRepo()
		spendRepo = storage.NewInMemorySpendRepo()
		mappingRepo = storage.NewInMemoryMappingRepo()
		campaignRepo = storage.NewInMemoryCampaignRepo()
		creativeRepo = storage.NewInMemoryCreativeRepo()
	}

	var touchpoints storage.TouchpointStore
	if deps.ClickHouse != nil {
		touchpoints = storage.NewClickHouseTouchpointStore(deps.ClickHouse.Conn)
	} else {
		touchpoints = storage.NewInMemoryTouchpointStore()
	}

	loc := deps.Config.Location()

	dashboardSvc := analytics.NewDashboardService(txRepo, spendRepo, mappingRepo, loc, deps.Metrics)
	reconciler := attribution.NewReconciler(txRepo, mappingRepo, campaignRepo, creativeRepo, deps.Logger, deps.Metrics)

	var rollupCache *rollup.Cache
	if deps.Redis != nil {
		rollupCache = rollup.NewCache(deps.Redis.Client, txRepo, loc, deps.Config.Analytics.RollupTTL, deps.Logger, deps.Metrics)
	} else {
		rollupCache = rollup.NewCache(nil, txRepo, loc, deps.Config.Analytics.RollupTTL, deps.Logger, deps.Metrics)
	}

	s := &Server{
		dashboardService: dashboardSvc,
		reconciler:       reconciler,
		rollupCache:      rollupCache,
		txRepo:           txRepo,
		spendRepo:        spendRepo,
		mappingRepo:      mappingRepo,
		campaignRepo:     campaignRepo,
		creativeRepo:     creativeRepo,
		touchpoints:      touchpoints,
		logger:           deps.Logger,
		config:           deps.Config,
		metrics:          deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Dashboard
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/timeseries", s.handleTimeSeries)
	mux.HandleFunc("/api/channels", s.handleChannels)

	// Ingestion
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/spend", s.handleSpend)
	mux.HandleFunc("/api/touchpoints", s.handleTouchpoints)

	// Catalog management
	mux.HandleFunc("/api/campaigns", s.handleCampaigns)
	mux.HandleFunc("/api/campaigns/", s.handleCampaignByID)
	mux.HandleFunc("/api/creatives", s.handleCreatives)
	mux.HandleFunc("/api/creatives/", s.handleCreativeByID)

	// Attribution
	mux.HandleFunc("/api/attribution/reconcile", s.handleReconcile)
	mux.HandleFunc("/api/attribution/mappings", s.handleMappings)
	mux.HandleFunc("/api/attribution/multitouch", s.handleMultiTouch)

	// Rollups
	mux.HandleFunc("/api/rollup/daily", s.handleDailyRollup)

	return mux
}

// orgID resolves the organization for a request, falling back to the
// configured default for single-tenant deployments.
func (s *Server) orgID(r *http.Request) string {
	if org := r.URL.Query().Get("org_id"); org != "" {
		return org
	}
	return s.config.Analytics.DefaultOrgID
}

// parseFilter reads the dashboard selection from query parameters. Dates are
// interpreted in the organization's reporting timezone.
func (s *Server) parseFilter(r *http.Request) analytics.Filter {
	q := r.URL.Query()
	f := analytics.Filter{
		CampaignID: q.Get("campaign_id"),
		CreativeID: q.Get("creative_id"),
	}
	loc := s.dashboardService.Location()
	if v := q.Get("start_date"); v != "" {
		if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
			f.StartDate = t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
			f.EndDate = t
		}
	}
	return f
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// ---- Dashboard ----

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out, err := s.dashboardService.Dashboard(r.Context(), s.orgID(r), s.parseFilter(r))
	if err != nil {
		s.logger.Error("dashboard computation failed", zap.Error(err))
		s.errorResponse(w, "failed to compute metrics", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, out)
}

func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out, err := s.dashboardService.Dashboard(r.Context(), s.orgID(r), s.parseFilter(r))
	if err != nil {
		s.logger.Error("time series computation failed", zap.Error(err))
		s.errorResponse(w, "failed to compute time series", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, out.TimeSeries)
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	out, err := s.dashboardService.Dashboard(r.Context(), s.orgID(r), s.parseFilter(r))
	if err != nil {
		s.logger.Error("channel breakdown failed", zap.Error(err))
		s.errorResponse(w, "failed to compute channels", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, out.Channels)
}

// ---- Ingestion ----

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.txRepo.ListByOrg(r.Context(), s.orgID(r))
		if err != nil {
			s.logger.Error("failed to list transactions", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var t models.Transaction
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		if t.OrganizationID == "" {
			t.OrganizationID = s.config.Analytics.DefaultOrgID
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		if err := t.Validate(); err != nil {
			s.errorResponse(w, "invalid transaction: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.txRepo.Insert(r.Context(), &t); err != nil {
			s.logger.Error("failed to insert transaction", zap.Error(err))
			s.errorResponse(w, "failed to save", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, t)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSpend(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		loc := s.dashboardService.Location()
		var start, end time.Time
		if v := q.Get("start_date"); v != "" {
			if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
				start = t
			}
		}
		if v := q.Get("end_date"); v != "" {
			if t, err := time.ParseInLocation("2006-01-02", v, loc); err == nil {
				end = t
			}
		}

		var list []*models.SpendRecord
		var err error
		if !start.IsZero() || !end.IsZero() {
			list, err = s.spendRepo.ListByDateRange(r.Context(), s.orgID(r), start, end)
		} else {
			list, err = s.spendRepo.ListByOrg(r.Context(), s.orgID(r))
		}
		if err != nil {
			s.logger.Error("failed to list spend", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var rec models.SpendRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.OrganizationID == "" {
			rec.OrganizationID = s.config.Analytics.DefaultOrgID
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if err := rec.Validate(); err != nil {
			s.errorResponse(w, "invalid spend record: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.spendRepo.Insert(r.Context(), &rec); err != nil {
			s.logger.Error("failed to insert spend", zap.Error(err))
			s.errorResponse(w, "failed to save", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, rec)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTouchpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var tp models.Touchpoint
	if err := json.NewDecoder(r.Body).Decode(&tp); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if tp.OrganizationID == "" {
		tp.OrganizationID = s.config.Analytics.DefaultOrgID
	}
	if tp.DonorID == "" || tp.Channel == "" || tp.OccurredAt.IsZero() {
		s.errorResponse(w, "donor_id, channel and occurred_at are required", http.StatusBadRequest)
		return
	}
	if err := s.touchpoints.Save(r.Context(), &tp); err != nil {
		s.logger.Error("failed to save touchpoint", zap.Error(err))
		s.errorResponse(w, "failed to save", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, tp)
}

// ---- Campaigns CRUD ----

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.campaignRepo.ListByOrg(r.Context(), s.orgID(r))
		if err != nil {
			s.logger.Error("failed to list campaigns", zap.Error(err))
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var c models.Campaign
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if c.OrganizationID == "" {
			c.OrganizationID = s.config.Analytics.DefaultOrgID
		}
		now := time.Now().UTC()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		if err := c.Validate(); err != nil {
			s.errorResponse(w, "invalid campaign: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.campaignRepo.Upsert(r.Context(), &c); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, c)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/campaigns/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, err := s.campaignRepo.GetByID(r.Context(), id)
		if err != nil {
			s.logger.Error("failed to get campaign", zap.Error(err))
			s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if c == nil {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, c)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Creatives CRUD ----

func (s *Server) handleCreatives(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		campaignID := r.URL.Query().Get("campaign_id")
		var list []*models.Creative
		var err error
		if campaignID != "" {
			list, err = s.creativeRepo.ListByCampaign(r.Context(), campaignID)
		} else {
			list, err = s.creativeRepo.ListAll(r.Context())
		}
		if err != nil {
			s.errorResponse(w, "failed to list", http.StatusInternalServerError)
			return
		}
		s.jsonResponse(w, list)

	case http.MethodPost:
		var cr models.Creative
		if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if cr.ID == "" {
			s.errorResponse(w, "id is required", http.StatusBadRequest)
			return
		}
		now := time.Now().UTC()
		if cr.CreatedAt.IsZero() {
			cr.CreatedAt = now
		}
		cr.UpdatedAt = now
		if err := cr.Validate(); err != nil {
			s.errorResponse(w, "invalid creative: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.creativeRepo.Upsert(r.Context(), &cr); err != nil {
			s.errorResponse(w, "failed to save: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, cr)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreativeByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/creatives/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		cr, err := s.creativeRepo.GetByID(r.Context(), id)
		if err != nil {
			s.errorResponse(w, "error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if cr == nil {
			http.NotFound(w, r)
			return
		}
		s.jsonResponse(w, cr)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Attribution ----

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), s.orgID(r))
	if err != nil {
		s.logger.Error("reconciliation failed", zap.Error(err))
		s.errorResponse(w, "reconciliation failed", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, result)
}

func (s *Server) handleMappings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := s.mappingRepo.ListByOrg(r.Context(), s.orgID(r))
	if err != nil {
		s.logger.Error("failed to list mappings", zap.Error(err))
		s.errorResponse(w, "failed to list", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, list)
}

func (s *Server) handleMultiTouch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	donorID := q.Get("donor_id")
	if donorID == "" {
		s.errorResponse(w, "donor_id required", http.StatusBadRequest)
		return
	}
	amount, err := strconv.ParseFloat(q.Get("amount"), 64)
	if err != nil || amount <= 0 {
		s.errorResponse(w, "positive amount required", http.StatusBadRequest)
		return
	}

	journey, err := s.touchpoints.Journey(r.Context(), s.orgID(r), donorID)
	if err != nil {
		s.logger.Error("failed to load journey", zap.Error(err))
		s.errorResponse(w, "failed to load journey", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, attribution.Allocate(journey, amount))
}

// ---- Rollups ----

func (s *Server) handleDailyRollup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	orgID := s.orgID(r)

	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" && end != "" {
		rollups, err := s.rollupCache.Range(r.Context(), orgID, start, end)
		if err != nil {
			s.errorResponse(w, "failed to load rollups: "+err.Error(), http.StatusBadRequest)
			return
		}
		s.jsonResponse(w, rollups)
		return
	}

	day := q.Get("date")
	if day == "" {
		day = analytics.DayKey(time.Now(), s.dashboardService.Location())
	}
	roll, err := s.rollupCache.Daily(r.Context(), orgID, day)
	if err != nil {
		s.logger.Error("failed to load rollup", zap.Error(err))
		s.errorResponse(w, "failed to load rollup", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, roll)
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
