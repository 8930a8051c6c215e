package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/iwvelando/solar-forecast/internal/config"
	"github.com/iwvelando/solar-forecast/internal/forecast"
	"github.com/iwvelando/solar-forecast/internal/irradiance"
	"github.com/iwvelando/solar-forecast/internal/projection"
	"github.com/iwvelando/solar-forecast/internal/pvsystem"
	"github.com/iwvelando/solar-forecast/pkg/constants"
	"github.com/iwvelando/solar-forecast/pkg/output"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed static/*
var staticFiles embed.FS

// Options configures the HTTP handler.
type Options struct {
	Logger         *zap.Logger
	Provider       irradiance.Provider // irradiation source for uploaded configurations
	MaxUploadSize  int64
	AllowedOrigins []string
	RequestTimeout time.Duration
	Version        string
}

type handler struct {
	logger        *zap.Logger
	provider      irradiance.Provider
	maxUploadSize int64
	version       string
}

// NewHandler constructs the HTTP handler that serves the web UI and the
// projection API.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxUploadSize := opts.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	provider := opts.Provider
	if provider == nil {
		provider = irradiance.NewOpenMeteo(irradiance.OpenMeteoOptions{Logger: logger})
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = constants.DefaultRequestTimeout * time.Second
	}

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	h := &handler{
		logger:        logger,
		provider:      provider,
		maxUploadSize: maxUploadSize,
		version:       version,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/version", h.handleVersion)
		r.Get("/irradiance", h.handleIrradiance)
		r.Post("/projection", h.handleProjection)
		r.Post("/forecast", h.handleForecast)
		r.Route("/editor", func(r chi.Router) {
			r.Post("/forecast", h.handleForecastEditor)
			r.Post("/export", h.handleConfigExport)
		})
	})

	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	r.Handle("/*", http.FileServer(http.FS(sub)))

	return r
}

// Server wraps the handler in an http.Server.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// New builds a server from its configuration. Uploaded configurations are
// served by an archive client built from cfg.Irradiance unless they carry a
// fixed irradiation.
func New(cfg *Config, logger *zap.Logger, version string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider := irradiance.NewOpenMeteo(forecast.OpenMeteoOptions(logger, cfg.Irradiance))
	h := NewHandler(Options{
		Logger:         logger,
		Provider:       provider,
		MaxUploadSize:  cfg.UploadSizeBytes(),
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.Timeout(),
		Version:        version,
	})

	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:              cfg.Address,
			Handler:           h,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      cfg.Timeout() + 5*time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.String("op", "server.Start"),
		zap.String("address", s.server.Addr),
	)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server", zap.String("op", "server.Shutdown"))
	return s.server.Shutdown(ctx)
}

func (h *handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Debug("HTTP request",
			zap.String("op", "server.request"),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())),
		)
	})
}

// projectionRequest is the JSON body of /api/projection. Omitted fields
// take the same defaults as the configuration file.
type projectionRequest struct {
	projection.Input
	SellPrice  *float64 `json:"sellPrice,omitempty"` // unset sells at the buy price
	TargetYear *int     `json:"targetYear,omitempty"`
}

func newProjectionRequest() projectionRequest {
	return projectionRequest{
		Input: projection.Input{
			SelfConsumptionPct: constants.DefaultSelfConsumptionPct,
			DegradationPct:     constants.DefaultDegradationPct,
			HorizonYears:       constants.DefaultHorizonYears,
		},
	}
}

// projectionInput resolves the export price the way the configuration does.
func (req projectionRequest) projectionInput() projection.Input {
	in := req.Input
	in.SellPrice = in.BuyPrice
	if req.SellPrice != nil {
		in.SellPrice = *req.SellPrice
	}
	return in
}

type projectionResponse struct {
	Input   projection.Input           `json:"input"`
	Points  []projection.CashFlowPoint `json:"points"`
	Summary projection.Summary         `json:"summary"`
}

type irradianceResponse struct {
	Location    irradiance.Location `json:"location"`
	KWhPerM2    float64             `json:"kwhPerM2"`
	Years       []int               `json:"years,omitempty"`
	Days        int                 `json:"days"`
	Source      string              `json:"source"`
	CapacityKWp *float64            `json:"capacityKWp,omitempty"`
	Production  *float64            `json:"production,omitempty"`
}

type forecastResponse struct {
	Scenarios  []string               `json:"scenarios"`
	Reports    []output.Report        `json:"reports"`
	Rows       []forecastRow          `json:"rows"`
	CSV        string                 `json:"csv"`
	Warnings   []string               `json:"warnings,omitempty"`
	Duration   string                 `json:"duration"`
	Config     map[string]interface{} `json:"config,omitempty"`
	ConfigYAML string                 `json:"configYaml,omitempty"`
}

type forecastRow struct {
	Year   int             `json:"year"`
	Values []scenarioValue `json:"values"`
}

type scenarioValue struct {
	Net     *float64 `json:"net,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) handleIrradiance(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleIrradiance"

	loc, err := parseLocation(r)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	system, sized, err := parseSystem(r)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	reading, err := h.provider.AnnualIrradiation(r.Context(), loc)
	if err != nil {
		h.respondForecastError(w, err, op)
		return
	}

	resp := irradianceResponse{
		Location: reading.Location,
		KWhPerM2: reading.KWhPerM2,
		Years:    reading.Years,
		Days:     reading.Days,
		Source:   reading.Source,
	}
	if sized {
		production, err := system.AnnualProduction(reading.KWhPerM2)
		if err != nil {
			h.respondForecastError(w, err, op)
			return
		}
		capacity := system.CapacityKWp()
		resp.CapacityKWp = &capacity
		resp.Production = &production
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// parseSystem reads the optional capacity, roofArea and efficiency query
// parameters. It reports false when neither size is given.
func parseSystem(r *http.Request) (pvsystem.System, bool, error) {
	query := r.URL.Query()
	var system pvsystem.System
	for name, dst := range map[string]*float64{
		"capacity":   &system.Capacity,
		"roofArea":   &system.RoofArea,
		"efficiency": &system.Efficiency,
	} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return pvsystem.System{}, false, fmt.Errorf("invalid %s %q", name, raw)
		}
		*dst = v
	}

	if system.Capacity == 0 && system.RoofArea == 0 {
		return pvsystem.System{}, false, nil
	}
	system = system.WithDefaults()
	return system, true, system.Validate()
}

func parseLocation(r *http.Request) (irradiance.Location, error) {
	query := r.URL.Query()
	latStr, lonStr := strings.TrimSpace(query.Get("lat")), strings.TrimSpace(query.Get("lon"))
	if latStr == "" || lonStr == "" {
		return irradiance.Location{}, errors.New("lat and lon query parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return irradiance.Location{}, fmt.Errorf("invalid lat %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return irradiance.Location{}, fmt.Errorf("invalid lon %q", lonStr)
	}

	loc := irradiance.Location{Latitude: lat, Longitude: lon}
	return loc, loc.Validate()
}

func (h *handler) handleProjection(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleProjection"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	req := newProjectionRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode projection input: %v", err), op)
		return
	}

	result, err := projection.Project(req.projectionInput())
	if err != nil {
		h.respondForecastError(w, err, op)
		return
	}

	target := result.Horizon()
	if req.TargetYear != nil {
		target = *req.TargetYear
	}
	summary, err := result.Summary(target)
	if err != nil {
		h.respondForecastError(w, err, op)
		return
	}

	h.writeJSON(w, http.StatusOK, projectionResponse{
		Input:   result.Input(),
		Points:  result.Points(),
		Summary: summary,
	})
}

func (h *handler) handleForecast(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecast"

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, "missing configuration file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to read configuration: %v", err), op)
		return
	}

	configBytes := buf.Bytes()
	configMap, err := decodeYAMLToMap(configBytes)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("error reading config data, %v", err), op)
		return
	}

	h.runForecast(w, r, configBytes, configMap, start, op)
}

func (h *handler) handleForecastEditor(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleForecastEditor"

	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode configuration: %v", err), op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	configPayload := payload
	if rawConfig, ok := payload["config"]; ok {
		cfgMap, ok := rawConfig.(map[string]interface{})
		if !ok {
			h.respondErrorWithOp(w, http.StatusBadRequest, "invalid config payload: expected object", op)
			return
		}
		configPayload = cfgMap
	}

	configBytes, err := yaml.Marshal(configPayload)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.runForecast(w, r, configBytes, configPayload, start, op)
}

func (h *handler) handleConfigExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleConfigExport"

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode configuration: %v", err), op)
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}

	yamlBytes, err := marshalOrderedConfigYAML(payload)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to encode configuration: %v", err), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"configYaml": string(yamlBytes),
	})
}

// exportKeyOrder lists the leading sections of an exported file; anything
// else follows alphabetically.
var exportKeyOrder = []string{"logging", "output", "location", "system", "irradiance", "common", "scenarios"}

func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range exportKeyOrder {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	return yaml.Marshal(orderedConfig{items: items})
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}

// providerFor honors a fixed irradiation in the uploaded configuration and
// otherwise uses the server's own source.
func (h *handler) providerFor(cfg *config.Configuration) irradiance.Provider {
	if cfg.Irradiance.Fixed != nil {
		return forecast.NewProvider(h.logger, *cfg)
	}
	return h.provider
}

func (h *handler) runForecast(w http.ResponseWriter, r *http.Request, configBytes []byte, configMap map[string]interface{}, start time.Time, op string) {
	cfg, err := config.LoadConfigurationFromReader(bytes.NewReader(configBytes))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
		return
	}

	warnings := cfg.ValidateConfiguration()
	if err := cfg.Validate(); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid configuration: %v", err), op)
		return
	}

	results, err := forecast.GetForecast(r.Context(), h.logger, *cfg, h.providerFor(cfg))
	if err != nil {
		h.respondForecastError(w, err, op)
		return
	}

	elapsed := time.Since(start)

	if configMap == nil {
		configMap = make(map[string]interface{})
	}

	response := forecastResponse{
		Scenarios:  extractScenarioNames(results),
		Reports:    output.BuildReports(results),
		Rows:       buildRows(results),
		CSV:        output.CsvString(results),
		Warnings:   warnings,
		Duration:   elapsed.String(),
		Config:     configMap,
		ConfigYAML: string(configBytes),
	}

	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.Int("scenarios", len(response.Scenarios)),
		zap.Int("rows", len(response.Rows)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func decodeYAMLToMap(data []byte) (map[string]interface{}, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return make(map[string]interface{}), nil
	}

	var result map[string]interface{}
	if err := yaml.Unmarshal(trimmed, &result); err != nil {
		return nil, err
	}
	if result == nil {
		result = make(map[string]interface{})
	}
	return result, nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, irradiance.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, projection.ErrInvalidInput),
		errors.Is(err, projection.ErrQueryOutOfRange),
		errors.Is(err, irradiance.ErrInvalidLocation),
		errors.Is(err, pvsystem.ErrInvalidSystem):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondForecastError(w http.ResponseWriter, err error, op string) {
	status := statusFor(err)
	if status != http.StatusServiceUnavailable {
		h.respondErrorWithOp(w, status, err.Error(), op)
		return
	}

	h.logger.Warn("irradiation unavailable",
		zap.String("op", op),
		zap.Error(err),
	)
	h.writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"status": "unavailable",
	})
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func extractScenarioNames(results []forecast.Forecast) []string {
	names := make([]string, 0, len(results))
	for _, scenario := range results {
		names = append(names, scenario.Name)
	}
	return names
}

// buildRows lays the scenarios side by side per year. Years beyond a
// scenario's horizon carry an empty value.
func buildRows(results []forecast.Forecast) []forecastRow {
	maxHorizon := -1
	for _, scenario := range results {
		if h := scenario.Result.Horizon(); h > maxHorizon {
			maxHorizon = h
		}
	}

	rows := make([]forecastRow, 0, maxHorizon+1)
	for year := 0; year <= maxHorizon; year++ {
		row := forecastRow{Year: year, Values: make([]scenarioValue, 0, len(results))}
		for _, scenario := range results {
			point, err := scenario.Result.Point(year)
			if err != nil {
				row.Values = append(row.Values, scenarioValue{})
				continue
			}
			net, balance := point.NetCashFlow, point.CumulativeBalance
			row.Values = append(row.Values, scenarioValue{Net: &net, Balance: &balance})
		}
		rows = append(rows, row)
	}
	return rows
}
