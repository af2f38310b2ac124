package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-workflow/internal/auth"
	"github.com/hackgods/hospital-workflow/internal/config"
	"github.com/hackgods/hospital-workflow/internal/db"
	"github.com/hackgods/hospital-workflow/internal/hospital"
	"github.com/hackgods/hospital-workflow/internal/logging"
)

type SimConfig struct {
	APIBaseURL        string
	Duration          time.Duration
	Workers           int
	DispenseRatio     float64
	LookupRatio       float64
	SearchRatio       float64
	PatientLimit      int
	PrescriptionLimit int
	PostgresDSN       string
	DBMaxConns        int32
	JWTSecret         string
	JWTIssuer         string
	TokenTTL          time.Duration
}

type entryRef struct {
	PrescriptionID int64
	EntryID        uuid.UUID
}

// DataPool holds the identifiers workers pick from. Entries are shared on
// purpose so several workers dispense against the same prescription.
type DataPool struct {
	Patients []int64
	Entries  []entryRef
}

var searchTerms = []string{"pump", "PUMP", "monitor", "x-ray", "scan", "analyzer", "vent", "zzz"}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeRejected
	outcomeError
)

func classify(status int, err error, ok int) outcome {
	switch {
	case err != nil:
		return outcomeError
	case status == ok:
		return outcomeSuccess
	case status == http.StatusConflict:
		return outcomeConflict
	case status >= 400 && status < 500:
		return outcomeRejected
	default:
		return outcomeError
	}
}

func (om *OperationMetrics) Record(latency time.Duration, o outcome) {
	atomic.AddInt64(&om.Total, 1)
	switch o {
	case outcomeSuccess:
		atomic.AddInt64(&om.Success, 1)
	case outcomeConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case outcomeRejected:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, pct int) int {
	idx := n * pct / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Dispense     OperationMetrics
	PatientTests OperationMetrics
	Equipment    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	tokens  map[hospital.Role]string
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	cfg, err := loadConfig()
	logger := logging.New("dev", "info", "simulate")
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("dispense", cfg.DispenseRatio).
		Float64("lookup", cfg.LookupRatio).
		Float64("search", cfg.SearchRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.DBMaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("entries", len(dataPool.Entries)).
		Msg("data pool loaded")

	tokens, err := issueTokens(auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL))
	if err != nil {
		logger.Fatal().Err(err).Msg("issue tokens")
	}

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: tokens,
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	cfg := SimConfig{
		APIBaseURL:        getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:          getDuration("SIM_DURATION", 30*time.Second),
		Workers:           getInt("SIM_WORKERS", 10),
		DispenseRatio:     getFloat("SIM_DISPENSE_RATIO", 0.5),
		LookupRatio:       getFloat("SIM_LOOKUP_RATIO", 0.3),
		SearchRatio:       getFloat("SIM_SEARCH_RATIO", 0.2),
		PatientLimit:      getInt("SIM_PATIENT_LIMIT", 2000),
		PrescriptionLimit: getInt("SIM_PRESCRIPTION_LIMIT", 200),
		PostgresDSN:       baseCfg.PostgresDSN,
		DBMaxConns:        baseCfg.DBMaxConns,
		JWTSecret:         baseCfg.JWTSecret,
		JWTIssuer:         baseCfg.JWTIssuer,
		TokenTTL:          baseCfg.TokenTTL,
	}

	total := cfg.DispenseRatio + cfg.LookupRatio + cfg.SearchRatio
	if total > 0 {
		cfg.DispenseRatio /= total
		cfg.LookupRatio /= total
		cfg.SearchRatio /= total
	}

	if cfg.PostgresDSN == "" {
		return cfg, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	return cfg, nil
}

func issueTokens(ts *auth.TokenService) (map[hospital.Role]string, error) {
	tokens := make(map[hospital.Role]string)
	for i, role := range []hospital.Role{hospital.RolePharmacist, hospital.RolePathologist} {
		tok, err := ts.Issue(int64(900000+i), string(role))
		if err != nil {
			return nil, err
		}
		tokens[role] = tok
	}
	return tokens, nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY id LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}
	rows.Close()

	// Only open prescriptions are interesting; each entry becomes a target.
	rows, err = pool.Query(ctx, `
		SELECT p.id, (e->>'id')::uuid
		FROM prescriptions p, jsonb_array_elements(p.entries) e
		WHERE p.status IN ('pending', 'partially_dispensed')
		  AND (e->>'dispensed_qty')::int < (e->>'quantity')::int
		ORDER BY p.id
		LIMIT $1
	`, cfg.PrescriptionLimit)
	if err != nil {
		return nil, fmt.Errorf("load prescription entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref entryRef
		if err := rows.Scan(&ref.PrescriptionID, &ref.EntryID); err != nil {
			return nil, err
		}
		dataPool.Entries = append(dataPool.Entries, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Entries) == 0 {
		return nil, fmt.Errorf("no open prescription entries loaded")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.DispenseRatio:
				s.doDispense(ctx, rng)
			case r < s.config.DispenseRatio+s.config.LookupRatio:
				s.doPatientTests(ctx, rng)
			default:
				s.doEquipmentSearch(ctx, rng)
			}
		}
	}
}

func (s *Simulator) do(ctx context.Context, role hospital.Role, method, path string, body any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.tokens[role])

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// doDispense hands out a single unit. Entries run out over time, after which
// the API answers 400 and the call counts as rejected.
func (s *Simulator) doDispense(ctx context.Context, rng *rand.Rand) {
	ref := s.pool.Entries[rng.Intn(len(s.pool.Entries))]

	start := time.Now()
	status, err := s.do(ctx, hospital.RolePharmacist, http.MethodPut,
		fmt.Sprintf("/prescriptions/%d/entries/%s", ref.PrescriptionID, ref.EntryID),
		map[string]int{"dispensed_qty": 1})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Dispense.Record(time.Since(start), classify(status, err, http.StatusOK))
}

func (s *Simulator) doPatientTests(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, err := s.do(ctx, hospital.RolePathologist, http.MethodGet,
		"/patients/tests?searchById="+strconv.FormatInt(patientID, 10), nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.PatientTests.Record(time.Since(start), classify(status, err, http.StatusOK))
}

func (s *Simulator) doEquipmentSearch(ctx context.Context, rng *rand.Rand) {
	term := searchTerms[rng.Intn(len(searchTerms))]

	start := time.Now()
	status, err := s.do(ctx, hospital.RolePathologist, http.MethodGet,
		"/equipment?searchBy="+url.QueryEscape(term), nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Equipment.Record(time.Since(start), classify(status, err, http.StatusOK))
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Dispense", &s.metrics.Dispense)
	printOperationReport("Patient tests lookup", &s.metrics.PatientTests)
	printOperationReport("Equipment search", &s.metrics.Equipment)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }
	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, pct(rejected))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
