package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dom/medtrack/internal/api"
	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/repository"
	"github.com/dom/medtrack/internal/repository/memory"
	repoPostgres "github.com/dom/medtrack/internal/repository/postgres"
	"github.com/dom/medtrack/internal/service"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB starts a PostgreSQL container and connects to it, which also
// migrates the schema. The test is skipped in -short mode or when no
// container runtime is available.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_medtrack"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	testDB := &TestDB{Container: container}
	t.Cleanup(func() {
		testDB.Cleanup()
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	testDB.DSN = dsn

	db, err := repoPostgres.NewConnection(dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	testDB.DB = db

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		_ = tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	for _, table := range []string{"doses", "medications", "user_sessions", "users"} {
		if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)).Error; err != nil {
			t.Logf("warning: failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a configuration suitable for testing
func TestConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Environment:        "test",
		LogLevel:           "disabled",
		JWTSecret:          "test-jwt-secret-key-for-testing-only",
		JWTExpirationHours: 1,
		RefreshTokenTTL:    24 * time.Hour,
		ActorCacheTTL:      time.Minute,
		Location:           time.UTC,
		BcryptCost:         4,
	}
}

// Clock is a settable time source shared by the services under test
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// At returns hour:minute UTC on a fixed test day
func At(hour, minute int) time.Time {
	return time.Date(2024, time.March, 14, hour, minute, 0, 0, time.UTC)
}

// NewMemoryRepos returns repositories backed by a fresh in-memory store
func NewMemoryRepos() *repository.Repositories {
	return memory.NewRepositories(memory.NewStore())
}

// NewTestServices wires services over repos with a pinned clock and no
// actor cache
func NewTestServices(repos *repository.Repositories, cfg *config.Config, clock *Clock) *service.Services {
	return NewTestServicesWithCache(repos, cfg, clock, cache.NewNoop())
}

// NewTestServicesWithCache is NewTestServices sharing actorCache with the
// caller, typically the resolver of a test server
func NewTestServicesWithCache(repos *repository.Repositories, cfg *config.Config, clock *Clock, actorCache cache.ActorCache) *service.Services {
	services := service.NewServices(repos, cfg, actorCache, zerolog.Nop())
	services.Auth.WithClock(clock.Now)
	services.Adherence.WithClock(clock.Now)
	services.Admin.WithClock(clock.Now)
	return services
}

// TestServer holds all components for HTTP-level testing
type TestServer struct {
	Server   *httptest.Server
	Repos    *repository.Repositories
	Services *service.Services
	Config   *config.Config
	Clock    *Clock
}

// NewTestServer starts an httptest server over the in-memory store and
// actor cache. The clock starts at 12:00 UTC on a fixed day.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()

	cfg := TestConfig()
	repos := NewMemoryRepos()
	clock := NewClock(At(12, 0))
	actorCache := cache.NewMemory(cfg.ActorCacheTTL).WithClock(clock.Now)
	services := NewTestServicesWithCache(repos, cfg, clock, actorCache)
	resolver := identity.NewResolver(repos.User, actorCache)

	router, err := api.NewRouter(services, resolver, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Config:   cfg,
		Clock:    clock,
	}
}

// BaseURL returns the test server's base URL
func (ts *TestServer) BaseURL() string {
	return ts.Server.URL
}

// APIURL returns the full API URL for a given path
func (ts *TestServer) APIURL(path string) string {
	return fmt.Sprintf("%s/api/v1%s", ts.Server.URL, path)
}
