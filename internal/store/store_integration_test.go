package store

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	sferrors "github.com/abgdnv/verdant/internal/errors"
	"github.com/abgdnv/verdant/pkg/bootstrap"
	pnats "github.com/abgdnv/verdant/pkg/nats"
	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipIntegrationTests is the environment variable that controls whether to skip integration tests.
const skipIntegrationTests = "STOREFRONT_SKIP_INTEGRATION_TESTS"

const (
	postgresImg = "postgres:17.5-alpine"
	natsImg     = "nats:2.11.6-alpine"
)

func skipIfRequested(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
}

// PgStoreSuite runs the store contract against a PostgreSQL container.
type PgStoreSuite struct {
	suite.Suite
	ctx         context.Context
	logger      *slog.Logger
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       *PgStore
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		postgresImg,
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// the embedded migrations are what production runs as well
	require.NoError(s.T(), Migrate(connStr), "Failed to apply migrations")
	require.NoError(s.T(), Migrate(connStr), "Migrations must be idempotent")

	s.dbPool, err = bootstrap.NewDbPool(s.ctx, connStr, 30*time.Second)
	require.NoError(s.T(), err, "Failed to create pgxpool")

	s.store = NewPgStore(s.dbPool)
	s.logger.Info("Initialization complete for PgStoreSuite")
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE cart_blobs")
	require.NoError(s.T(), err, "Failed to truncate cart_blobs table")
}

func (s *PgStoreSuite) TestContract() {
	storeContract(s.T(), s.store)
}

func (s *PgStoreSuite) TestLoad_CanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.store.Load(ctx, "any")

	s.Require().Error(err)
	s.NotErrorIs(err, sferrors.ErrCartNotFound)
}

func TestPgStoreIntegration(t *testing.T) {
	skipIfRequested(t)
	suite.Run(t, new(PgStoreSuite))
}

// NatsKVSuite runs the store contract against a NATS container with JetStream.
type NatsKVSuite struct {
	suite.Suite
	ctx           context.Context
	logger        *slog.Logger
	natsContainer *nats.NATSContainer
	nc            *natsgo.Conn
	store         *NatsKV
}

func (s *NatsKVSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	s.natsContainer, err = nats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	s.nc, err = pnats.NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")

	js, err := pnats.NewJetStreamContext(s.nc)
	require.NoError(s.T(), err, "Failed to get JetStream context")

	s.store, err = NewNatsKV(s.ctx, js, "carts")
	require.NoError(s.T(), err, "Failed to create key-value bucket")
}

func (s *NatsKVSuite) TearDownSuite() {
	if s.nc != nil {
		s.nc.Close()
	}
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.logger.Error("Failed to terminate NATS container", "error", err)
	}
}

func (s *NatsKVSuite) TestContract() {
	storeContract(s.T(), s.store)
}

func TestNatsKVIntegration(t *testing.T) {
	skipIfRequested(t)
	suite.Run(t, new(NatsKVSuite))
}
