package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/quantbrief/quantbrief-backend/internal/platform/envutil"
	"github.com/quantbrief/quantbrief-backend/internal/platform/logger"
	"github.com/quantbrief/quantbrief-backend/internal/types"
)

// StateStore owns the gorm handle for the document collections: workflow
// states, embedded chunks, prompts and generation logs.
type StateStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewStateStore connects to the state database. addr is either a full
// postgres URL or a bare host:port, in which case credentials come from the
// usual POSTGRES_* variables.
func NewStateStore(baseLog *logger.Logger, addr string) (*StateStore, error) {
	serviceLog := baseLog.With("service", "StateStore")

	dsn := addr
	if !strings.Contains(addr, "://") {
		user := envutil.Str("POSTGRES_USER", "postgres")
		password := envutil.Str("POSTGRES_PASSWORD", "")
		name := envutil.Str("POSTGRES_NAME", "quantbrief")
		dsn = fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, addr, name)
	}

	serviceLog.Info("Connecting to state database...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to state database", "error", err)
		return nil, fmt.Errorf("connect state database: %w", err)
	}
	return &StateStore{db: gdb, log: serviceLog}, nil
}

func (s *StateStore) DB() *gorm.DB { return s.db }

func (s *StateStore) AutoMigrateAll() error {
	s.log.Info("Auto migrating state tables...")
	if err := s.db.AutoMigrate(
		&types.WorkflowStateRow{},
		&types.EmbeddedChunkRow{},
		&types.PromptRow{},
		&types.GenerationLogRow{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
