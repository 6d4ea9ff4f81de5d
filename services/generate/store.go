package generate

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stacksos/aicore/pkg/config"
	"github.com/stacksos/aicore/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// NewMigrator returns a migrator loaded with the call-outcome schema
// migrations.
func NewMigrator(db *database.DB) (*database.Migrator, error) {
	migrator := database.NewMigrator(db, "aicore")
	if err := migrator.LoadMigrations(migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return migrator, nil
}

// Migrate applies the call-outcome schema migrations.
func Migrate(ctx context.Context, db *database.DB) error {
	migrator, err := NewMigrator(db)
	if err != nil {
		return err
	}
	return migrator.Up(ctx)
}

// OutcomeQuery filters outcome listings.
type OutcomeQuery struct {
	CallType string
	Since    time.Time
	Limit    int
}

// OutcomeStore defines storage for call outcomes.
type OutcomeStore interface {
	Insert(ctx context.Context, outcome *CallOutcome) error
	List(ctx context.Context, query OutcomeQuery) ([]*CallOutcome, error)
}

// StoreOptions contains configuration for creating an outcome store.
type StoreOptions struct {
	Backend config.StorageBackend
	DB      *sql.DB
}

// NewOutcomeStore creates an OutcomeStore based on the provided options.
func NewOutcomeStore(opts StoreOptions) (OutcomeStore, error) {
	switch opts.Backend {
	case config.StoragePostgres:
		if opts.DB == nil {
			return nil, fmt.Errorf("database connection required for postgres backend")
		}
		return NewPostgresOutcomeStore(opts.DB), nil
	default:
		return NewMemoryOutcomeStore(), nil
	}
}

// MemoryOutcomeStore is an in-memory OutcomeStore.
type MemoryOutcomeStore struct {
	mu       sync.RWMutex
	outcomes []*CallOutcome
}

// NewMemoryOutcomeStore creates a new in-memory outcome store.
func NewMemoryOutcomeStore() *MemoryOutcomeStore {
	return &MemoryOutcomeStore{}
}

func (s *MemoryOutcomeStore) Insert(ctx context.Context, outcome *CallOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *outcome
	s.outcomes = append(s.outcomes, &clone)
	return nil
}

func (s *MemoryOutcomeStore) List(ctx context.Context, query OutcomeQuery) ([]*CallOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*CallOutcome
	for _, o := range s.outcomes {
		if query.CallType != "" && o.CallType != query.CallType {
			continue
		}
		if !query.Since.IsZero() && o.CreatedAt.Before(query.Since) {
			continue
		}
		clone := *o
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// PostgresOutcomeStore implements OutcomeStore using PostgreSQL.
type PostgresOutcomeStore struct {
	db *sql.DB
}

// NewPostgresOutcomeStore creates a new PostgreSQL-backed outcome store.
func NewPostgresOutcomeStore(db *sql.DB) *PostgresOutcomeStore {
	return &PostgresOutcomeStore{db: db}
}

func (s *PostgresOutcomeStore) Insert(ctx context.Context, outcome *CallOutcome) error {
	metadata, err := json.Marshal(outcome.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_outcomes (
			id, call_type, request_id, actor_id,
			prompt_hash, system_hash, user_hash,
			prompt_template_id, prompt_version,
			provider, model, status, attempts, model_index,
			input_tokens, output_tokens, total_tokens, cost_usd,
			latency_ms, trace_id, ip, user_agent, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`,
		outcome.ID, outcome.CallType, outcome.RequestID, outcome.ActorID,
		outcome.PromptHash, outcome.SystemHash, outcome.UserHash,
		outcome.PromptTemplateID, outcome.PromptVersion,
		string(outcome.Provider), outcome.Model, outcome.Status,
		outcome.Attempts, outcome.ModelIndex,
		outcome.InputTokens, outcome.OutputTokens, outcome.TotalTokens,
		outcome.CostUSD, outcome.LatencyMs, outcome.TraceID,
		outcome.IP, outcome.UserAgent, metadata, outcome.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call outcome: %w", err)
	}
	return nil
}

func (s *PostgresOutcomeStore) List(ctx context.Context, query OutcomeQuery) ([]*CallOutcome, error) {
	selectQuery := `
		SELECT id, call_type, request_id, actor_id,
			prompt_hash, system_hash, user_hash,
			prompt_template_id, prompt_version,
			provider, model, status, attempts, model_index,
			input_tokens, output_tokens, total_tokens, cost_usd,
			latency_ms, trace_id, ip, user_agent, metadata, created_at
		FROM call_outcomes
		WHERE 1=1`

	args := []interface{}{}
	argN := 1

	if query.CallType != "" {
		selectQuery += fmt.Sprintf(" AND call_type = $%d", argN)
		args = append(args, query.CallType)
		argN++
	}
	if !query.Since.IsZero() {
		selectQuery += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, query.Since)
		argN++
	}

	selectQuery += " ORDER BY created_at DESC"

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	selectQuery += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call outcomes: %w", err)
	}
	defer rows.Close()

	var result []*CallOutcome
	for rows.Next() {
		var o CallOutcome
		var provider string
		var metadata []byte
		if err := rows.Scan(
			&o.ID, &o.CallType, &o.RequestID, &o.ActorID,
			&o.PromptHash, &o.SystemHash, &o.UserHash,
			&o.PromptTemplateID, &o.PromptVersion,
			&provider, &o.Model, &o.Status, &o.Attempts, &o.ModelIndex,
			&o.InputTokens, &o.OutputTokens, &o.TotalTokens, &o.CostUSD,
			&o.LatencyMs, &o.TraceID, &o.IP, &o.UserAgent, &metadata, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call outcome: %w", err)
		}
		o.Provider = ProviderID(provider)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		result = append(result, &o)
	}

	return result, rows.Err()
}
