package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/savichev/reputa/internal/domain"
)

// AlgorithmRepo — репозиторий определений алгоритмов.
//
// Определение неизменяемо: только INSERT и SELECT, никаких UPDATE.
// Пара (key, version) уникальна на уровне БД.
type AlgorithmRepo struct {
	pool *pgxpool.Pool
}

// NewAlgorithmRepo создаёт новый AlgorithmRepo.
func NewAlgorithmRepo(pool *pgxpool.Pool) *AlgorithmRepo {
	return &AlgorithmRepo{pool: pool}
}

const algorithmColumns = `key, version, runtime, inputs, outputs, dependencies,
       idempotent, description, published_at`

// Insert публикует новую версию алгоритма.
// Повторная публикация той же пары (key, version) — ErrAlreadyExists.
func (r *AlgorithmRepo) Insert(ctx context.Context, def *domain.AlgorithmDefinition) error {
	inputsJSON, err := json.Marshal(def.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	outputsJSON, err := json.Marshal(def.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	depsJSON, err := json.Marshal(def.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	query := `
		INSERT INTO algorithms (key, version, runtime, inputs, outputs, dependencies,
		                        idempotent, description, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		def.Key,
		def.Version,
		def.Runtime,
		inputsJSON,
		outputsJSON,
		depsJSON,
		def.Idempotent,
		nullString(def.Description),
		def.PublishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s@%s", ErrAlreadyExists, def.Key, def.Version)
		}
		return fmt.Errorf("insert algorithm: %w", err)
	}
	return nil
}

// Get возвращает определение по паре (key, version).
func (r *AlgorithmRepo) Get(ctx context.Context, key, version string) (*domain.AlgorithmDefinition, error) {
	query := `SELECT ` + algorithmColumns + ` FROM algorithms WHERE key = $1 AND version = $2`
	return scanAlgorithm(r.pool.QueryRow(ctx, query, key, version))
}

// ListAll возвращает все опубликованные определения.
// Оркестратор загружает их в in-memory registry при старте.
func (r *AlgorithmRepo) ListAll(ctx context.Context) ([]domain.AlgorithmDefinition, error) {
	query := `SELECT ` + algorithmColumns + ` FROM algorithms ORDER BY key, published_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list algorithms: %w", err)
	}
	defer rows.Close()

	return collectAlgorithms(rows)
}

// ListByKey возвращает все версии одного ключа.
func (r *AlgorithmRepo) ListByKey(ctx context.Context, key string) ([]domain.AlgorithmDefinition, error) {
	query := `SELECT ` + algorithmColumns + ` FROM algorithms WHERE key = $1 ORDER BY published_at`
	rows, err := r.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("list algorithms by key: %w", err)
	}
	defer rows.Close()

	return collectAlgorithms(rows)
}

// scanAlgorithm сканирует одну строку в AlgorithmDefinition.
func scanAlgorithm(row pgx.Row) (*domain.AlgorithmDefinition, error) {
	var def domain.AlgorithmDefinition
	var inputsJSON, outputsJSON, depsJSON []byte
	var description *string

	err := row.Scan(
		&def.Key,
		&def.Version,
		&def.Runtime,
		&inputsJSON,
		&outputsJSON,
		&depsJSON,
		&def.Idempotent,
		&description,
		&def.PublishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan algorithm: %w", err)
	}

	if inputsJSON != nil {
		if err := json.Unmarshal(inputsJSON, &def.Inputs); err != nil {
			return nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}
	if outputsJSON != nil {
		if err := json.Unmarshal(outputsJSON, &def.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs: %w", err)
		}
	}
	if depsJSON != nil {
		if err := json.Unmarshal(depsJSON, &def.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
	}
	if description != nil {
		def.Description = *description
	}

	return &def, nil
}

// collectAlgorithms сканирует все строки результата.
func collectAlgorithms(rows pgx.Rows) ([]domain.AlgorithmDefinition, error) {
	var defs []domain.AlgorithmDefinition
	for rows.Next() {
		def, err := scanAlgorithm(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, rows.Err()
}
