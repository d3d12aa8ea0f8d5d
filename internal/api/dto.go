package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/savichev/reputa/internal/domain"
)

// Algorithm DTOs

// PublishAlgorithmRequest — запрос на публикацию версии алгоритма.
type PublishAlgorithmRequest struct {
	Key          string           `json:"key"`
	Version      string           `json:"version"`
	Runtime      string           `json:"runtime"`
	Inputs       []domain.IOField `json:"inputs,omitempty"`
	Outputs      []domain.IOField `json:"outputs,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Idempotent   bool             `json:"idempotent,omitempty"`
	Description  string           `json:"description,omitempty"`
}

// AlgorithmResponse — ответ с определением алгоритма.
type AlgorithmResponse struct {
	Key          string           `json:"key"`
	Version      string           `json:"version"`
	Runtime      string           `json:"runtime"`
	Inputs       []domain.IOField `json:"inputs,omitempty"`
	Outputs      []domain.IOField `json:"outputs,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Idempotent   bool             `json:"idempotent"`
	Description  string           `json:"description,omitempty"`
	PublishedAt  time.Time        `json:"published_at"`
}

// AlgorithmFromDomain конвертирует domain.AlgorithmDefinition в AlgorithmResponse.
func AlgorithmFromDomain(d domain.AlgorithmDefinition) AlgorithmResponse {
	return AlgorithmResponse{
		Key:          d.Key,
		Version:      d.Version,
		Runtime:      string(d.Runtime),
		Inputs:       d.Inputs,
		Outputs:      d.Outputs,
		Dependencies: d.Dependencies,
		Idempotent:   d.Idempotent,
		Description:  d.Description,
		PublishedAt:  d.PublishedAt,
	}
}

// Snapshot DTOs

// CreateSnapshotRequest — запрос на создание снапшота.
//
// Version пустая — latest на момент создания. Inputs — упорядоченный
// список параметров: порядок замораживается вместе со значениями.
// QueueOverrides замораживаются на снапшоте и определяют маршрутизацию
// compute-вызова независимо от конфигурации процессов оркестратора.
type CreateSnapshotRequest struct {
	AlgorithmKey   string                 `json:"algorithm_key"`
	Version        string                 `json:"version,omitempty"`
	Inputs         []domain.InputParam    `json:"inputs,omitempty"`
	QueueOverrides *domain.QueueOverrides `json:"queue_overrides,omitempty"`
}

// SnapshotResponse — ответ со снапшотом.
type SnapshotResponse struct {
	ID              uuid.UUID              `json:"id"`
	Status          string                 `json:"status"`
	Preset          domain.FrozenPreset    `json:"algorithm_preset_frozen"`
	QueueOverrides  *domain.QueueOverrides `json:"queue_overrides,omitempty"`
	ExecutionRef    *domain.ExecutionRef   `json:"execution_ref,omitempty"`
	Outputs         map[string]any         `json:"outputs,omitempty"`
	Failure         *domain.Failure        `json:"failure,omitempty"`
	CancelRequested bool                   `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// SnapshotFromDomain конвертирует domain.Snapshot в SnapshotResponse.
func SnapshotFromDomain(s domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:              s.ID,
		Status:          string(s.Status),
		Preset:          s.Preset,
		QueueOverrides:  s.QueueOverrides,
		ExecutionRef:    s.ExecutionRef,
		Outputs:         s.Outputs,
		Failure:         s.Failure,
		CancelRequested: s.CancelRequested,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
