package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/vault/internal/metrics"
	transitDomain "github.com/allisson/vault/internal/transit/domain"
)

// transitKeyUseCaseWithMetrics decorates TransitKeyUseCase with metrics instrumentation.
type transitKeyUseCaseWithMetrics struct {
	next    TransitKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewTransitKeyUseCaseWithMetrics wraps a TransitKeyUseCase with metrics recording.
func NewTransitKeyUseCaseWithMetrics(
	useCase TransitKeyUseCase,
	m metrics.BusinessMetrics,
) TransitKeyUseCase {
	return &transitKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// record emits the operation counter and duration histogram for one call.
func (t *transitKeyUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	status := "success"
	if err != nil {
		status = "error"
	}

	t.metrics.RecordOperation(ctx, "transit", operation, status)
	t.metrics.RecordDuration(ctx, "transit", operation, time.Since(start), status)
}

func (t *transitKeyUseCaseWithMetrics) Create(
	ctx context.Context,
	input transitDomain.CreateTransitKeyInput,
) (*transitDomain.TransitKey, error) {
	start := time.Now()
	key, err := t.next.Create(ctx, input)
	t.record(ctx, "transit_key_create", start, err)
	return key, err
}

func (t *transitKeyUseCaseWithMetrics) Get(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	start := time.Now()
	key, err := t.next.Get(ctx, teamID, name)
	t.record(ctx, "transit_key_get", start, err)
	return key, err
}

func (t *transitKeyUseCaseWithMetrics) List(
	ctx context.Context,
	teamID uuid.UUID,
	offset, limit int,
) ([]*transitDomain.TransitKey, error) {
	start := time.Now()
	keys, err := t.next.List(ctx, teamID, offset, limit)
	t.record(ctx, "transit_key_list", start, err)
	return keys, err
}

func (t *transitKeyUseCaseWithMetrics) Rotate(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.TransitKey, error) {
	start := time.Now()
	key, err := t.next.Rotate(ctx, teamID, name)
	t.record(ctx, "transit_key_rotate", start, err)
	return key, err
}

func (t *transitKeyUseCaseWithMetrics) Update(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	input transitDomain.UpdateTransitKeyInput,
) (*transitDomain.TransitKey, error) {
	start := time.Now()
	key, err := t.next.Update(ctx, teamID, name, input)
	t.record(ctx, "transit_key_update", start, err)
	return key, err
}

func (t *transitKeyUseCaseWithMetrics) Encrypt(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	plaintext []byte,
) (string, error) {
	start := time.Now()
	envelope, err := t.next.Encrypt(ctx, teamID, name, plaintext)
	t.record(ctx, "transit_encrypt", start, err)
	return envelope, err
}

func (t *transitKeyUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	envelope string,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := t.next.Decrypt(ctx, teamID, name, envelope)
	t.record(ctx, "transit_decrypt", start, err)
	return plaintext, err
}

func (t *transitKeyUseCaseWithMetrics) Rewrap(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
	envelope string,
) (string, error) {
	start := time.Now()
	rewrapped, err := t.next.Rewrap(ctx, teamID, name, envelope)
	t.record(ctx, "transit_rewrap", start, err)
	return rewrapped, err
}

func (t *transitKeyUseCaseWithMetrics) GenerateDataKey(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) (*transitDomain.DataKey, error) {
	start := time.Now()
	dataKey, err := t.next.GenerateDataKey(ctx, teamID, name)
	t.record(ctx, "transit_generate_data_key", start, err)
	return dataKey, err
}

func (t *transitKeyUseCaseWithMetrics) Delete(
	ctx context.Context,
	teamID uuid.UUID,
	name string,
) error {
	start := time.Now()
	err := t.next.Delete(ctx, teamID, name)
	t.record(ctx, "transit_key_delete", start, err)
	return err
}
