package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger/internal/application/retry"
	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/pkg/logger"
)

var fastPolicy = retry.Policy{MaxAttempts: 4, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDo_ReintentaContencionHastaExito(t *testing.T) {
	calls, retries := 0, 0
	v, err := retry.Do(context.Background(), fastPolicy, logger.Nop(), "append", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("insert: %w", domain.ErrConcurrencyConflict)
		}
		return "MOV-0001", nil
	}, func() { retries++ })

	require.NoError(t, err)
	assert.Equal(t, "MOV-0001", v)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_ErrorNoReintentableNoSeRepite(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, logger.Nop(), "append", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("%w: quantity es cero", domain.ErrInvalidInput)
	}, nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestDo_IntegridadNuncaSeReintenta(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, logger.Nop(), "append", func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("%w: %w", domain.ErrIntegrity, domain.ErrConcurrencyConflict)
	}, nil)

	assert.ErrorIs(t, err, domain.ErrIntegrity)
	assert.Equal(t, 1, calls)
}

func TestDo_AgotaIntentosDevuelveTransitorio(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), fastPolicy, logger.Nop(), "append", func(context.Context) (int, error) {
		calls++
		return 0, domain.ErrConcurrencyConflict
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransient)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict, "la causa original se conserva")
	assert.Equal(t, fastPolicy.MaxAttempts, calls)
}

func TestDo_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retry.Do(ctx, fastPolicy, logger.Nop(), "append", func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	}, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}
