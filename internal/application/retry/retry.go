// Package retry aplica la política de reintentos acotados: ante contención transitoria se repite la
// operación completa (incremento de secuencia + inserción), nunca un paso suelto. Un intento fallido
// no deja estado visible, por eso repetir es seguro.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/pkg/logger"
)

// Policy límites del backoff exponencial.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy 5 intentos, 20ms..500ms.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialInterval: 20 * time.Millisecond, MaxInterval: 500 * time.Millisecond}
}

// Do ejecuta fn y la repite mientras falle con un error reintentable (domain.IsRetryable).
// Los errores no reintentables se devuelven sin reintentar. Si se agotan los intentos el error
// envuelve domain.ErrTransient y la causa original. onRetry (opcional) se invoca antes de cada espera.
func Do[T any](ctx context.Context, p Policy, log *logger.Logger, op string, fn func(ctx context.Context) (T, error), onRetry func()) (T, error) {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	attempts := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err != nil && !domain.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).
				Str("operation", op).
				Int("attempt", attempts).
				Dur("wait", wait).
				Msg("contención transitoria, reintentando operación completa")
			if onRetry != nil {
				onRetry()
			}
		}),
	)
	if err == nil {
		return res, nil
	}
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if domain.IsRetryable(err) {
		var zero T
		return zero, fmt.Errorf("%w: %s tras %d intentos: %w", domain.ErrTransient, op, attempts, err)
	}
	var zero T
	return zero, err
}
