package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Service authorizes payments with a bounded wait.
type Service interface {
	// Authorize never reports an unknown outcome as an error: timeouts and
	// gateway failures come back as StatusTimeout.
	Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error)
}

type service struct {
	gateways Registry
	timeout  time.Duration
	logger   *zap.Logger
}

func NewService(gateways Registry, timeout time.Duration, logger *zap.Logger) Service {
	return &service{gateways: gateways, timeout: timeout, logger: logger}
}

func (s *service) Authorize(ctx context.Context, req AuthorizeRequest) (*Authorization, error) {
	gw, ok := s.gateways[req.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, req.Method)
	}

	authCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	auth, err := gw.Authorize(authCtx, &req)
	log := s.logger.With(
		zap.String("reference", req.Reference),
		zap.String("method", string(req.Method)),
		zap.Duration("elapsed", time.Since(start)),
	)
	switch {
	case err != nil:
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(authCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("no response from payment gateway within %s", s.timeout)
		}
		log.Warn("payment outcome unknown", zap.Error(err))
		return &Authorization{Status: StatusTimeout, Reason: reason}, nil
	case auth == nil:
		log.Warn("payment gateway returned no authorization")
		return &Authorization{Status: StatusTimeout, Reason: "empty gateway response"}, nil
	}
	log.Info("payment authorization", zap.String("status", string(auth.Status)))
	return auth, nil
}
