package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/drivopay/payments/internal/service"
	"github.com/drivopay/payments/internal/telemetry"
)

// observeLogs routes telemetry.Logger into an in-memory sink for one test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	previous := telemetry.Logger
	telemetry.Logger = zap.New(core)
	t.Cleanup(func() { telemetry.Logger = previous })
	return logs
}

func requireKind(t *testing.T, err error, kind service.ErrorKind) *service.Error {
	t.Helper()
	var svcErr *service.Error
	require.True(t, errors.As(err, &svcErr), "expected *service.Error, got %v", err)
	require.Equal(t, kind, svcErr.Kind)
	return svcErr
}
