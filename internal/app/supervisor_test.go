package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/app"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/core/enginetest"
	"github.com/AkMo3/unirt-mediasoup-demo-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorDrainsOnWorkerDeath(t *testing.T) {
	w := enginetest.NewWorker()
	var cause error
	sup := &app.Supervisor{
		Worker:  w,
		Grace:   10 * time.Millisecond,
		OnDrain: func(err error) { cause = err },
	}
	assert.Equal(t, app.Serving, sup.State())

	crash := errors.New("worker exited")
	w.Kill(crash)
	err := sup.Watch(context.Background())

	require.Error(t, err)
	assert.Equal(t, domain.KindEngineFatal, domain.KindOf(err))
	assert.ErrorIs(t, err, crash)
	assert.Equal(t, crash, cause)
	assert.True(t, sup.Draining())
	assert.Equal(t, "draining", sup.State().String())
}

func TestSupervisorStopsWithContext(t *testing.T) {
	sup := &app.Supervisor{Worker: enginetest.NewWorker(), Grace: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sup.Watch(ctx))
	assert.False(t, sup.Draining())
}

func TestCapabilitySnapshotIsCopied(t *testing.T) {
	caps := app.NewCapabilityService(enginetest.NewRouter())
	a := caps.GetCapabilities()
	a.Codecs[0].MimeType = "audio/changed"
	b := caps.GetCapabilities()
	assert.Equal(t, "audio/opus", b.Codecs[0].MimeType)
	assert.Equal(t, enginetest.Capabilities(), b)
}
