package daemon_test

import (
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/garden/internal/adapters/daemon"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLifecycle_ShutsDownAfterInactivity(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l := daemon.NewLifecycle(time.Minute)

		time.Sleep(59 * time.Second)
		synctest.Wait()
		assert.False(t, isClosed(l.ShutdownChan()))

		l.ResetTimer()
		time.Sleep(59 * time.Second)
		synctest.Wait()
		assert.False(t, isClosed(l.ShutdownChan()))
		assert.Equal(t, time.Second, l.IdleRemaining())
		assert.Equal(t, 118*time.Second, l.Uptime())

		time.Sleep(time.Second)
		synctest.Wait()
		assert.True(t, isClosed(l.ShutdownChan()))
		assert.Zero(t, l.IdleRemaining())
	})
}

func TestLifecycle_ResetRecordsActivity(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l := daemon.NewLifecycle(time.Hour)
		defer l.Shutdown()

		time.Sleep(10 * time.Minute)
		l.ResetTimer()

		assert.True(t, time.Now().Equal(l.LastActivity()))
		assert.Equal(t, time.Hour, l.IdleRemaining())
	})
}

func TestLifecycle_ZeroTimeoutNeverFires(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l := daemon.NewLifecycle(0)

		time.Sleep(24 * time.Hour)
		synctest.Wait()
		assert.False(t, isClosed(l.ShutdownChan()))
		assert.Zero(t, l.IdleRemaining())

		l.Shutdown()
		assert.True(t, isClosed(l.ShutdownChan()))
	})
}

func TestLifecycle_ShutdownIsIdempotent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		l := daemon.NewLifecycle(time.Minute)

		l.Shutdown()
		l.Shutdown()
		assert.True(t, isClosed(l.ShutdownChan()))

		time.Sleep(2 * time.Minute)
		synctest.Wait()
		assert.True(t, isClosed(l.ShutdownChan()))
	})
}
