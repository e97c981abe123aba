package eventbus

import (
	"testing"

	pkgif "github.com/dep2p/go-msgrouter/pkg/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

// TestModule_Lifecycle 测试模块加载与停止时关闭总线
func TestModule_Lifecycle(t *testing.T) {
	var bus pkgif.EventBus

	app := fxtest.New(t,
		Module(),
		fx.Populate(&bus),
	)
	app.RequireStart()
	require.NotNil(t, bus)

	sub, err := bus.Subscribe(new(testEvent))
	require.NoError(t, err)

	app.RequireStop()

	_, open := <-sub.Out()
	assert.False(t, open)

	_, err = bus.Emitter(new(testEvent))
	assert.ErrorIs(t, err, ErrClosed)
}
