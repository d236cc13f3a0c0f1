package clock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/behavior-agent-go/utils/config"
)

func TestClockAdvance(t *testing.T) {
	c := New(config.ControlStep{Start: 0, Total: 3, Interval: 0.5})
	assert.Equal(t, int32(0), c.Step())
	assert.False(t, c.Ended())
	for i := 1; i <= 3; i++ {
		c.Advance(uint64(100 + i))
	}
	assert.True(t, c.Ended())
	assert.InDelta(t, 1.5, c.Time(), 1e-9)
	assert.Equal(t, uint64(103), c.Frame)

	c.Init()
	assert.Equal(t, int32(0), c.Step())
	assert.Zero(t, c.Time())
}

func TestClockString(t *testing.T) {
	c := New(config.ControlStep{Start: 3725, Total: 10, Interval: 1})
	assert.Equal(t, "01:02:05", c.String())
	h, m, s := c.GetHourMinuteSecond()
	assert.Equal(t, 1, h)
	assert.Equal(t, 2, m)
	assert.InDelta(t, 5, s, 1e-9)
}

func TestNowRPC(t *testing.T) {
	c := New(config.ControlStep{Start: 0, Total: 100, Interval: 0.05})
	for i := 0; i < 20; i++ {
		c.Advance(uint64(i))
	}
	mux := http.NewServeMux()
	mux.Handle(clockv1connect.NewClockServiceHandler(c))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := clockv1connect.NewClockServiceClient(srv.Client(), srv.URL)
	res, err := client.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Msg.T, 1e-9)
}
