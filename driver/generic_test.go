package driver

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/opsgrid/netcli/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() channel.Config {
	return channel.DefaultConfig(regexp.MustCompile(`(?im)^rtr1[>#]\s?$`))
}

func TestGenericDriverOpenCloseIdempotent(t *testing.T) {
	tr := newFakeTransport()
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())

	require.NoError(t, d.Open(context.Background()))
	require.NoError(t, d.Open(context.Background()))
	assert.True(t, d.IsAlive())

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))
}

func TestGenericDriverLoggingIDAndSlogLogger(t *testing.T) {
	tr := newFakeTransport()
	d1 := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	d2 := NewGeneric("rtr1", newFakeTransport(), testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NotEmpty(t, d1.LoggingID())
	assert.NotEqual(t, d1.LoggingID(), d2.LoggingID(), "each driver gets its own correlation id by default")

	var buf bytes.Buffer
	d1.SetSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, d1.Open(context.Background()))
	assert.Contains(t, buf.String(), "driver open")
	assert.Contains(t, buf.String(), d1.LoggingID())
}

func TestGenericDriverWithLoggingID(t *testing.T) {
	tr := newFakeTransport()
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts(),
		WithLoggingID("job-42"),
	)
	assert.Equal(t, "job-42", d.LoggingID())
}

func TestGenericDriverOpenRunsOnOpenHook(t *testing.T) {
	tr := newFakeTransport()
	called := false
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts(),
		WithOnOpen(func(ctx context.Context, gd *GenericDriver) error {
			called = true
			return nil
		}),
	)
	require.NoError(t, d.Open(context.Background()))
	assert.True(t, called)
}

func TestGenericDriverSendCommand(t *testing.T) {
	tr := newFakeTransport("show version\r\n", "IOS 16.12\nrtr1#")
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NoError(t, d.Open(context.Background()))

	resp, err := d.SendCommand(context.Background(), "show version", nil, 0)
	require.NoError(t, err)
	assert.False(t, resp.Failed)
	assert.Contains(t, resp.Result, "IOS 16.12")
}

func TestGenericDriverSendCommandMarksFailure(t *testing.T) {
	tr := newFakeTransport("badcmd\r\n", "% Invalid input\nrtr1#")
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NoError(t, d.Open(context.Background()))

	resp, err := d.SendCommand(context.Background(), "badcmd", []string{"% Invalid"}, 0)
	require.NoError(t, err)
	assert.True(t, resp.Failed)
	assert.Error(t, resp.RaiseForStatus())
}

func TestGenericDriverSendCommandRejectsEmpty(t *testing.T) {
	tr := newFakeTransport()
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NoError(t, d.Open(context.Background()))

	_, err := d.SendCommand(context.Background(), "", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGenericDriverSendCommandsStopsOnFailed(t *testing.T) {
	tr := newFakeTransport(
		"bad\r\n", "% Invalid\nrtr1#",
		"good\r\n", "ok\nrtr1#",
	)
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NoError(t, d.Open(context.Background()))

	out, err := d.SendCommands(context.Background(), []string{"bad", "good"}, []string{"% Invalid"}, true, false, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Failed)
}

func TestGenericDriverSendCommandTimesOutAndCloses(t *testing.T) {
	tr := newFakeTransport("slow\r\n")
	tr.stall = true
	timeouts := DefaultTimeouts()
	timeouts.TimeoutOps = 50 * time.Millisecond
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, timeouts)
	require.NoError(t, d.Open(context.Background()))

	resp, err := d.SendCommand(context.Background(), "slow", nil, 0)
	assert.ErrorIs(t, err, ErrOperationTimeout)
	require.NotNil(t, resp)
	assert.True(t, resp.Failed)
	assert.False(t, d.IsAlive(), "a timed-out operation must close the connection")
}

func TestGenericDriverReadCallback(t *testing.T) {
	tr := newFakeTransport("Continue? [y/n]", "done")
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, DefaultTimeouts())
	require.NoError(t, d.Open(context.Background()))

	var sawPrompt bool
	cbs := []Callback{
		{
			TriggerContains: "Continue?",
			OneShot:         true,
			ResetOutput:     true,
			Handler: func(ctx context.Context, d *GenericDriver, out []byte) error {
				sawPrompt = true
				return nil
			},
		},
		{Trigger: regexp.MustCompile(`done`), Complete: true},
	}
	require.NoError(t, d.ReadCallback(context.Background(), cbs, "", time.Second))
	assert.True(t, sawPrompt)
}

func TestNewChannelLogSinkWritesAndCloses(t *testing.T) {
	path := t.TempDir() + "/channel.log"
	sink, err := NewChannelLogSink(path, "rtr1", 1<<20, 1)
	require.NoError(t, err)

	_, err = sink.Write([]byte("show version\n"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "channel read")
}

func TestGenericDriverOpTimeoutOverrideDoesNotLeak(t *testing.T) {
	tr := newFakeTransport("c\r\n", "ok\nrtr1#")
	timeouts := DefaultTimeouts()
	d := NewGeneric("rtr1", tr, testConfig(), AuthConfig{BypassInChannelAuth: true}, timeouts)
	require.NoError(t, d.Open(context.Background()))

	_, err := d.SendCommand(context.Background(), "c", nil, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, timeouts.TimeoutOps, d.timeouts.TimeoutOps)
}
