package response

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseDefaultsFailedUntilFinished(t *testing.T) {
	r := New("rtr1", "show version", time.Unix(0, 0))
	assert.True(t, r.Failed)
}

func TestResponseFinishNoMarkersSucceeds(t *testing.T) {
	start := time.Unix(100, 0)
	r := New("rtr1", "show version", start)
	r.Finish(start.Add(time.Second), []byte("IOS 16.12"), "IOS 16.12", nil)
	assert.False(t, r.Failed)
	assert.Equal(t, time.Second, r.Elapsed())
}

func TestResponseFinishMarkerFails(t *testing.T) {
	start := time.Unix(0, 0)
	r := New("rtr1", "badcmd", start)
	r.Finish(start, []byte("% Invalid input"), "% Invalid input", []string{"% Invalid"})
	assert.True(t, r.Failed)
}

func TestRaiseForStatus(t *testing.T) {
	ok := New("rtr1", "c", time.Now())
	ok.Finish(time.Now(), nil, "", nil)
	assert.NoError(t, ok.RaiseForStatus())

	bad := New("rtr1", "c", time.Now())
	bad.Finish(time.Now(), []byte("err"), "err", []string{"err"})
	err := bad.RaiseForStatus()
	assert.Error(t, err)
	var cf *CommandFailure
	assert.ErrorAs(t, err, &cf)
}

func TestParseWithFailureYieldsEmpty(t *testing.T) {
	r := New("rtr1", "show version", time.Now())
	r.Finish(time.Now(), []byte("IOS 16.12"), "IOS 16.12", nil)
	r.Platform = "cisco_iosxe"

	got := r.ParseWith(func(platform, text string) ([]map[string]any, error) {
		assert.Equal(t, "cisco_iosxe", platform)
		return []map[string]any{{"version": "16.12"}}, nil
	})
	assert.Len(t, got, 1)

	empty := r.ParseWith(func(platform, text string) ([]map[string]any, error) {
		return nil, assert.AnError
	})
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestMultiResponseAggregates(t *testing.T) {
	a := New("rtr1", "c1", time.Now())
	a.Finish(time.Now(), nil, "ok1", nil)
	b := New("rtr1", "c2", time.Now())
	b.Finish(time.Now(), []byte("bad"), "bad", []string{"bad"})

	mr := MultiResponse{a, b}
	assert.True(t, mr.Failed())
	assert.Contains(t, mr.Result(), "c1")
	assert.Contains(t, mr.Result(), "c2")
	assert.Error(t, mr.RaiseForStatus())
}
