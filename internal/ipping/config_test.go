package ipping

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/pingnode/internal/dm"
)

func TestConfigurationArgs(t *testing.T) {
	tests := []struct {
		name string
		cfg  Configuration
		want []string
	}{
		{
			name: "sub-second timeout rounds up to one second",
			cfg:  Configuration{Hostname: "example.org", Repetitions: 4, TimeoutMs: 500, BlockSize: 56, DSCP: 0},
			want: []string{"-q", "-c", "4", "-Q", "0x0", "-W", "1", "-s", "56", "example.org"},
		},
		{
			name: "dscp shifted into tos",
			cfg:  Configuration{Hostname: "10.0.0.1", Repetitions: 1, TimeoutMs: 2500, BlockSize: 1400, DSCP: 46},
			want: []string{"-q", "-c", "1", "-Q", "0xb8", "-W", "2", "-s", "1400", "10.0.0.1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Args())
		})
	}
}

func TestConfigurationRunnable(t *testing.T) {
	full := Configuration{Hostname: "h", Repetitions: 1, TimeoutMs: 1, BlockSize: 1}
	assert.True(t, full.Runnable())

	for _, c := range []Configuration{
		{Repetitions: 1, TimeoutMs: 1, BlockSize: 1},
		{Hostname: "h", TimeoutMs: 1, BlockSize: 1},
		{Hostname: "h", Repetitions: 1, BlockSize: 1},
		{Hostname: "h", Repetitions: 1, TimeoutMs: 1},
	} {
		assert.False(t, c.Runnable(), "%+v", c)
	}
}

func TestConfigurationSet(t *testing.T) {
	tests := []struct {
		name    string
		rid     dm.ResourceID
		value   dm.Value
		wantErr bool
	}{
		{"hostname", ResHostname, dm.String("example.org"), false},
		{"empty hostname", ResHostname, dm.String(""), false},
		{"max hostname", ResHostname, dm.String(strings.Repeat("a", MaxHostnameLength)), false},
		{"long hostname", ResHostname, dm.String(strings.Repeat("a", MaxHostnameLength+1)), true},
		{"hostname as int", ResHostname, dm.Int(1), true},
		{"repetitions", ResRepetitions, dm.Int(10), false},
		{"repetitions as text", ResRepetitions, dm.String("10"), false},
		{"zero repetitions", ResRepetitions, dm.Int(0), true},
		{"negative repetitions", ResRepetitions, dm.Int(-1), true},
		{"huge repetitions", ResRepetitions, dm.Int(1 << 33), true},
		{"timeout", ResTimeoutMs, dm.Int(1000), false},
		{"zero timeout", ResTimeoutMs, dm.Int(0), true},
		{"block size", ResBlockSize, dm.Int(65535), false},
		{"block size too big", ResBlockSize, dm.Int(65536), true},
		{"zero block size", ResBlockSize, dm.Int(0), true},
		{"dscp zero", ResDSCP, dm.Int(0), false},
		{"dscp max", ResDSCP, dm.Int(63), false},
		{"dscp too big", ResDSCP, dm.Int(64), true},
		{"dscp not a number", ResDSCP, dm.String("ef"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Configuration
			before := c
			err := c.set(tt.rid, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, dm.CodeBadRequest, dm.CodeOf(err))
				assert.Equal(t, before, c)
				return
			}
			require.NoError(t, err)
			want, _ := tt.value.AsInt()
			if tt.rid == ResHostname {
				assert.Equal(t, tt.value.Str, c.Hostname)
			} else {
				assert.Equal(t, want, c.value(tt.rid).Int)
			}
		})
	}
}

func TestStateNames(t *testing.T) {
	for s := StateNone; s <= StateErrorOther; s++ {
		parsed, err := ParseState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseState("bogus")
	require.Error(t, err)
	assert.Equal(t, "state(9)", State(9).String())
}
