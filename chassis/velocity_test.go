package chassis

import (
	"testing"

	"go_chassis/rc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperMap(t *testing.T) {
	var sticks rc.Snapshot
	sticks.Channels = [rc.NumChannels]int16{-200, 300, 0, 0, 660}
	prev := Velocity{VX: 1, VY: 2, VW: 3}

	tests := []struct {
		name   string
		policy Policy
		mode   Mode
		want   Velocity
	}{
		{name: "disabled", mode: Disabled, want: Velocity{}},
		{name: "free", mode: FreeMode, want: Velocity{VX: 300, VY: -200, VW: 660}},
		{name: "follow holds", mode: FollowReference, want: prev},
		{name: "spin holds", mode: SpinMode, want: prev},
		{name: "follow zeroes", policy: PolicyZero, mode: FollowReference, want: Velocity{}},
		{name: "spin zeroes", policy: PolicyZero, mode: SpinMode, want: Velocity{}},
		{name: "disabled ignores policy", policy: PolicyHold, mode: Disabled, want: Velocity{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Mapper{Ratio: 1, Channels: DefaultChannels, Reference: tt.policy}
			assert.Equal(t, tt.want, m.Map(tt.mode, sticks, prev))
		})
	}
}

func TestMapperFreeScalesAtRest(t *testing.T) {
	m := Mapper{Ratio: 1000, Channels: DefaultChannels}
	assert.Equal(t, Velocity{}, m.Map(FreeMode, rc.Snapshot{}, Velocity{VX: 5}))
}

func TestMapperCustomChannels(t *testing.T) {
	var s rc.Snapshot
	s.Channels = [rc.NumChannels]int16{1, 2, 3, 4, 5}
	m := Mapper{Ratio: 2, Channels: ChannelMap{X: 3, Y: 2, W: 0}}

	assert.Equal(t, Velocity{VX: 8, VY: 6, VW: 2}, m.Map(FreeMode, s, Velocity{}))
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "hold", want: PolicyHold},
		{in: "", want: PolicyHold},
		{in: "zero", want: PolicyZero},
		{in: "stop", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.in != "" {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}
