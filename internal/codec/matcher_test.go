package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchTopic(t *testing.T) {
	cases := []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"home/+/status", "home/garage-controller/status", true},
		{"home/+/status", "home/garage-controller/other", false},
		{"home/+/status", "home/a/b/status", false},
		{"home/#", "home/garage/door/status", true},
		{"home/#", "away/garage/door/status", false},
		{"home/garage/door/status", "home/garage/door/status", true},
		{"home/system/+/sos", "home/system/house-monitor/sos", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchTopic(c.pattern, c.topic), "pattern=%q topic=%q", c.pattern, c.topic)
	}
}

func TestDeviceIDFromWildcard(t *testing.T) {
	got := deviceIDFromWildcard("home/system/garage-controller/sos", 2)
	assert.Equal(t, "garage-controller", got)
}

func TestSpecificity_FewerWildcardsWins(t *testing.T) {
	a := specificityOf(registration{levels: []string{"home", "garage", "door", "status"}, order: 5})
	b := specificityOf(registration{levels: []string{"home", "+", "status"}, order: 0})
	assert.True(t, a.less(b))
}
