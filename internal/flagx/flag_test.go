package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "separate value",
			args:    []string{"-c", "conf.json", "-a", "localhost"},
			allowed: []string{"-c", "--config"},
			want:    []string{"-c", "conf.json"},
		},
		{
			name:    "equals form",
			args:    []string{"--config=alt.json", "-a", "localhost"},
			allowed: []string{"-c", "--config"},
			want:    []string{"--config=alt.json"},
		},
		{
			name:    "unknown flags ignored",
			args:    []string{"-x", "1", "--y=2", "positional"},
			allowed: []string{"-c"},
			want:    []string{},
		},
		{
			name:    "trailing flag without value",
			args:    []string{"-c"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "next flag is not a value",
			args:    []string{"-c", "-rp-id", "hotel.example"},
			allowed: []string{"-c"},
			want:    []string{"-c"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-c", "one.json", "-c", "two.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name: "empty",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/hotelauth.json", ConfigPath([]string{"-c", "/etc/hotelauth.json"}))
	assert.Equal(t, "/tmp/a.json", ConfigPath([]string{"-a", ":8080", "-config", "/tmp/a.json"}))
	assert.Equal(t, "/tmp/b.json", ConfigPath([]string{"--config=/tmp/b.json"}))
	assert.Equal(t, "/tmp/2.json", ConfigPath([]string{"-c", "/tmp/1.json", "-config", "/tmp/2.json"}))
	assert.Empty(t, ConfigPath([]string{"-x", "1"}))
	assert.Empty(t, ConfigPath(nil))
}

func TestSplitCommand(t *testing.T) {
	cmd, rest := SplitCommand([]string{"login", "-u", "alice"})
	assert.Equal(t, "login", cmd)
	assert.Equal(t, []string{"-u", "alice"}, rest)

	cmd, rest = SplitCommand([]string{"-server", "http://x", "login"})
	assert.Empty(t, cmd)
	assert.Len(t, rest, 3)

	cmd, rest = SplitCommand(nil)
	assert.Empty(t, cmd)
	assert.Empty(t, rest)
}
