package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	conf := Default()
	assert.Equal(t, "okey-game", conf.AppName)
	assert.Equal(t, "redis", conf.RoomConf.Store)
	assert.Equal(t, 5*time.Second, conf.RoomConf.LockTimeout())
	assert.Equal(t, 30*time.Second, conf.RoomConf.TurnDuration())
	assert.Equal(t, 10*time.Second, conf.RoomConf.GracePeriod())
	assert.Equal(t, 0, conf.RoomConf.ActionRate)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "application.yml")
	content := `
id: game-test
httpPort: 9100
room:
  store: memory
  turnSeconds: 12
  actionRate: 3
nats:
  url: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	InitConfig(path)
	require.NotNil(t, Conf)
	assert.Equal(t, "game-test", Conf.ID)
	assert.Equal(t, 9100, Conf.HttpPort)
	assert.Equal(t, "memory", Conf.RoomConf.Store)
	assert.Equal(t, 12*time.Second, Conf.RoomConf.TurnDuration())
	assert.Equal(t, 3, Conf.RoomConf.ActionRate)
	assert.Equal(t, 10, Conf.RoomConf.ActionBurst, "unset keys fall back to defaults")
	assert.Equal(t, "", Conf.NatsConfig.URL)
}

func TestInitConfig_MissingFile(t *testing.T) {
	assert.Panics(t, func() { InitConfig(filepath.Join(t.TempDir(), "nope.yml")) })
}
