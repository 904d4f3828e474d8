package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelEnabled(t *testing.T) {
	c := &Config{NotifyChannels: " Email , push"}
	assert.True(t, c.ChannelEnabled("email"))
	assert.True(t, c.ChannelEnabled("push"))
	assert.False(t, c.ChannelEnabled("sms"))

	c.NotifyChannels = ""
	assert.False(t, c.ChannelEnabled("email"))
}

func TestDSN(t *testing.T) {
	c := &Config{DBHost: "db", DBPort: 5433, DBUser: "u", DBPassword: "p", DBName: "orquidea", DBSSLMode: "require"}
	assert.Equal(t, "host=db user=u password=p dbname=orquidea port=5433 sslmode=require", c.DSN())
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_USER", "orquidea")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "orquidea")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, c.DBPort)
	assert.Equal(t, "https://pub.orcid.org/v3.0", c.ORCIDBaseURL)
	assert.Equal(t, 30*time.Second, c.ORCIDTimeout)
	assert.Equal(t, "0 8 * * *", c.CronSchedule)
	assert.Equal(t, 1, c.UpdateConcurrency)
	assert.False(t, c.ArchiveEnabled())
}
