package config

import (
	"os"
	"path/filepath"
	"testing"

	"boxrental-backend/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MemoryStoreDefaults(t *testing.T) {
	path := writeConfig(t, `
store:
  type: memory
jwt:
  secret: 0123456789abcdef0123456789abcdef
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 50051, cfg.Server.GRPCPort)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Tracking.CodeLength)
	assert.Equal(t, pricing.DefaultDepositPerBox, cfg.Pricing.DepositPerBox)
	assert.Equal(t, "dispatch", cfg.Push.DispatchTopic)
	assert.Equal(t, 24, cfg.Scheduler.StalePendingHours)
	assert.Equal(t, int64(5000), cfg.AllocationTimeout().Milliseconds())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
store:
  type: memory
jwt:
  secret: 0123456789abcdef0123456789abcdef
`)
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "boxes")
	t.Setenv("DB_NAME", "boxrental")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("COUNT_PENDING_AS_COMMITTED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.True(t, cfg.Inventory.CountPendingAsCommitted)
	assert.Equal(t, "postgres://boxes:@db.internal:5432/boxrental?sslmode=disable", cfg.GetDatabaseConnectionString())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"Short secret", Config{Store: StoreConfig{Type: "memory"}, JWT: JWTConfig{Secret: "short"}}, "at least 32"},
		{"Unknown store", Config{Store: StoreConfig{Type: "redis"}}, "unknown store type"},
		{"Postgres without host", Config{Store: StoreConfig{Type: "postgres"}}, "database host"},
		{"Short tracking code", Config{Store: StoreConfig{Type: "memory"},
			JWT: JWTConfig{Secret: "0123456789abcdef0123456789abcdef"}, Tracking: TrackingConfig{CodeLength: 6}}, "at least 8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPricingTable_Overrides(t *testing.T) {
	cfg := Config{Pricing: PricingConfig{
		DepositPerBox: 1500,
		Boxes: map[int32]map[int32]int64{
			7: {2: 1000, 5: 2000, 10: 3000, 15: 4000},
		},
	}}
	table, err := cfg.PricingTable()
	require.NoError(t, err)

	price, err := table.Price(5, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), price)
	assert.Equal(t, int64(1500), table.DepositPerBox())
	assert.Contains(t, table.Products(), "cart")
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel(RentalServicePrefix+"TrackRental"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel(RentalServicePrefix+"CreateRental"))
	assert.Equal(t, SecurityStaff, GetSecurityLevel(InventoryServicePrefix+"Reconcile"))
	assert.Equal(t, SecurityStaff, GetSecurityLevel("/unknown.Service/Method"))
}
