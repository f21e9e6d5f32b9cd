package docsrag

import (
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hubenschmidt/go-docsrag/config"
	"github.com/hubenschmidt/go-docsrag/docs"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/vector"
)

func TestModuleGraphIsComplete(t *testing.T) {
	err := fx.ValidateApp(
		fx.Supply(config.Default()),
		Module,
		ServerModule,
	)
	assert.NoError(t, err)
}

func TestNewStore(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	cfg := config.Default()
	cfg.Store.Type = config.StoreMemory

	store, err := NewStore(lc, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &vector.MemoryStore{}, store)

	cfg.Store.Type = config.StoreSQLite
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "docs.db")
	store, err = NewStore(lc, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &vector.SQLiteStore{}, store)

	cfg.Store.Type = config.StoreSupabase
	store, err = NewStore(lc, cfg, logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &vector.SupabaseStore{}, store)

	cfg.Store.Type = "redis"
	_, err = NewStore(lc, cfg, logger.NewNop())
	assert.Error(t, err)

	lc.RequireStart().RequireStop()
}

func TestNewStoreWarnsOnMemory(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := &logger.Logger{Zap: zap.New(core)}
	lc := fxtest.NewLifecycle(t)

	cfg := config.Default()
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "docs.db")
	_, err := NewStore(lc, cfg, log)
	require.NoError(t, err)
	assert.Zero(t, logs.Len())

	cfg.Store.Type = config.StoreMemory
	_, err = NewStore(lc, cfg, log)
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "memory store starts empty")

	lc.RequireStart().RequireStop()
}

func TestNewSource(t *testing.T) {
	cfg := config.Default()
	src, err := NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &docs.HTTPSource{}, src)

	cfg.Source.Type = config.SourceMinIO
	cfg.Source.MinIO.Endpoint = "localhost:9000"
	cfg.Source.MinIO.Bucket = "docs"
	src, err = NewSource(cfg)
	require.NoError(t, err)
	assert.IsType(t, &docs.ObjectSource{}, src)

	cfg.Source.Type = "ftp"
	_, err = NewSource(cfg)
	assert.Error(t, err)
}

func TestHTTPServerLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "docs.db")

	var srv *http.Server
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module,
		ServerModule,
		fx.Populate(&srv),
	)
	app.RequireStart()
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	app.RequireStop()
}
