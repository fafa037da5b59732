package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fridgedoor/internal/config"
	"fridgedoor/internal/database"
	"fridgedoor/internal/model"
	"fridgedoor/internal/repository"
)

func TestMain(m *testing.M) {
	// プロジェクトルートの.envを読み込み
	_ = godotenv.Load("../../.env")
	os.Exit(m.Run())
}

// setupTestDB テスト用データベース接続をセットアップ
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("DB_HOST") == "" {
		t.Skip("Skipping: DB_HOST not set")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	testDB, err := database.Init(cfg, zap.NewNop())
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}

	require.NoError(t, database.Migrate(context.Background(), testDB, zap.NewNop()))

	// テストデータをクリア
	testDB.Exec("DELETE FROM messages")
	// AUTO_INCREMENTをリセット
	testDB.Exec("ALTER TABLE messages AUTO_INCREMENT = 1")

	t.Cleanup(func() {
		testDB.Exec("DELETE FROM messages")
		testDB.Close()
	})
	return testDB
}

func newIntegrationRouter(testDB *sql.DB) http.Handler {
	repo := repository.NewMySQLRepository(testDB)
	return New(repo, config.Config{AllowedOrigins: []string{"*"}}, zap.NewNop()).SetupRouter()
}

func TestIntegration_MessageLifecycle(t *testing.T) {
	testDB := setupTestDB(t)
	router := newIntegrationRouter(testDB)

	w := postJSON(t, router, map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "stored", w.Header().Get("X-Message-Source"))

	var created model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Nil(t, created.ExpiresAt)

	w = do(t, router, http.MethodGet, "/messages/?since_id=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1}, ids(decodeList(t, w)))

	w = do(t, router, http.MethodDelete, "/messages/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	// ソフトデリートなので行は残っている
	deleted := getMessage(t, router, 1)
	require.NotNil(t, deleted.ExpiresAt)
	assert.True(t, deleted.IsExpired(time.Now()))

	w = do(t, router, http.MethodGet, "/messages/?since_id=0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeList(t, w))

	// 2回目の削除は Message.Expire と同じく期限を動かさない
	w = do(t, router, http.MethodDelete, "/messages/1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	again := getMessage(t, router, 1)
	require.NotNil(t, again.ExpiresAt)
	assert.True(t, again.ExpiresAt.Equal(*deleted.ExpiresAt))

	inMemory := deleted
	inMemory.Expire(time.Now())
	assert.True(t, inMemory.ExpiresAt.Equal(*again.ExpiresAt))
}

func getMessage(t *testing.T, router http.Handler, id int64) model.Message {
	t.Helper()

	w := do(t, router, http.MethodGet, fmt.Sprintf("/messages/%d", id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var msg model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	return msg
}

// TestIntegration_LargeFields TEXT / VARCHAR の上限を超える値も保存できる
func TestIntegration_LargeFields(t *testing.T) {
	testDB := setupTestDB(t)
	router := newIntegrationRouter(testDB)

	text := strings.Repeat("あ", 40*1024) // 120KiB in utf8mb4
	fontColor := strings.Repeat("c", 100)
	fontFamily := strings.Repeat("f", 1000)

	w := postJSON(t, router, map[string]string{
		"text":        text,
		"font_color":  fontColor,
		"font_family": fontFamily,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "stored", w.Header().Get("X-Message-Source"))

	stored := getMessage(t, router, 1)
	assert.Equal(t, text, stored.Text)
	require.NotNil(t, stored.FontColor)
	require.NotNil(t, stored.FontFamily)
	assert.Equal(t, fontColor, *stored.FontColor)
	assert.Equal(t, fontFamily, *stored.FontFamily)
}

// TestIntegration_NaiveExpiry オフセットなしの expires_at は UTC で保存される
func TestIntegration_NaiveExpiry(t *testing.T) {
	testDB := setupTestDB(t)
	router := newIntegrationRouter(testDB)

	w := do(t, router, http.MethodPost, "/messages/", []byte(`{"text":"naive","expires_at":"2030-01-01T00:00:00"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored := getMessage(t, router, 1)
	require.NotNil(t, stored.ExpiresAt)
	assert.True(t, stored.ExpiresAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIntegration_ListFilters(t *testing.T) {
	testDB := setupTestDB(t)
	router := newIntegrationRouter(testDB)

	postJSON(t, router, map[string]any{"text": "permanent"})
	postJSON(t, router, map[string]any{"text": "expired", "expires_at": time.Now().Add(-time.Hour)})
	postJSON(t, router, map[string]any{"text": "active", "expires_at": time.Now().Add(time.Hour)})
	for i := 0; i < 5; i++ {
		postJSON(t, router, map[string]any{"text": fmt.Sprintf("filler %d", i)})
	}

	w := do(t, router, http.MethodGet, "/messages/?count=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1, 3, 4}, ids(decodeList(t, w)))

	w = do(t, router, http.MethodGet, "/messages/?count=3&include_expired=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1, 2, 3}, ids(decodeList(t, w)))

	w = do(t, router, http.MethodGet, "/messages/?since_id=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7, 8}, ids(decodeList(t, w)))

	w = do(t, router, http.MethodGet, "/messages/random", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var random model.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &random))
	assert.Equal(t, int64(3), random.ID)
}

func TestIntegration_DeleteUnknownID(t *testing.T) {
	testDB := setupTestDB(t)
	router := newIntegrationRouter(testDB)

	w := do(t, router, http.MethodDelete, "/messages/999999", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
