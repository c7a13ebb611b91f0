package catalog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concerto-app/theatre/internal/catalog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHandlerServesCatalogInLoadOrder(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "entries-*.txt")
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(strings.Join([]string{"1F600", "1F601", "1F602"}, "\n") + "\n")
	require.NoError(t, err)
	cat, err := catalog.Load(f.Name())
	require.NoError(t, err)

	router := gin.New()
	router.GET("/entries", cat.Handler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/entries", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Available []struct {
			ID string `json:"id"`
		} `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Available, 3)
	assert.Equal(t, "1F600", body.Available[0].ID)
	assert.Equal(t, "1F602", body.Available[2].ID)
}
