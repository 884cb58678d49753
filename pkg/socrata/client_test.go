package socrata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resource/jbjy-vk9h.json", r.URL.Path)
		assert.Equal(t, "count(*) as total", r.URL.Query().Get("$select"))
		assert.Equal(t, "departamento = 'Santander'", r.URL.Query().Get("$where"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"total":"1234"}]`))
	}))
	defer srv.Close()

	c := NewClient("jbjy-vk9h", WithBaseURL(srv.URL))
	total, err := c.Count(context.Background(), "departamento = 'Santander'")

	require.NoError(t, err)
	assert.Equal(t, 1234, total)
}

func TestRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "proceso_de_compra,valor_del_contrato", q.Get("$select"))
		assert.Equal(t, "estado_contrato = 'Cerrado'", q.Get("$where"))
		assert.Equal(t, "fecha_de_inicio_del_contrato DESC", q.Get("$order"))
		assert.Equal(t, "2", q.Get("$limit"))
		assert.Equal(t, "2", q.Get("$offset"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"proceso_de_compra":"MC-001","valor_del_contrato":"1234567.89",
			 "urlproceso":{"url":"https://example.test/p/MC-001"}},
			{"proceso_de_compra":"MC-002","valor_del_contrato":9000}
		]`))
	}))
	defer srv.Close()

	c := NewClient("jbjy-vk9h", WithBaseURL(srv.URL))
	rows, err := c.Rows(context.Background(), Query{
		Select: []string{"proceso_de_compra", "valor_del_contrato"},
		Where:  "estado_contrato = 'Cerrado'",
		Order:  "fecha_de_inicio_del_contrato DESC",
		Limit:  2,
		Offset: 2,
	})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "MC-001", rows[0]["proceso_de_compra"])
	// URL columns arrive as objects and flatten to the url member.
	assert.Equal(t, "https://example.test/p/MC-001", rows[0]["urlproceso"])
	// Numeric values flatten to their decimal form.
	assert.Equal(t, "9000", rows[1]["valor_del_contrato"])
}

func TestRowsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":true,"message":"query too complex"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("jbjy-vk9h", WithBaseURL(srv.URL))
	_, err := c.Rows(context.Background(), Query{Where: "bogus"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestAppTokenHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-token", r.Header.Get("X-App-Token"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("jbjy-vk9h", WithBaseURL(srv.URL), WithAppToken("secret-token"))
	rows, err := c.Rows(context.Background(), Query{})

	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCountMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient("jbjy-vk9h", WithBaseURL(srv.URL))
	_, err := c.Count(context.Background(), "")

	require.Error(t, err)
}
