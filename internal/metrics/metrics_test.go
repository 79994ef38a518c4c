package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := New()
	c.NoteCreated()
	c.NoteCreated()
	c.ConnectionsCreated(3)
	c.ConnectionsCreated(0)
	c.InsightCreated()
	c.GenerationFailed()
	c.MirrorFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.notesCreated))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.connectionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.insightsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mirrorFailures))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.NoteCreated()
		c.ConnectionsCreated(2)
		c.InsightCreated()
		c.GenerationFailed()
		c.MirrorFailed()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.NoteCreated()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "zettel_notes_created_total 1"))
}
