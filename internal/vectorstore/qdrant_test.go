package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buildrag/pkg/types"
)

func TestParseMetric(t *testing.T) {
	assert.Equal(t, MetricL2, ParseMetric("l2"))
	assert.Equal(t, MetricL2, ParseMetric("L2"))
	assert.Equal(t, MetricCosine, ParseMetric("cosine"))
	assert.Equal(t, MetricIP, ParseMetric("IP"))
	assert.Equal(t, MetricIP, ParseMetric(""))

	assert.True(t, ParseMetric("l2").Ascending())
	assert.False(t, ParseMetric("cosine").Ascending())
}

func TestRecordPayloadCarriesProject(t *testing.T) {
	payload := recordPayload(&types.VectorRecord{
		ChunkID:         "c-1",
		DocID:           "d-1",
		DocType:         types.DocTypeProject,
		ProjectID:       "proj-1",
		PermissionLevel: 2,
		PageNum:         7,
	})
	assert.Equal(t, "proj-1", payload["project_id"])
	assert.Equal(t, "d-1", payload["doc_id"])
}

// Every field the filter can condition on must exist in the stored payload,
// or a Must match would silently exclude every point.
func TestFilterFieldsExistInPayload(t *testing.T) {
	payload := recordPayload(&types.VectorRecord{
		ChunkID:   "c-1",
		DocID:     "d-1",
		DocType:   types.DocTypeProject,
		ProjectID: "proj-1",
	})

	f := buildFilter(&Filter{
		DocType:         types.DocTypeProject,
		DocID:           "d-1",
		ProjectID:       "proj-1",
		PermissionLevel: 3,
	})
	require.NotNil(t, f)
	require.Len(t, f.Must, 4)
	for _, cond := range f.Must {
		key := cond.GetField().GetKey()
		_, stored := payload[key]
		assert.True(t, stored, "filter conditions on %q which Insert never stores", key)
	}
}

func TestProjectFilterMatchesStoredValue(t *testing.T) {
	f := buildFilter(&Filter{ProjectID: "proj-1"})
	require.NotNil(t, f)
	require.Len(t, f.Must, 1)

	field := f.Must[0].GetField()
	assert.Equal(t, "project_id", field.GetKey())
	assert.Equal(t, "proj-1", field.GetMatch().GetKeyword())
}
