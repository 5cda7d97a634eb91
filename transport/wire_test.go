package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPipelineRequest_InTx(t *testing.T) {
	body := buildPipelineRequest(Request{SQL: "SELECT 1", Baton: "abc", InTx: true})
	assert.Equal(t, "abc", body["baton"])
	requests := body["requests"].([]map[string]any)
	require.Len(t, requests, 1)
	assert.Equal(t, "execute", requests[0]["type"])
}

func TestBuildPipelineRequest_NotInTx_AppendsClose(t *testing.T) {
	body := buildPipelineRequest(Request{SQL: "SELECT 1"})
	requests := body["requests"].([]map[string]any)
	require.Len(t, requests, 2)
	assert.Equal(t, "execute", requests[0]["type"])
	assert.Equal(t, "close", requests[1]["type"])
}

func TestDecodePipelineResponse_Success(t *testing.T) {
	raw := []byte(`{
		"baton": "next-baton",
		"results": [{
			"response": {
				"type": "execute",
				"result": {
					"cols": [{"name": "id"}],
					"rows": [[{"type": "integer", "value": "1"}]],
					"last_insert_rowid": "1",
					"rows_written": 1
				}
			}
		}]
	}`)
	resp, err := decodePipelineResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "next-baton", resp.Baton)
	assert.Equal(t, "id", resp.Result.Cols[0].Name)
	assert.Equal(t, "1", *resp.Result.LastInsertRowID)
	assert.Equal(t, uint64(1), *resp.Result.RowsWritten)
}

func TestDecodePipelineResponse_SurfacesErrorMessage(t *testing.T) {
	raw := []byte(`{"results": [{"error": {"message": "no such table: t"}}]}`)
	_, err := decodePipelineResponse(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table: t")
}

func TestDecodePipelineResponse_NoResults(t *testing.T) {
	_, err := decodePipelineResponse([]byte(`{"results": []}`))
	require.Error(t, err)
}

func TestParamConstructors(t *testing.T) {
	assert.Equal(t, Param{Type: "integer", Value: "42"}, IntegerParam(42))
	assert.Equal(t, Param{Type: "text", Value: "hi"}, TextParam("hi"))
	assert.Equal(t, Param{Type: "null", Value: nil}, NullParam())
}
