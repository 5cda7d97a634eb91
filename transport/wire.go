package transport

import (
	"encoding/json"
	"fmt"
)

// buildPipelineRequest constructs the {baton?, requests:[...]} body
// that HTTPBackend.Send posts: an execute step, plus a close step when
// the call is not part of an open transaction (spec §4.2). WSBackend
// does not use it; its execute payload carries neither the baton nor a
// close step.
func buildPipelineRequest(req Request) map[string]any {
	body := map[string]any{}
	if req.Baton != "" {
		body["baton"] = req.Baton
	}

	stmt := map[string]any{"sql": req.SQL}
	if len(req.Params) > 0 {
		stmt["args"] = req.Params
	} else {
		stmt["args"] = []Param{}
	}

	requests := []map[string]any{
		{"type": "execute", "stmt": stmt},
	}
	if !req.InTx {
		requests = append(requests, map[string]any{"type": "close"})
	}
	body["requests"] = requests
	return body
}

// wireResponse mirrors the server's {baton?, results:[{response:...}]}
// envelope before cell decoding (spec §4.2, §6).
type wireResponse struct {
	Baton   string `json:"baton"`
	Results []struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"results"`
}

type wireExecuteResponse struct {
	Type   string `json:"type"`
	Result struct {
		Cols            []Col   `json:"cols"`
		Rows            [][]struct {
			Type  string `json:"type"`
			Value any    `json:"value"`
		} `json:"rows"`
		LastInsertRowID *string `json:"last_insert_rowid"`
		RowsWritten     *uint64 `json:"rows_written"`
	} `json:"result"`
}

// decodePipelineResponse parses raw bytes into a Response, surfacing
// any results[*].error.message as a non-retriable error (spec §4.3).
func decodePipelineResponse(raw []byte) (Response, error) {
	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return Response{}, fmt.Errorf("decode pipeline response: %w", err)
	}

	for _, r := range wr.Results {
		if r.Error != nil {
			return Response{}, fmt.Errorf("%s", r.Error.Message)
		}
	}

	if len(wr.Results) == 0 {
		return Response{}, fmt.Errorf("no results returned")
	}

	var exec wireExecuteResponse
	if err := json.Unmarshal(wr.Results[0].Response, &exec); err != nil {
		return Response{}, fmt.Errorf("decode execute result: %w", err)
	}
	if exec.Type == "close" {
		return Response{}, fmt.Errorf("unexpected close response")
	}

	result := ExecuteResult{
		Cols:            exec.Result.Cols,
		LastInsertRowID: exec.Result.LastInsertRowID,
		RowsWritten:     exec.Result.RowsWritten,
	}
	result.Rows = make([][]Cell, len(exec.Result.Rows))
	for i, row := range exec.Result.Rows {
		cells := make([]Cell, len(row))
		for j, c := range row {
			cells[j] = Cell{Type: c.Type, Value: c.Value}
		}
		result.Rows[i] = cells
	}

	return Response{Baton: wr.Baton, Result: result}, nil
}

// IntegerParam, RealParam, TextParam, NullParam build the {type,
// value} shapes spec §8's round-trip property names: integers and
// reals are transmitted as strings, the way the source sends them.
func IntegerParam(v int64) Param { return Param{Type: "integer", Value: fmt.Sprintf("%d", v)} }
func RealParam(v float64) Param  { return Param{Type: "float", Value: fmt.Sprintf("%v", v)} }
func TextParam(v string) Param   { return Param{Type: "text", Value: v} }
func NullParam() Param           { return Param{Type: "null", Value: nil} }
