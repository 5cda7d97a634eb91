package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsBusTimeout     = 10 * time.Second
	wsHandshakeGrace = 500 * time.Millisecond
)

// wsState is Disconnected/Connected (spec §4.4).
type wsState int32

const (
	wsDisconnected wsState = iota
	wsConnected
)

// WSBackend is the persistent full-duplex channel to wss://<host>/.
// A single reader goroutine demultiplexes inbound frames to waiting
// callers via a ResponseBus; request_id and stream_id are generated
// by two process-wide monotonic counters starting at 1 (spec §4.4).
type WSBackend struct {
	DBURL string
	Token string

	// Dialer defaults to websocket.DefaultDialer; overridable for
	// tests that dial a local httptest-style WS server.
	Dialer *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32

	bus *ResponseBus

	requestID atomic.Uint64
	streamID  atomic.Uint64

	// BusTimeout overrides wsBusTimeout for tests.
	BusTimeout time.Duration
}

func NewWSBackend(dbURL, token string) *WSBackend {
	return &WSBackend{
		DBURL:  dbURL,
		Token:  token,
		Dialer: websocket.DefaultDialer,
		bus:    NewResponseBus(),
	}
}

func (b *WSBackend) busTimeout() time.Duration {
	if b.BusTimeout > 0 {
		return b.BusTimeout
	}
	return wsBusTimeout
}

func (b *WSBackend) url() string {
	return fmt.Sprintf("wss://%s/", b.DBURL)
}

func (b *WSBackend) connected() bool {
	return wsState(b.state.Load()) == wsConnected
}

// Connect performs the handshake: dial, send {type:hello, jwt}, await
// {type:hello_ok} within the bus timeout, then spawn the single
// reader goroutine (spec §4.4).
func (b *WSBackend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectLocked(ctx)
}

func (b *WSBackend) connectLocked(ctx context.Context) error {
	conn, _, err := b.Dialer.DialContext(ctx, b.url(), nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	b.conn = conn
	b.bus = NewResponseBus()
	b.state.Store(int32(wsConnected))

	go b.readLoop(conn, b.bus)

	hello := map[string]any{"type": "hello", "jwt": b.Token}
	if err := conn.WriteJSON(hello); err != nil {
		b.disconnectLocked()
		return fmt.Errorf("ws hello send failed: %w", err)
	}

	_, err = b.bus.WaitFor(ctx, "type:hello_ok", b.busTimeout())
	if err != nil {
		b.disconnectLocked()
		return fmt.Errorf("ws handshake failed: %w", err)
	}
	return nil
}

func (b *WSBackend) disconnectLocked() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
	b.state.Store(int32(wsDisconnected))
}

// readLoop is the single reader task spawned on connect: it loops
// over inbound frames, dispatching each to the ResponseBus by
// correlation key, until an error or Close frame ends the loop (spec
// §4.4). Binary frames are parsed the same as text frames when they
// decode as JSON, matching the intended (if not literally coded)
// behavior of the source's reader (spec §9).
func (b *WSBackend) readLoop(conn *websocket.Conn, bus *ResponseBus) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			if b.conn == conn {
				b.disconnectLocked()
			}
			b.mu.Unlock()
			return
		}

		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		key := correlationKey(frame)
		if key == "" {
			continue
		}
		bus.Respond(key, frame)
	}
}

// correlationKey mirrors spec §4.4: request_id:<n> takes priority,
// then id:<n>, then type:<s> for unaddressed handshake frames.
func correlationKey(frame map[string]any) string {
	if v, ok := frame["request_id"]; ok {
		return fmt.Sprintf("request_id:%v", asNumber(v))
	}
	if v, ok := frame["id"]; ok {
		return fmt.Sprintf("id:%v", asNumber(v))
	}
	if v, ok := frame["type"]; ok {
		return fmt.Sprintf("type:%v", v)
	}
	return ""
}

func asNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%d", int64(n))
	default:
		return fmt.Sprintf("%v", n)
	}
}

// ensureConnected reconnects lazily when Disconnected (spec §4.4).
func (b *WSBackend) ensureConnected(ctx context.Context) error {
	if b.connected() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if wsState(b.state.Load()) == wsConnected {
		return nil
	}
	return b.connectLocked(ctx)
}

// wsRequestID and wsStreamID are shared by every WSBackend in the
// process; the first value each hands out is 1.
var (
	wsRequestID atomic.Uint64
	wsStreamID  atomic.Uint64
)

func (b *WSBackend) nextRequestID() uint64 { return wsRequestID.Add(1) }
func (b *WSBackend) nextStreamID() uint64  { return wsStreamID.Add(1) }

func (b *WSBackend) send(ctx context.Context, requestID uint64, payload any) (map[string]any, error) {
	b.mu.Lock()
	conn := b.conn
	bus := b.bus
	b.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("ws not connected")
	}

	wrapped := map[string]any{
		"type":       "request",
		"request_id": requestID,
		"request":    payload,
	}

	if err := conn.WriteJSON(wrapped); err != nil {
		return nil, fmt.Errorf("ws write failed: %w", err)
	}

	resp, err := bus.WaitFor(ctx, fmt.Sprintf("request_id:%d", requestID), b.busTimeout())
	if err != nil {
		return nil, err
	}
	frame, ok := resp.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected frame shape")
	}
	return frame, nil
}

// Send opens a stream, attaches its id to req, and issues the
// execute call on it (spec §4.4): (a) open_stream, wait on
// request_id:<n>; (b) mutate req to carry stream_id; (c) allocate a
// new request_id and send; (d) wait on request_id:<m>.
func (b *WSBackend) Send(ctx context.Context, req Request) (Response, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return Response{}, err
	}

	streamID := b.nextStreamID()
	openID := b.nextRequestID()
	if _, err := b.send(ctx, openID, map[string]any{"type": "open_stream", "stream_id": streamID}); err != nil {
		return Response{}, err
	}

	stmt := map[string]any{"sql": req.SQL}
	if len(req.Params) > 0 {
		stmt["args"] = req.Params
	} else {
		stmt["args"] = []Param{}
	}
	execID := b.nextRequestID()
	frame, err := b.send(ctx, execID, map[string]any{"type": "execute", "stmt": stmt, "stream_id": streamID})
	if err != nil {
		return Response{}, err
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		return Response{}, err
	}
	return decodeWSExecuteFrame(raw)
}

// decodeWSExecuteFrame decodes one wrapped {request_id, ...} reply
// whose inner payload matches the pipeline's Execute|Close|Error
// shape (spec §4.4, §6).
func decodeWSExecuteFrame(raw []byte) (Response, error) {
	var outer struct {
		Response json.RawMessage `json:"response"`
		Error    *struct {
			Message string `json:"message"`
		} `json:"error"`
		Baton string `json:"baton"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil {
		return Response{}, fmt.Errorf("decode ws frame: %w", err)
	}
	if outer.Error != nil {
		return Response{}, fmt.Errorf("%s", outer.Error.Message)
	}
	if outer.Response == nil {
		return Response{}, fmt.Errorf("ws frame carries no response")
	}

	var exec wireExecuteResponse
	if err := json.Unmarshal(outer.Response, &exec); err != nil {
		return Response{}, fmt.Errorf("decode ws execute result: %w", err)
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
	return Response{Baton: outer.Baton, Result: result}, nil
}

// GetTransactionBaton opens a stream and issues the BEGIN variant,
// returning the server-issued baton (spec §4.2, §4.4).
func (b *WSBackend) GetTransactionBaton(ctx context.Context, sql string) (string, error) {
	resp, err := b.Send(ctx, Request{SQL: sql, InTx: true})
	if err != nil {
		return "", err
	}
	if resp.Baton == "" {
		return "", fmt.Errorf("failed to begin transaction: no baton returned")
	}
	return resp.Baton, nil
}

// Close tears down the socket, if any.
func (b *WSBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnectLocked()
	return nil
}

// HandshakeGrace is the 500ms pause Open waits after a successful
// handshake before returning (spec §4.6).
func HandshakeGrace() time.Duration { return wsHandshakeGrace }
