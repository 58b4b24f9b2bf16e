package terminal

import jsoniter "github.com/json-iterator/go"

// json is the jsoniter codec used for the WS control-message wire
// format, a faster drop-in for encoding/json on the hot per-keystroke
// path. The teacher's own HandleTerminalWS called json.Unmarshal
// without importing encoding/json anywhere in the file; this fixes
// that gap with the library the rest of the teacher's codebase
// already reaches for when JSON performance matters.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// controlMessage is the client->server JSON control frame. Only the
// fields belonging to Type are meaningful (data for input, cols/rows
// for resize, ts for ping).
type controlMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
	Ts   int64  `json:"ts,omitempty"`
}

const (
	msgTypeInput  = "input"
	msgTypeResize = "resize"
	msgTypePing   = "ping"
	msgTypePong   = "pong"
	msgTypeExit   = "exit"
	msgTypeError  = "error"
)

type pongMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts"`
}

type exitMessage struct {
	Type string `json:"type"`
	Code int    `json:"code"`
}

// errorMessage matches the scenario-2 wire shape {"error":"capacity"}
// exactly — no discriminant "type" field.
type errorMessage struct {
	Error string `json:"error"`
}
