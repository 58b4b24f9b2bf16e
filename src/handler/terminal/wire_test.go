package terminal

import "testing"

// TestErrorMessageWireShape pins the error frame shape to the literal
// example: an error frame carries no "type" discriminant.
func TestErrorMessageWireShape(t *testing.T) {
	b, err := json.Marshal(errorMessage{Error: "capacity"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"error":"capacity"}`; got != want {
		t.Fatalf("error frame = %s, want %s", got, want)
	}
}

func TestExitMessageWireShape(t *testing.T) {
	b, err := json.Marshal(exitMessage{Type: msgTypeExit, Code: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(b), `{"type":"exit","code":0}`; got != want {
		t.Fatalf("exit frame = %s, want %s", got, want)
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	in := controlMessage{Type: msgTypeResize, Cols: 100, Rows: 40}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out controlMessage
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}
