package frame

import "testing"

func TestChatSendRoundTrip(t *testing.T) {
	f := &Frame{
		Type:      TypeChatSend,
		RequestID: "req-1",
		ChatData:  &ChatData{ToUserID: 42, Content: []byte("hi")},
	}
	raw, err := f.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeChatSend || got.RequestID != "req-1" || got.ChatData.ToUserID != 42 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUnknownIsErrorCarrier(t *testing.T) {
	f := ErrorFrame("req-2", "bad frame")
	if f.Type != TypeUnknown {
		t.Fatalf("expected UNKNOWN type, got %v", f.Type)
	}
	if f.Error == "" {
		t.Fatalf("expected error message set")
	}
}

func TestMalformedFrameDoesNotPanic(t *testing.T) {
	if _, err := Unmarshal([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
}
