package binance

import (
	"strings"
	"testing"
)

func TestDescriptorBuildsCombinedStreamURL(t *testing.T) {
	a := New("wss://fstream.binance.com", "")
	desc, err := a.Descriptor("BTCUSDT")
	if err != nil {
		t.Fatalf("Descriptor failed: %v", err)
	}
	if desc.URL != "wss://fstream.binance.com/stream?streams=btcusdt@markPrice" {
		t.Errorf("url: %s", desc.URL)
	}
	if desc.SubscribePayload != nil {
		t.Error("combined stream needs no subscribe payload")
	}
	if desc.PingMessage != nil {
		t.Error("binance uses protocol-level ping")
	}
}

func TestDescriptorEmptyInstrument(t *testing.T) {
	a := New("wss://fstream.binance.com", "")
	if _, err := a.Descriptor("  "); err == nil {
		t.Error("empty instrument must be rejected")
	}
}

func TestDecodeMarkPriceUpdate(t *testing.T) {
	frame := []byte(`{"stream":"btcusdt@markPrice","data":{"e":"markPriceUpdate","E":1700000000000,"s":"BTCUSDT","p":"45123.50","r":"0.00010000"}}`)

	up, ok, err := Decoder{}.Decode(frame)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if up.Price != 45123.5 {
		t.Errorf("price: %v", up.Price)
	}
	if up.FundingRate == nil || *up.FundingRate != 0.0001 {
		t.Errorf("funding: %v", up.FundingRate)
	}
	if up.Ts != 1700000000000 {
		t.Errorf("ts: %v", up.Ts)
	}
}

func TestDecodeEmptyFundingRate(t *testing.T) {
	// 非永续符号 r 为空串：价格照常，费率留空
	frame := []byte(`{"stream":"btcusdt@markPrice","data":{"e":"markPriceUpdate","E":1,"s":"BTCUSDT","p":"100","r":""}}`)

	up, ok, err := Decoder{}.Decode(frame)
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if up.Price != 100 || up.FundingRate != nil {
		t.Errorf("unexpected update: %+v", up)
	}
}

func TestDecodeSkipsNonMarkPriceEvents(t *testing.T) {
	frame := []byte(`{"stream":"btcusdt@depth","data":{"e":"depthUpdate"}}`)
	if _, ok, err := (Decoder{}).Decode(frame); ok || err != nil {
		t.Errorf("non-markPrice event: ok=%v err=%v", ok, err)
	}
}

func TestDecodeMalformedFrame(t *testing.T) {
	if _, ok, err := (Decoder{}).Decode([]byte("garbage")); ok || err == nil {
		t.Error("garbage frame must return error")
	}

	bad := []byte(`{"data":{"e":"markPriceUpdate","p":"not-a-number"}}`)
	if _, ok, err := (Decoder{}).Decode(bad); ok || err == nil {
		t.Error("unparseable price must return error")
	}
	if _, _, err := (Decoder{}).Decode(bad); err != nil && !strings.Contains(err.Error(), "mark price") {
		t.Errorf("error should name the field: %v", err)
	}
}
