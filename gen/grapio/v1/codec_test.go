package grapiov1

import (
	"math"
	"testing"

	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCodec_Registered(t *testing.T) {
	if encoding.GetCodec(CodecName) == nil {
		t.Fatalf("codec %q not registered", CodecName)
	}
}

func TestCodec_PlainMessages(t *testing.T) {
	c := Codec{}
	v := "true"
	data, err := c.Marshal(&FeatureFlagSetRequest{Key: "k", Value: &v})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `{"key":"k","value":"true"}`; got != want {
		t.Fatalf("Marshal = %s, want %s", got, want)
	}

	var out FeatureFlagSetRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Value == nil || *out.Value != "true" {
		t.Fatalf("unexpected value %+v", out)
	}

	// A missing value stays nil, distinguishing it from the empty string.
	var missing FeatureFlagSetRequest
	if err := c.Unmarshal([]byte(`{"key":"k"}`), &missing); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if missing.Value != nil {
		t.Fatal("expected nil value")
	}
}

func TestCodec_ProtoMessages(t *testing.T) {
	c := Codec{}
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("got status %v", out.GetStatus())
	}
}

func TestFeatureFlagReply_Getters(t *testing.T) {
	var nilReply *FeatureFlagReply
	if nilReply.GetKey() != "" || nilReply.GetBooleanValue() || nilReply.GetStructureValue() != nil {
		t.Fatal("expected zero values from nil reply")
	}

	n := int32(7)
	r := &FeatureFlagReply{Key: "k", IntegerValue: &n}
	if r.GetIntegerValue() != 7 || r.GetDoubleValue() != 0 || r.GetStringValue() != "" {
		t.Fatalf("unexpected getters for %+v", r)
	}
}

func TestDouble_NonFinite(t *testing.T) {
	c := Codec{}
	for _, tc := range []struct {
		in   float64
		want string
	}{
		{2.5, `{"key":"d","double_value":2.5}`},
		{math.Inf(1), `{"key":"d","double_value":"Infinity"}`},
		{math.Inf(-1), `{"key":"d","double_value":"-Infinity"}`},
	} {
		d := Double(tc.in)
		data, err := c.Marshal(&FeatureFlagReply{Key: "d", DoubleValue: &d})
		if err != nil {
			t.Fatalf("Marshal(%v): %v", tc.in, err)
		}
		if string(data) != tc.want {
			t.Fatalf("Marshal(%v) = %s, want %s", tc.in, data, tc.want)
		}
		var out FeatureFlagReply
		if err := c.Unmarshal(data, &out); err != nil {
			t.Fatalf("Unmarshal(%s): %v", data, err)
		}
		if out.GetDoubleValue() != tc.in {
			t.Fatalf("round trip of %v gave %v", tc.in, out.GetDoubleValue())
		}
	}
}
