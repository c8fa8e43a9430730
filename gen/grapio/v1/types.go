package grapiov1

import (
	"encoding/json"
	"math"
	"strconv"
)

// FeatureFlagSetRequest creates or updates a flag. A nil Value is invalid.
type FeatureFlagSetRequest struct {
	Key      string  `json:"key"`
	Value    *string `json:"value,omitempty"`
	Consumer string  `json:"consumer,omitempty"`
}

func (x *FeatureFlagSetRequest) GetKey() string {
	if x == nil {
		return ""
	}
	return x.Key
}

func (x *FeatureFlagSetRequest) GetConsumer() string {
	if x == nil {
		return ""
	}
	return x.Consumer
}

type FeatureFlagUnsetRequest struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer,omitempty"`
}

func (x *FeatureFlagUnsetRequest) GetKey() string {
	if x == nil {
		return ""
	}
	return x.Key
}

func (x *FeatureFlagUnsetRequest) GetConsumer() string {
	if x == nil {
		return ""
	}
	return x.Consumer
}

type FeatureFlagControlReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type FeatureFlagsFetchRequest struct{}

// FeatureFlagsFetchReply is a flag identity without its value.
type FeatureFlagsFetchReply struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer"`
}

type FeatureFlagFetchByKeyRequest struct {
	Key string `json:"key"`
}

type FeatureFlagFetchByConsumerRequest struct {
	Consumer string `json:"consumer"`
}

type FeatureFlagFetchByKeyAndConsumerRequest struct {
	Key      string `json:"key"`
	Consumer string `json:"consumer"`
}

// FeatureFlagFetchReply is a full flag record. IsPopulated is false when a
// point lookup found nothing.
type FeatureFlagFetchReply struct {
	Key         string `json:"key"`
	Consumer    string `json:"consumer"`
	Value       string `json:"value"`
	IsPopulated bool   `json:"is_populated"`
}

type FeatureFlagsRequest struct {
	Requester string `json:"requester"`
}

// FeatureFlagReply carries one typed flag value; exactly one value field is set.
type FeatureFlagReply struct {
	Key            string   `json:"key"`
	BooleanValue   *bool    `json:"boolean_value,omitempty"`
	IntegerValue   *int32   `json:"integer_value,omitempty"`
	DoubleValue    *Double  `json:"double_value,omitempty"`
	StringValue    *string  `json:"string_value,omitempty"`
	StructureValue []byte   `json:"structure_value,omitempty"`
}

func (x *FeatureFlagReply) GetKey() string {
	if x == nil {
		return ""
	}
	return x.Key
}

func (x *FeatureFlagReply) GetBooleanValue() bool {
	if x == nil || x.BooleanValue == nil {
		return false
	}
	return *x.BooleanValue
}

func (x *FeatureFlagReply) GetIntegerValue() int32 {
	if x == nil || x.IntegerValue == nil {
		return 0
	}
	return *x.IntegerValue
}

func (x *FeatureFlagReply) GetDoubleValue() float64 {
	if x == nil || x.DoubleValue == nil {
		return 0
	}
	return float64(*x.DoubleValue)
}

func (x *FeatureFlagReply) GetStringValue() string {
	if x == nil || x.StringValue == nil {
		return ""
	}
	return *x.StringValue
}

func (x *FeatureFlagReply) GetStructureValue() []byte {
	if x == nil {
		return nil
	}
	return x.StructureValue
}

// Double is a float64 that encodes non-finite values as the strings
// "Infinity", "-Infinity" and "NaN", following the protobuf JSON mapping.
type Double float64

func (d Double) MarshalJSON() ([]byte, error) {
	f := float64(d)
	switch {
	case math.IsInf(f, 1):
		return []byte(`"Infinity"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Infinity"`), nil
	case math.IsNaN(f):
		return []byte(`"NaN"`), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

func (d *Double) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		switch s {
		case "Infinity":
			*d = Double(math.Inf(1))
		case "-Infinity":
			*d = Double(math.Inf(-1))
		case "NaN":
			*d = Double(math.NaN())
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			*d = Double(f)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*d = Double(f)
	return nil
}
