package server

import (
	grapiov1 "github.com/alfredjeanlab/grapio/gen/grapio/v1"
	"github.com/alfredjeanlab/grapio/internal/detect"
	"github.com/alfredjeanlab/grapio/internal/flags"
	"github.com/alfredjeanlab/grapio/internal/model"
)

// resultToReply converts a write result to its wire form.
func resultToReply(r flags.Result) *grapiov1.FeatureFlagControlReply {
	return &grapiov1.FeatureFlagControlReply{Success: r.Success, Message: r.Message}
}

// flagToReply converts a stored flag to a populated fetch reply.
func flagToReply(f *model.FeatureFlag) *grapiov1.FeatureFlagFetchReply {
	if f == nil {
		return &grapiov1.FeatureFlagFetchReply{}
	}
	return &grapiov1.FeatureFlagFetchReply{
		Key:         f.Key,
		Consumer:    f.Consumer,
		Value:       f.Value,
		IsPopulated: true,
	}
}

// resolvedToReply sets exactly the value field matching the detected type.
func resolvedToReply(f flags.ResolvedFlag) *grapiov1.FeatureFlagReply {
	r := &grapiov1.FeatureFlagReply{Key: f.Key}
	v := f.Value
	switch v.Type {
	case detect.TypeBoolean:
		b := v.Boolean
		r.BooleanValue = &b
	case detect.TypeInteger:
		n := v.Integer
		r.IntegerValue = &n
	case detect.TypeDouble:
		d := grapiov1.Double(v.Double)
		r.DoubleValue = &d
	case detect.TypeString:
		s := v.String
		r.StringValue = &s
	case detect.TypeStructured:
		r.StructureValue = v.Structure
	}
	return r
}
