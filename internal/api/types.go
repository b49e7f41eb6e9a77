package api

import (
	"github.com/samcharles93/opcount/internal/archspec"
	"github.com/samcharles93/opcount/pkg/profile"
)

// ProfileRequest asks for one model to be profiled. Exactly one of Model
// (a zoo name) and Spec (an inline architecture) must be set.
type ProfileRequest struct {
	Model string         `json:"model,omitempty"`
	Spec  *archspec.Spec `json:"spec,omitempty"`
	// Input overrides the model's default input shape.
	Input []int `json:"input,omitempty"`
	// FreeKinds are module kinds to treat as costing nothing, silencing the
	// not-implemented warning for them.
	FreeKinds   []string `json:"free_kinds,omitempty"`
	Layers      bool     `json:"layers,omitempty"`
	Materialize bool     `json:"materialize,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
	// Store defaults to true; false profiles without keeping the result.
	Store *bool `json:"store,omitempty"`
}

// Profile is a stored profiling result.
type Profile struct {
	ID          string              `json:"id"`
	Object      string              `json:"object"`
	CreatedAt   int64               `json:"created_at"`
	DurationMS  float64             `json:"duration_ms"`
	Model       string              `json:"model"`
	Input       []int               `json:"input_shape"`
	Output      []int               `json:"output_shape"`
	Ops         uint64              `json:"ops"`
	Params      uint64              `json:"params"`
	GFLOPs      float64             `json:"gflops"`
	MParams     float64             `json:"mparams"`
	ByKind      []profile.KindTotal `json:"by_kind"`
	Layers      []profile.LayerStat `json:"layers,omitempty"`
	Unsupported []string            `json:"unsupported,omitempty"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type ModelObject struct {
	ID          string `json:"id"`
	Object      string `json:"object"`
	Description string `json:"description"`
	Input       []int  `json:"input_shape"`
}

type KindObject struct {
	ID     string `json:"id"`
	Object string `json:"object"`
	// Free kinds are known to cost nothing and are not instrumented.
	Free bool `json:"free"`
}

type ResponseError struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}
