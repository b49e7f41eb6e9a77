package api

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/opcount/internal/logger"
	"github.com/samcharles93/opcount/internal/zoo"
	"github.com/samcharles93/opcount/pkg/nn"
	"github.com/samcharles93/opcount/pkg/profile"
)

// Service builds and profiles models on behalf of the HTTP handlers. Every
// request gets its own model instance, so concurrent requests never share
// module state.
type Service struct {
	sem   *semaphore.Weighted
	log   logger.Logger
	clock func() time.Time

	// MaxMaterialized bounds the float32 elements, input plus parameters,
	// that a materialized request may allocate.
	MaxMaterialized int64
}

// DefaultMaxMaterialized is 1 GiB of float32 data.
const DefaultMaxMaterialized = 1 << 28

// NewService limits the number of profiles running at once to maxConcurrent
// (at least one).
func NewService(maxConcurrent int, log logger.Logger) *Service {
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		sem:   semaphore.NewWeighted(int64(max(maxConcurrent, 1))),
		log:   log,
		clock: time.Now,

		MaxMaterialized: DefaultMaxMaterialized,
	}
}

func (s *Service) Run(ctx context.Context, req *ProfileRequest) (Profile, error) {
	model, name, input, err := resolve(req)
	if err != nil {
		return Profile{}, err
	}

	if req.Materialize {
		in, params := input.Numel(), nn.TotalParams(model)
		if in > s.MaxMaterialized || params > s.MaxMaterialized-in {
			return Profile{}, invalidParam("materialize", "materializing %s needs %d input and %d parameter elements, limit is %d", name, in, params, s.MaxMaterialized)
		}
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Profile{}, err
	}
	defer s.sem.Release(1)

	custom := make(profile.Registry, len(req.FreeKinds))
	for _, k := range req.FreeKinds {
		custom[nn.Kind(k)] = nil
	}
	start := s.clock()
	res, err := profile.Profile(ctx, model, input, profile.Options{
		CustomOps:   custom,
		Quiet:       true,
		Materialize: req.Materialize,
		Seed:        req.Seed,
		Logger:      s.log.With("model", name),
	})
	if err != nil {
		if errors.Is(err, nn.ErrShapeMismatch) || errors.Is(err, nn.ErrInvalidShape) || errors.Is(err, nn.ErrInvalidConfig) {
			return Profile{}, invalidParam("input", "%v", err)
		}
		return Profile{}, err
	}
	elapsed := s.clock().Sub(start)
	s.log.Debug("profiled model", "model", name, "ops", res.Ops, "params", res.Params, "elapsed", elapsed)

	p := Profile{
		ID:         newProfileID(),
		Object:     "profile",
		CreatedAt:  start.Unix(),
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		Model:      name,
		Input:      res.Input,
		Output:     res.Output,
		Ops:        res.Ops,
		Params:     res.Params,
		GFLOPs:     res.GFLOPs(),
		MParams:    res.MParams(),
		ByKind:     res.ByKind(),
	}
	if req.Layers {
		p.Layers = res.Layers
	}
	for _, k := range res.Unsupported {
		p.Unsupported = append(p.Unsupported, string(k))
	}
	return p, nil
}

func resolve(req *ProfileRequest) (nn.Module, string, nn.Shape, error) {
	var (
		model nn.Module
		name  string
		input nn.Shape
		err   error
	)
	switch {
	case req.Model != "" && req.Spec != nil:
		return nil, "", nil, invalidParam("spec", "model and spec are mutually exclusive")
	case req.Model != "":
		name = req.Model
		model, input, err = zoo.Build(req.Model)
		if errors.Is(err, zoo.ErrUnknownModel) {
			return nil, "", nil, invalidParam("model", "%v", err)
		}
	case req.Spec != nil:
		name = req.Spec.Name
		if name == "" {
			name = "spec"
		}
		input = req.Spec.InputShape()
		model, err = req.Spec.Build()
		if err != nil {
			return nil, "", nil, invalidParam("spec", "%v", err)
		}
	default:
		return nil, "", nil, invalidParam("model", "one of model or spec is required")
	}
	if err != nil {
		return nil, "", nil, err
	}

	if len(req.Input) > 0 {
		input = nn.Shape(req.Input)
	}
	if len(input) == 0 {
		return nil, "", nil, invalidParam("input", "no input shape given for %s", name)
	}
	if err := input.Validate(); err != nil {
		return nil, "", nil, invalidParam("input", "%v", err)
	}
	return model, name, input, nil
}
