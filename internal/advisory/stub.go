package advisory

import (
	"context"
	"fmt"
)

// Func is a Service assembled from functions. A nil function answers
// ErrUnavailable. Used by tests and the smoke tool.
type Func struct {
	SearchFn    func(ctx context.Context, query string) (SearchResult, error)
	RequireFn   func(ctx context.Context, scheme string) ([]RequirementField, error)
	DocumentFn  func(ctx context.Context, doc Document) (DocumentVerdict, error)
	EvaluateFn  func(ctx context.Context, req EvaluationRequest) (Verdict, error)
	GeocodeFn   func(ctx context.Context, lat, lng float64) (Location, error)
	GrievanceFn func(ctx context.Context, description string) (GrievanceAnalysis, error)
	ChatFn      func(ctx context.Context, message string) (string, error)
	CentersFn   func(ctx context.Context, lat, lng float64) (CentersResult, error)
}

var _ Service = Func{}

func unset(op string) error { return fmt.Errorf("%w: %s not configured", ErrUnavailable, op) }

func (f Func) SearchSchemes(ctx context.Context, query string) (SearchResult, error) {
	if f.SearchFn == nil {
		return SearchResult{}, unset("search")
	}
	return f.SearchFn(ctx, query)
}

func (f Func) Requirements(ctx context.Context, scheme string) ([]RequirementField, error) {
	if f.RequireFn == nil {
		return nil, unset("requirements")
	}
	return f.RequireFn(ctx, scheme)
}

func (f Func) CheckDocument(ctx context.Context, doc Document) (DocumentVerdict, error) {
	if f.DocumentFn == nil {
		return DocumentVerdict{}, unset("document")
	}
	return f.DocumentFn(ctx, doc)
}

func (f Func) Evaluate(ctx context.Context, req EvaluationRequest) (Verdict, error) {
	if f.EvaluateFn == nil {
		return Verdict{}, unset("evaluate")
	}
	return f.EvaluateFn(ctx, req)
}

func (f Func) ReverseGeocode(ctx context.Context, lat, lng float64) (Location, error) {
	if f.GeocodeFn == nil {
		return Location{}, unset("geocode")
	}
	return f.GeocodeFn(ctx, lat, lng)
}

func (f Func) AnalyzeGrievance(ctx context.Context, description string) (GrievanceAnalysis, error) {
	if f.GrievanceFn == nil {
		return GrievanceAnalysis{}, unset("grievance")
	}
	return f.GrievanceFn(ctx, description)
}

func (f Func) Chat(ctx context.Context, message string) (string, error) {
	if f.ChatFn == nil {
		return "", unset("chat")
	}
	return f.ChatFn(ctx, message)
}

func (f Func) NearbyCenters(ctx context.Context, lat, lng float64) (CentersResult, error) {
	if f.CentersFn == nil {
		return CentersResult{}, unset("centers")
	}
	return f.CentersFn(ctx, lat, lng)
}
