package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_       string
	AnalyzeFunc func(ctx context.Context, in models.AnalysisInput) (string, error)

	calls atomic.Int32
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	m.calls.Add(1)
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, in)
	}
	return "", nil
}

// Calls returns how many times Analyze was invoked.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// NewMockProvider returns a MockProvider that answers every request with a canned
// report naming the keywords it was given.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeFunc: func(_ context.Context, in models.AnalysisInput) (string, error) {
			return CannedReport(in.Keywords), nil
		},
	}
}

// NewReportProvider returns a MockProvider that always answers with report.
func NewReportProvider(report string) *MockProvider {
	return &MockProvider{
		Name_: "mock",
		AnalyzeFunc: func(context.Context, models.AnalysisInput) (string, error) {
			return report, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		AnalyzeFunc: func(context.Context, models.AnalysisInput) (string, error) {
			return "", err
		},
	}
}

// NewFlakyProvider fails the first call with err and answers later calls with report.
func NewFlakyProvider(err error, report string) *MockProvider {
	m := &MockProvider{Name_: "mock-flaky"}
	m.AnalyzeFunc = func(context.Context, models.AnalysisInput) (string, error) {
		if m.Calls() == 1 {
			return "", err
		}
		return report, nil
	}
	return m
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		AnalyzeFunc: func(ctx context.Context, _ models.AnalysisInput) (string, error) {
			<-ctx.Done()
			return "", fmt.Errorf("%w: %v", models.ErrInferenceTimeout, ctx.Err())
		},
	}
}

// CannedReport is a well-formed report in the shape real providers are asked for.
func CannedReport(keywords []string) string {
	name := "Crankshaft with Pistons"
	if len(keywords) > 0 {
		name = strings.Join(keywords, " ")
	}
	return fmt.Sprintf("## Identification\n- **Precise Part Name:** %s\n\n```json\n"+
		`{"class_name": "Engine Component", "precise_part_name": %q, "category": "Engine",`+
		` "confidence_score": 95, "compatible_vehicles": [], "suppliers": [],`+
		` "summary": "Mock identification", "candidate_parts": [%q]}`+
		"\n```\n", name, name, name)
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
