// Package analyzer talks to the python analysis backend that inspects a
// script's function signature and return statements.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dukex/flowdeck/pkg/models"
)

// Analyzer resolves the declared parameters and return shape of a python
// file. Failures are expected and soft: callers degrade to "no companion
// node" or "no matched variable" instead of propagating.
type Analyzer interface {
	AnalyzeFunction(ctx context.Context, pythonFile string) (*models.FunctionAnalysis, error)
}

const defaultTimeout = 10 * time.Second

// HTTPAnalyzer implements Analyzer against the backend's
// /api/analyze-python-function endpoint.
type HTTPAnalyzer struct {
	baseURL string
	client  *http.Client
}

func NewHTTPAnalyzer(baseURL string) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

type analyzeRequest struct {
	PythonFile string `json:"python_file"`
}

func (a *HTTPAnalyzer) AnalyzeFunction(ctx context.Context, pythonFile string) (*models.FunctionAnalysis, error) {
	body, err := json.Marshal(analyzeRequest{PythonFile: pythonFile})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/analyze-python-function", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis backend returned status %d", resp.StatusCode)
	}

	var analysis models.FunctionAnalysis

	err = json.NewDecoder(resp.Body).Decode(&analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to decode analysis response: %w", err)
	}

	if !analysis.Success {
		return nil, fmt.Errorf("analysis of %s was not successful", pythonFile)
	}

	return &analysis, nil
}

// Static is a fixture-backed Analyzer for tests and offline sessions.
type Static map[string]*models.FunctionAnalysis

func (s Static) AnalyzeFunction(_ context.Context, pythonFile string) (*models.FunctionAnalysis, error) {
	analysis, ok := s[pythonFile]
	if !ok {
		return nil, fmt.Errorf("no analysis fixture for %s", pythonFile)
	}

	return analysis, nil
}
