// Package diagnose assembles classification results, runbook matches,
// and live cluster state into a prompt for the reasoning engine, and
// normalizes the reply into a structured diagnosis.
//
// Every call resolves to exactly one of three outcomes: a mock
// analysis when no engine credential is configured, a normalized
// engine reply, or a deterministic fallback when the single engine
// invocation fails. No outcome surfaces as an error to the caller.
package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/llm"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

var tracer = otel.Tracer("incidentd/diagnose")

// mockInputEcho bounds how much of the original error text the mock
// outcome echoes back.
const mockInputEcho = 500

// Service runs the diagnosis pipeline for one request at a time. It is
// stateless between requests and safe for concurrent use.
type Service struct {
	store  *runbooks.Store
	client llm.Client
	logger *zap.Logger
	tracer trace.Tracer
	topK   int
}

// NewService creates the diagnosis service. A nil client enables mock
// mode: every diagnosis is synthesized deterministically from the
// classifier's findings. topK bounds the runbook matches fed into the
// prompt; values below 1 fall back to runbooks.DefaultTopK so the
// pipeline and the transport layer agree on the same bound.
func NewService(store *runbooks.Store, client llm.Client, logger *zap.Logger, topK int) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("runbook store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK < 1 {
		topK = runbooks.DefaultTopK
	}
	return &Service{
		store:  store,
		client: client,
		logger: logger,
		tracer: tracer,
		topK:   topK,
	}, nil
}

// Diagnose produces a structured analysis for the error report. The
// snapshot may be nil. The method never returns an error shape to the
// caller: engine failures degrade to deterministic outcomes.
func (s *Service) Diagnose(ctx context.Context, errorText string, cs []classifier.Classification, snap *cluster.Snapshot) *Analysis {
	ctx, span := s.tracer.Start(ctx, "Service.Diagnose")
	defer span.End()

	matches, err := s.store.Search(ctx, errorText, s.topK)
	if err != nil {
		s.logger.Warn("runbook search failed", zap.Error(err))
	}
	files := matchFilenames(matches)

	if s.client == nil {
		s.logger.Debug("no reasoning engine credential configured, returning mock analysis")
		return mockAnalysis(errorText, cs, files)
	}

	prompt := assemblePrompt(errorText, cs, snap, matches)

	// Single bounded attempt. A failed call is terminal for this
	// request; the fallback outcome is the answer.
	raw, err := s.client.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		span.RecordError(err)
		s.logger.Error("reasoning engine invocation failed", zap.Error(err))
		return fallbackAnalysis(err, cs, files)
	}

	return parseReply(raw, files)
}

func matchFilenames(matches []runbooks.Match) []string {
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, m.Filename)
	}
	return files
}

// mockAnalysis is the deterministic outcome used when no engine
// credential is configured.
func mockAnalysis(errorText string, cs []classifier.Classification, files []string) *Analysis {
	severity := defaultSeverity
	category := defaultCategory
	if len(cs) > 0 {
		severity = string(cs[0].Severity)
		category = string(cs[0].Category)
	}

	echo := errorText
	if len(echo) > mockInputEcho {
		cut := mockInputEcho
		// Back up to a rune boundary so the echo stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(echo[cut]) {
			cut--
		}
		echo = echo[:cut]
	}

	return &Analysis{
		RootCause:     fmt.Sprintf("[MOCK] Detected %s error pattern", category),
		Severity:      severity,
		ErrorCategory: category,
		Explanation: fmt.Sprintf("[MOCK MODE - no API key configured]\nDetected error patterns: %s\n\nOriginal error:\n%s",
			classificationsJSON(cs), echo),
		FixCommands: []FixCommand{
			{
				Command:     "kubectl describe pod <pod-name> -n <namespace>",
				Description: "Get detailed pod information including events and conditions",
				RiskLevel:   "LOW",
			},
			{
				Command:     "kubectl logs <pod-name> -n <namespace> --previous",
				Description: "Check logs from the previous crashed container instance",
				RiskLevel:   "LOW",
			},
		},
		PreventionTips: []string{
			"Set proper resource requests and limits for all containers",
			"Configure health probes with appropriate initialDelaySeconds",
		},
		RelatedRunbooks: files,
	}
}

// fallbackAnalysis is the deterministic outcome used when the engine
// invocation itself failed. Its wording is distinct from mock mode.
func fallbackAnalysis(cause error, cs []classifier.Classification, files []string) *Analysis {
	severity := defaultSeverity
	category := defaultCategory
	if len(cs) > 0 {
		severity = string(cs[0].Severity)
		category = string(cs[0].Category)
	}

	return &Analysis{
		RootCause:     "AI analysis failed - see pre-classified errors below",
		Severity:      severity,
		ErrorCategory: category,
		Explanation: fmt.Sprintf("The AI model could not be reached (%v). However, pattern-based analysis detected: %s",
			cause, classificationsJSON(cs)),
		FixCommands: []FixCommand{
			{
				Command:     "kubectl get events -n <namespace> --sort-by='.lastTimestamp'",
				Description: "Check recent events in the namespace for clues",
				RiskLevel:   "LOW",
			},
		},
		PreventionTips: []string{
			"Ensure the reasoning engine API key is set and valid",
		},
		RelatedRunbooks: files,
	}
}

func classificationsJSON(cs []classifier.Classification) string {
	if cs == nil {
		cs = []classifier.Classification{}
	}
	data, err := json.MarshalIndent(cs, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
