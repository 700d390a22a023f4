package verify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dokubo/veriseal/internal/fields"
	"github.com/dokubo/veriseal/internal/idgen"
	"github.com/dokubo/veriseal/internal/match"
	"github.com/dokubo/veriseal/internal/metrics"
	"github.com/dokubo/veriseal/internal/ocr"
	"github.com/dokubo/veriseal/internal/qrseal"
	"github.com/dokubo/veriseal/internal/submission"
	"github.com/dokubo/veriseal/internal/traces"
	"github.com/dokubo/veriseal/internal/trend"
	"github.com/dokubo/veriseal/internal/verdict"
)

// Outcome is the full result of processing one submission.
type Outcome struct {
	Submission *submission.Submission `json:"submission"`
	Result     *verdict.Result        `json:"result"`

	QRStatus QRStatus `json:"qrStatus"`
	QRError  string   `json:"qrError,omitempty"`

	TrendRecorded bool   `json:"trendRecorded"`
	TrendWarning  bool   `json:"trendWarning"`
	TrendError    string `json:"trendError,omitempty"`
}

// Service runs the verification pipeline.
type Service struct {
	normalizer *ocr.Normalizer
	parser     *qrseal.Parser
	matcher    *match.Matcher
	engine     *verdict.Engine
	store      submission.Store
	detector   *trend.Detector
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires the pipeline stages together. detector may be nil to
// disable trend recording.
func NewService(
	normalizer *ocr.Normalizer,
	parser *qrseal.Parser,
	matcher *match.Matcher,
	engine *verdict.Engine,
	store submission.Store,
	detector *trend.Detector,
	logger *slog.Logger,
) *Service {
	return &Service{
		normalizer: normalizer,
		parser:     parser,
		matcher:    matcher,
		engine:     engine,
		store:      store,
		detector:   detector,
		logger:     logger,
		now:        time.Now,
	}
}

// Verify runs one submission through the pipeline. QR decode failures and
// trend-index outages degrade the outcome instead of failing it: a receipt
// whose seal cannot be read still gets a verdict, and a rejection that
// could not be indexed is still a rejection.
func (s *Service) Verify(ctx context.Context, req *Request) (*Outcome, error) {
	ctx, span := traces.StartSpan(ctx, "verify.Verify", traces.OwnerRef(req.AccountOwnerRef))
	defer span.End()

	now := s.now().UTC()
	sub := &submission.Submission{
		ID:              idgen.WithPrefix("sub_"),
		AccountOwnerRef: req.AccountOwnerRef,
		RawOCRText:      req.OCRText,
		RawQRPayload:    req.QRPayload,
		CapturedAt:      req.CapturedAt,
		DeviceID:        req.DeviceID,
		SessionID:       req.SessionID,
		ReceivedAt:      now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	ocrFields, err := s.normalizer.Normalize(req.OCRText)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{Submission: sub}
	qrFields := s.decodeQR(ctx, req.QRPayload, outcome)
	metrics.QRPayloadsTotal.WithLabelValues(string(outcome.QRStatus)).Inc()

	comparisons := s.matcher.Compare(ocrFields, qrFields)
	result := s.engine.Decide(sub.ID, comparisons)
	if err := s.store.CreateResult(ctx, result); err != nil {
		return nil, err
	}
	outcome.Result = result
	metrics.VerificationsTotal.WithLabelValues(string(result.Verdict)).Inc()
	span.SetAttributes(
		traces.SubmissionID(sub.ID),
		traces.Verdict(string(result.Verdict)),
		traces.QRStatus(string(outcome.QRStatus)),
	)

	if result.Rejected() {
		s.recordTrend(ctx, sub, ocrFields, qrFields, outcome)
	}

	s.logger.InfoContext(ctx, "submission verified",
		"submissionId", sub.ID,
		"owner", sub.AccountOwnerRef,
		"verdict", result.Verdict,
		"score", result.Score,
		"qrStatus", outcome.QRStatus,
	)
	return outcome, nil
}

// decodeQR parses the payload and classifies failures. A submission
// without a readable seal is compared against an empty QR field set, which
// the matcher and engine turn into a reject-or-suspicious verdict.
func (s *Service) decodeQR(ctx context.Context, payload []byte, outcome *Outcome) *fields.TypedFields {
	if len(payload) == 0 {
		outcome.QRStatus = QRAbsent
		return fields.New(fields.ProvenanceQR)
	}

	qrFields, err := s.parser.Parse(payload)
	if err == nil {
		outcome.QRStatus = QRDecoded
		return qrFields
	}

	switch {
	case errors.Is(err, qrseal.ErrBadSignature):
		outcome.QRStatus = QRBadSignature
	case errors.Is(err, qrseal.ErrUnsupportedSchema):
		outcome.QRStatus = QRUnsupportedSchema
	default:
		outcome.QRStatus = QRUndecodable
	}
	outcome.QRError = err.Error()
	s.logger.WarnContext(ctx, "qr payload rejected", "status", outcome.QRStatus, "error", err)
	return fields.New(fields.ProvenanceQR)
}

// recordTrend feeds a rejection into the signature index. Index failures
// never void the verdict.
func (s *Service) recordTrend(ctx context.Context, sub *submission.Submission, ocrFields, qrFields *fields.TypedFields, outcome *Outcome) {
	if s.detector == nil {
		return
	}

	sig := trend.FromFields(ocrFields, qrFields)
	rec, warned, err := s.detector.Record(ctx, sig, sub.AccountOwnerRef, sub.ID)
	if err != nil {
		outcome.TrendError = err.Error()
		s.logger.ErrorContext(ctx, "trend recording failed", "submissionId", sub.ID, "error", err)
		return
	}
	if rec == nil {
		return
	}
	outcome.TrendRecorded = true
	outcome.TrendWarning = warned
	if warned {
		metrics.TrendWarningsTotal.Inc()
	}
}

// Lookup returns a previously decided result.
func (s *Service) Lookup(ctx context.Context, submissionID string) (*submission.Submission, *verdict.Result, error) {
	sub, err := s.store.Get(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.store.GetResult(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	return sub, result, nil
}

// History lists an owner's recent results, newest first. A non-zero
// before bound restricts the page to results decided strictly earlier.
func (s *Service) History(ctx context.Context, ownerRef string, before time.Time, limit int) ([]*verdict.Result, error) {
	return s.store.ListResultsByOwner(ctx, ownerRef, before, limit)
}
