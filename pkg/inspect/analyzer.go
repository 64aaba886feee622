package inspect

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/txguard/pkg/metrics"
	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/trustlist"
)

const (
	metricsStructName = "inspect.analyzer"

	decodeErrorsMetricName  = "Custom/Analyzer/DecodeErrors"
	flaggedAddressEventName = "FlaggedAddress"
)

// Analysis is the result of analyzing a single message.
type Analysis struct {
	Records  []Record `json:"records"`
	Findings Findings `json:"findings"`
}

// Analyzer decodes and classifies transaction messages. It holds no per-call
// state and is safe for concurrent use.
type Analyzer struct {
	log     *logrus.Entry
	decoder *Decoder
}

func NewAnalyzer(decoder *Decoder) *Analyzer {
	return &Analyzer{
		log:     logrus.StandardLogger().WithField("type", "inspect/analyzer"),
		decoder: decoder,
	}
}

// Analyze decodes m and classifies the result against lists. Failures local to
// an instruction are reported as DecodeError records; the only error returned
// is ErrTooManyInstructions.
func (a *Analyzer) Analyze(ctx context.Context, m solana.Message, lists *trustlist.Lists) (*Analysis, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Analyze")
	defer tracer.End()

	log := a.log.WithFields(logrus.Fields{
		"method":       "Analyze",
		"accounts":     len(m.Accounts),
		"instructions": len(m.Instructions),
	})

	records, err := a.decoder.Decode(m)
	if err != nil {
		log.WithError(err).Info("rejected message")
		tracer.OnError(err)
		metrics.AnalysesTotal.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}

	findings := Classify(records, lists)

	var decodeErrors int
	for _, record := range records {
		if decodeErr, ok := record.(*DecodeError); ok {
			decodeErrors++
			log.WithError(decodeErr).Debug("instruction not decoded")
		}
	}

	tracer.AddAttributes(map[string]interface{}{
		"records":       len(records),
		"decode_errors": decodeErrors,
	})
	metrics.AnalysesTotal.WithLabelValues(metrics.ResultOk).Inc()
	metrics.DecodeErrorsTotal.Add(float64(decodeErrors))
	metrics.FindingsTotal.WithLabelValues("untrusted_program").Add(float64(len(findings.UntrustedPrograms)))
	metrics.FindingsTotal.WithLabelValues("flagged_address").Add(float64(len(findings.FlaggedAddresses)))
	metrics.RecordCount(ctx, decodeErrorsMetricName, uint64(decodeErrors))
	for _, flagged := range findings.FlaggedAddresses {
		metrics.RecordEvent(ctx, flaggedAddressEventName, map[string]interface{}{
			"address":     flagged.Address.ToBase58(),
			"description": flagged.Description,
		})
	}

	return &Analysis{
		Records:  records,
		Findings: findings,
	}, nil
}
