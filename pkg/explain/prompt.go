package explain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/code-payments/txguard/pkg/inspect"
)

const (
	findingsHeader = "Additional information from our security checks:"
	warningMarker  = "⚠️ WARNING:"
)

const promptTemplate = `You are a Solana security assistant. Analyze the unsigned transaction below and return your answer in JSON format ONLY.

Your response MUST follow this exact format:
{
  "safetyLevel": "safe" | "not_safe",
  "summary": "Short, user-friendly summary of what the transaction is doing.",
  "reasoning": "Explain clearly why this transaction is marked as safe or not_safe, especially if any programs are unrecognized."
}

Do not add anything else beyond the JSON object.

---

Transaction data (contains the Solana programs/contracts being called):
%s

Trusted match results (tells you which programs are verified and which are not):
%s

Rules:
- If all programs are matched from the trusted list, mark as "safe".
- If even one program is not matched (unknown/unverified), mark as "not_safe".
- In the summary, clearly describe any transfers, swaps, or staking operations.
- In the reasoning, be concise but specific. Mention unknown programs and their possible risk.
`

// FindingsMessage renders findings as one line per non-empty bucket, with
// untrusted programs and flagged addresses marked as warnings.
func FindingsMessage(findings inspect.Findings) string {
	var sb strings.Builder
	sb.WriteString(findingsHeader)
	sb.WriteString("\n")

	for _, bucket := range []struct {
		prefix   string
		findings []inspect.Finding
	}{
		{"- The transaction interacts with these trusted programs: ", findings.TrustedPrograms},
		{warningMarker + " The transaction interacts with these untrusted programs: ", findings.UntrustedPrograms},
		{"- The transaction interacts with these trusted addresses: ", findings.TrustedAddresses},
		{warningMarker + " The transaction interacts with these flagged addresses: ", findings.FlaggedAddresses},
	} {
		if len(bucket.findings) == 0 {
			continue
		}

		entries := make([]string, len(bucket.findings))
		for i, finding := range bucket.findings {
			entries[i] = fmt.Sprintf("%s (%s)", finding.Description, finding.Address.ToBase58())
		}

		sb.WriteString(bucket.prefix)
		sb.WriteString(strings.Join(entries, ", "))
		sb.WriteString("\n")
	}

	return sb.String()
}

// BuildPrompt renders the instruction sent to the model for an analysis.
func BuildPrompt(records []inspect.Record, findings inspect.Findings) (string, error) {
	if records == nil {
		records = []inspect.Record{}
	}

	recordsJSON, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "error marshalling records")
	}

	return fmt.Sprintf(promptTemplate, recordsJSON, FindingsMessage(findings)), nil
}
