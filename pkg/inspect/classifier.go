package inspect

import (
	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/trustlist"
)

const (
	UnverifiedProgramDescription = "Unknown or unverified program"
)

// Finding is a single address matched, or not matched, against a trust list.
type Finding struct {
	Address     solana.PublicKey `json:"id"`
	Description string           `json:"description"`
}

// Findings partitions the programs and addresses of an analysis. Every bucket
// is ordered by the records that produced it.
type Findings struct {
	TrustedPrograms   []Finding `json:"trustedPrograms"`
	UntrustedPrograms []Finding `json:"untrustedPrograms"`
	TrustedAddresses  []Finding `json:"trustedAddresses"`
	FlaggedAddresses  []Finding `json:"flaggedAddresses"`
}

func newFindings() Findings {
	return Findings{
		TrustedPrograms:   []Finding{},
		UntrustedPrograms: []Finding{},
		TrustedAddresses:  []Finding{},
		FlaggedAddresses:  []Finding{},
	}
}

// Classify matches records against the trust lists. Every ProgramReference
// lands in exactly one of the program buckets. The sender and receiver of a
// transfer are each checked against both the trusted and flagged address
// lists, so one address can appear in both. DecodeErrors are skipped.
func Classify(records []Record, lists *trustlist.Lists) Findings {
	findings := newFindings()

	for _, record := range records {
		switch typed := record.(type) {
		case *ProgramReference:
			if description, ok := lists.TrustedProgram(typed.Program); ok {
				findings.TrustedPrograms = append(findings.TrustedPrograms, Finding{typed.Program, description})
			} else {
				findings.UntrustedPrograms = append(findings.UntrustedPrograms, Finding{typed.Program, UnverifiedProgramDescription})
			}
		case *TransferRecord:
			for _, address := range []solana.PublicKey{typed.Sender, typed.Receiver} {
				if description, ok := lists.TrustedAddress(address); ok {
					findings.TrustedAddresses = append(findings.TrustedAddresses, Finding{address, description})
				}
				if description, ok := lists.FlaggedAddress(address); ok {
					findings.FlaggedAddresses = append(findings.FlaggedAddresses, Finding{address, description})
				}
			}
		}
	}

	return findings
}

// IsEmpty reports whether no bucket has an entry.
func (f Findings) IsEmpty() bool {
	return len(f.TrustedPrograms) == 0 &&
		len(f.UntrustedPrograms) == 0 &&
		len(f.TrustedAddresses) == 0 &&
		len(f.FlaggedAddresses) == 0
}

// HasWarnings reports whether any untrusted program or flagged address was
// found.
func (f Findings) HasWarnings() bool {
	return len(f.UntrustedPrograms) > 0 || len(f.FlaggedAddresses) > 0
}
