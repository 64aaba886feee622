package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/code-payments/txguard/pkg/explain"
	"github.com/code-payments/txguard/pkg/inspect"
	"github.com/code-payments/txguard/pkg/relay"
	"github.com/code-payments/txguard/pkg/solana"
	"github.com/code-payments/txguard/pkg/trustlist"
)

const stdinPath = "-"

type analyzeOptions struct {
	wire            bool
	trustListPath   string
	asJSON          bool
	explain         bool
	interactive     bool
	outputPath      string
	maxInstructions int
}

// Overridden in tests.
var (
	newExplainClient = func(configProvider explain.ConfigProvider) explain.Client {
		return explain.NewGroqClient(configProvider)
	}

	confirmExplain = func() (bool, error) {
		var confirm bool
		prompt := &survey.Confirm{
			Message: "Send the decoded transaction to the language model for an explanation?",
			Default: true,
		}
		if err := survey.AskOne(prompt, &confirm); err != nil {
			return false, err
		}
		return confirm, nil
	}
)

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Decode a transaction and check it against the trust lists.",
		Long: `Reads the transaction message relayed by the wallet extension as JSON, or with
--wire a base64 or base58 serialized transaction, from a file or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := stdinPath
			if len(args) > 0 {
				path = args[0]
			}
			return runAnalyze(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.wire, "wire", false, "input is a base64 or base58 serialized transaction")
	cmd.Flags().StringVar(&opts.trustListPath, "trust-list", "", "trust list yaml (defaults to the built in list)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the analysis as json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "ask the language model for an explanation")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "ask before requesting an explanation")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "write the transaction document to this path")
	cmd.Flags().IntVar(&opts.maxInstructions, "max-instructions", inspect.DefaultMaxInstructions, "reject messages with more instructions")

	return cmd
}

type analyzeResult struct {
	*inspect.Analysis

	Explanation      *explain.Explanation `json:"explanation,omitempty"`
	ExplanationError string               `json:"explanationError,omitempty"`
}

func runAnalyze(ctx context.Context, in io.Reader, out io.Writer, path string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	raw, err := readInput(in, path)
	if err != nil {
		return err
	}

	message, document, err := parseInput(raw, opts.wire)
	if err != nil {
		return err
	}

	lists, err := loadTrustList(opts.trustListPath)
	if err != nil {
		return err
	}

	analyzer := inspect.NewAnalyzer(inspect.NewDecoder(opts.maxInstructions))
	analysis, err := analyzer.Analyze(ctx, message, lists)
	if err != nil {
		return err
	}

	result := &analyzeResult{Analysis: analysis}

	wantsExplanation := opts.explain
	if opts.interactive {
		wantsExplanation, err = confirmExplain()
		if err != nil {
			return errors.Wrap(err, "failed to read answer")
		}
	}
	if wantsExplanation {
		configProvider := explain.WithEnvConfigs()
		explainer := explain.NewExplainer(newExplainClient(configProvider), configProvider)

		explanation, err := explainer.Explain(ctx, analysis.Records, analysis.Findings)
		if err != nil {
			result.ExplanationError = err.Error()
		} else {
			result.Explanation = explanation
		}
	}

	if len(opts.outputPath) > 0 {
		if err := writeDocument(opts.outputPath, document); err != nil {
			return err
		}
	}

	if opts.asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	renderAnalysis(out, result)
	return nil
}

func readInput(in io.Reader, path string) ([]byte, error) {
	if path == stdinPath {
		raw, err := io.ReadAll(in)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read stdin")
		}
		return raw, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return raw, nil
}

// parseInput returns the message and the transaction as it is written to the
// downloadable document.
func parseInput(raw []byte, wire bool) (solana.Message, []byte, error) {
	if wire {
		message, err := solana.ParseWireMessage(string(raw))
		if err != nil {
			return solana.Message{}, nil, err
		}

		document, err := json.Marshal(message)
		if err != nil {
			return solana.Message{}, nil, errors.Wrap(err, "failed to encode transaction")
		}
		return message, document, nil
	}

	message, err := solana.ParseRelayedMessage(raw)
	if err != nil {
		return solana.Message{}, nil, err
	}
	return message, raw, nil
}

func loadTrustList(path string) (*trustlist.Lists, error) {
	if len(path) == 0 {
		return trustlist.Default()
	}
	return trustlist.Load(path)
}

func writeDocument(path string, tx []byte) error {
	session := relay.Session{LatestTx: tx}
	document, err := session.Document()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, document, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func renderAnalysis(out io.Writer, result *analyzeResult) {
	fmt.Fprintln(out, titleStyle.Render("Transaction analysis"))

	fmt.Fprintln(out, headingStyle.Render("Instructions"))
	if len(result.Records) == 0 {
		fmt.Fprintln(out, promptStyle.Render("  no instructions"))
	}
	for _, record := range result.Records {
		switch typed := record.(type) {
		case *inspect.ProgramReference:
			fmt.Fprintf(out, "  program %s\n", typed.Program.ToBase58())
		case *inspect.TransferRecord:
			fmt.Fprintf(out, "  transfer %s SOL (%d lamports) from %s to %s\n", typed.Sol.String(), typed.Lamports, typed.Sender.ToBase58(), typed.Receiver.ToBase58())
		case *inspect.DecodeError:
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("  instruction %d could not be decoded: %s", typed.InstructionIndex, typed.Message)))
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, headingStyle.Render("Findings"))
	renderFindings(out, "trusted program", result.Findings.TrustedPrograms, false)
	renderFindings(out, "untrusted program", result.Findings.UntrustedPrograms, true)
	renderFindings(out, "trusted address", result.Findings.TrustedAddresses, false)
	renderFindings(out, "flagged address", result.Findings.FlaggedAddresses, true)
	if !result.Findings.HasWarnings() {
		fmt.Fprintln(out, safeStyle.Render("  no untrusted programs or flagged addresses"))
	}

	switch {
	case result.Explanation != nil:
		fmt.Fprintln(out)
		fmt.Fprintln(out, headingStyle.Render("Explanation"))
		renderExplanation(out, result.Explanation)
	case len(result.ExplanationError) > 0:
		fmt.Fprintln(out)
		fmt.Fprintln(out, warningStyle.Render("Explanation unavailable: "+result.ExplanationError))
	}
}

func renderFindings(out io.Writer, label string, findings []inspect.Finding, warn bool) {
	for _, finding := range findings {
		line := fmt.Sprintf("  %s: %s (%s)", label, finding.Description, finding.Address.ToBase58())
		if warn {
			fmt.Fprintln(out, warningStyle.Render("⚠️"+line))
		} else {
			fmt.Fprintln(out, line)
		}
	}
}

func renderExplanation(out io.Writer, explanation *explain.Explanation) {
	if !explanation.IsStructured() {
		fmt.Fprintln(out, strings.TrimSpace(explanation.Raw))
		return
	}

	switch explanation.SafetyLevel {
	case explain.SafetyLevelSafe:
		fmt.Fprintln(out, safeStyle.Render("  SAFE"))
	default:
		fmt.Fprintln(out, warningStyle.Render("  NOT SAFE"))
	}
	fmt.Fprintf(out, "  %s\n", explanation.Summary)
	fmt.Fprintln(out, promptStyle.Render("  "+explanation.Reasoning))
}
