// Package trustlist loads the curated reference lists used to classify the
// programs and addresses a transaction touches.
package trustlist

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/code-payments/txguard/pkg/solana"
)

const (
	programSection = "program"
	addressSection = "address"
	hackersSection = "hackers"
	hackerSection  = "hacker"
)

var (
	ErrInvalidDocument = errors.New("invalid trust list document")
)

//go:embed default.yaml
var defaultDocument []byte

// Document is the on-disk form of a trust list. Each section maps a base58
// address to a human readable description. Absent sections are empty.
//
// Flagged addresses are accepted under both "hackers" and "hacker", and the two
// sections are merged into a single list checked against every address.
type Document struct {
	Program map[string]string `yaml:"program" json:"program"`
	Address map[string]string `yaml:"address" json:"address"`
	Hackers map[string]string `yaml:"hackers" json:"hackers"`
	Hacker  map[string]string `yaml:"hacker" json:"hacker"`
}

// Lists is a read-only set of trust lists. The zero value and a nil *Lists
// are both valid and empty.
type Lists struct {
	programs  map[string]string
	addresses map[string]string
	flagged   map[string]string

	// flaggedSections is the document section each flagged address came from.
	flaggedSections map[string]string
}

// New builds Lists from a document. The document's maps are copied, so later
// changes to it are not observed.
func New(doc Document) *Lists {
	l := &Lists{
		programs:  copyMap(doc.Program),
		addresses: copyMap(doc.Address),
		flagged:   copyMap(doc.Hacker),

		flaggedSections: make(map[string]string, len(doc.Hacker)+len(doc.Hackers)),
	}
	for address := range doc.Hacker {
		l.flaggedSections[address] = hackerSection
	}

	// "hackers" takes precedence when both sections describe an address.
	for address, description := range doc.Hackers {
		l.flagged[address] = description
		l.flaggedSections[address] = hackersSection
	}

	return l
}

// Empty returns Lists with no entries.
func Empty() *Lists {
	return New(Document{})
}

// Parse decodes a YAML or JSON trust list document. JSON is accepted since it
// is a subset of YAML.
func Parse(b []byte) (*Lists, error) {
	doc, err := ParseDocument(b)
	if err != nil {
		return nil, err
	}
	return New(*doc), nil
}

// ParseDocument decodes a document without building Lists from it.
func ParseDocument(b []byte) (*Document, error) {
	var doc Document
	if len(bytes.TrimSpace(b)) == 0 {
		return &doc, nil
	}

	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidDocument, err.Error())
	}
	return &doc, nil
}

// Read parses a document from r.
func Read(r io.Reader) (*Lists, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "error reading trust list")
	}
	return Parse(b)
}

// Load parses the document at path. An empty path loads the bundled default
// lists.
func Load(path string) (*Lists, error) {
	if len(path) == 0 {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening trust list %s", path)
	}
	defer f.Close()

	return Read(f)
}

// Default returns the lists bundled with the binary.
func Default() (*Lists, error) {
	return Parse(defaultDocument)
}

// TrustedProgram returns the description of a trusted program.
func (l *Lists) TrustedProgram(program solana.PublicKey) (string, bool) {
	if l == nil {
		return "", false
	}
	description, ok := l.programs[program.ToBase58()]
	return description, ok
}

// TrustedAddress returns the description of a trusted address.
func (l *Lists) TrustedAddress(address solana.PublicKey) (string, bool) {
	if l == nil {
		return "", false
	}
	description, ok := l.addresses[address.ToBase58()]
	return description, ok
}

// FlaggedAddress returns the description of an address known to be hostile.
func (l *Lists) FlaggedAddress(address solana.PublicKey) (string, bool) {
	if l == nil {
		return "", false
	}
	description, ok := l.flagged[address.ToBase58()]
	return description, ok
}

// Stats summarizes the size of each list.
type Stats struct {
	Programs  int
	Addresses int
	Flagged   int
}

func (l *Lists) Stats() Stats {
	if l == nil {
		return Stats{}
	}
	return Stats{
		Programs:  len(l.programs),
		Addresses: len(l.addresses),
		Flagged:   len(l.flagged),
	}
}

// InvalidEntry is a list entry whose key is not a valid base58 address. Such
// entries never match, since lookups are made with canonical addresses.
type InvalidEntry struct {
	Section string
	Key     string
}

// Validate reports entries that can never match a lookup, grouped by the
// document section they came from and sorted by key.
func (l *Lists) Validate() []InvalidEntry {
	if l == nil {
		return nil
	}

	var invalid []InvalidEntry
	for _, section := range []struct {
		name    string
		entries map[string]string
	}{
		{programSection, l.programs},
		{addressSection, l.addresses},
		{hackersSection, l.flaggedFrom(hackersSection)},
		{hackerSection, l.flaggedFrom(hackerSection)},
	} {
		var keys []string
		for key := range section.entries {
			if _, err := solana.PublicKeyFromBase58(key); err != nil {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)

		for _, key := range keys {
			invalid = append(invalid, InvalidEntry{Section: section.name, Key: key})
		}
	}
	return invalid
}

func (l *Lists) flaggedFrom(section string) map[string]string {
	entries := make(map[string]string)
	for address, description := range l.flagged {
		if l.flaggedSections[address] == section {
			entries[address] = description
		}
	}
	return entries
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
