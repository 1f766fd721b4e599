package internal

import "sort"

// Key identifies a property of a wax record. Canonical keys are listed below;
// unrecognized labels fall back to their compacted raw form.
type Key string

const (
	DropMeltingPoint    Key = "DropMeltingPoint"
	Penetration25C      Key = "Penetration25C"
	Density23C          Key = "Density23C"
	Viscosity135C       Key = "Viscosity135C"
	CongealingPoint     Key = "CongealingPoint"
	OilContent          Key = "OilContent"
	AcidValue           Key = "AcidValue"
	SaponificationValue Key = "SaponificationValue"
	Type                Key = "Type"
)

var CanonicalKeys = []Key{
	DropMeltingPoint, Penetration25C, Density23C, Viscosity135C,
	CongealingPoint, OilContent, AcidValue, SaponificationValue, Type,
}

// TextKeys keep their raw string value instead of being parsed as numbers.
var TextKeys = map[Key]struct{}{Type: {}}

func IsTextKey(k Key) bool {
	_, ok := TextKeys[k]
	return ok
}

func IsCanonical(k Key) bool {
	for _, c := range CanonicalKeys {
		if c == k {
			return true
		}
	}
	return false
}

type SourceKind string

const (
	SourcePDF   SourceKind = "pdf"
	SourceXLSX  SourceKind = "xlsx"
	SourceCSV   SourceKind = "csv"
	SourceHTML  SourceKind = "html"
	SourceEmail SourceKind = "email"
	SourceImage SourceKind = "image"
	SourceText  SourceKind = "text"
)

// Document is the decoded form of one spec sheet: table rows and/or text lines.
type Document struct {
	SourceFile string
	Kind       SourceKind
	Rows       [][]string
	Lines      []string
}

type RawField struct {
	Label string
	Value string
}

type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyTabular Strategy = "tabular"
	StrategyHeader  Strategy = "header"
	StrategyLines   Strategy = "lines"
	StrategyMerged  Strategy = "merged"
	StrategyManual  Strategy = "manual"
)

type Fields struct {
	Numeric map[Key]float64
	Text    map[Key]string
}

func NewFields() Fields {
	return Fields{Numeric: map[Key]float64{}, Text: map[Key]string{}}
}

func (f Fields) Len() int {
	return len(f.Numeric) + len(f.Text)
}

// Merge copies every value of other into f, overwriting shared keys.
func (f Fields) Merge(other Fields) {
	for k, v := range other.Numeric {
		delete(f.Text, k)
		f.Numeric[k] = v
	}
	for k, v := range other.Text {
		delete(f.Numeric, k)
		f.Text[k] = v
	}
}

type Outcome struct {
	Name        string  `json:"name"`
	Property    Key     `json:"property"`
	Matched     bool    `json:"matched"`
	Points      int     `json:"points"`
	UsedDefault bool    `json:"usedDefault"`
	Value       *string `json:"value,omitempty"`
}

type ScoreResult struct {
	Score    int       `json:"score"`
	Outcomes []Outcome `json:"outcomes"`
}

type WaxRecord struct {
	SourceFile string          `json:"sourceFile"`
	Score      int             `json:"score"`
	Numeric    map[Key]float64 `json:"numeric"`
	Text       map[Key]string  `json:"text"`
	Strategy   Strategy        `json:"strategy"`
	Outcomes   []Outcome       `json:"outcomes,omitempty"`
}

func (r WaxRecord) Number(k Key) (float64, bool) {
	v, ok := r.Numeric[k]
	return v, ok
}

func (r WaxRecord) String(k Key) (string, bool) {
	v, ok := r.Text[k]
	return v, ok
}

// Keys returns every populated property key in a stable order: canonical keys
// first, then fallback keys alphabetically.
func (r WaxRecord) Keys() []Key {
	seen := map[Key]struct{}{}
	out := []Key{}
	for _, k := range CanonicalKeys {
		_, n := r.Numeric[k]
		_, t := r.Text[k]
		if n || t {
			out = append(out, k)
			seen[k] = struct{}{}
		}
	}
	extra := []Key{}
	for k := range r.Numeric {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	for k := range r.Text {
		if _, ok := seen[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Rank orders records by score, highest first. Ties keep their input order.
func Rank(records []WaxRecord) {
	sort.SliceStable(records, func(i, j int) bool { return records[i].Score > records[j].Score })
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	ID        string
	Origin    string
	Documents int
	Failed    int
	CreatedAt string
}
