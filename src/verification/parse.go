package verification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/stake-plus/validai/src/types"
)

const (
	placeholderExplanation = "The provider did not include an explanation."
	placeholderTemporal    = "Temporal context not determined."
	placeholderBias        = "No bias analysis provided."
	placeholderObservation = "No additional observations."
)

// Answer is the reasoning provider output after normalization.
type Answer struct {
	Classification  types.Classification
	Confidence      int
	ConfidenceRaw   float64
	Clamped         bool
	Explanation     string
	TemporalContext string
	DetectedBias    string
	Observations    string
	Sources         []types.SourceInfo
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// fold lowercases, strips Portuguese accents and joins words with underscores.
func fold(s string) string {
	s = accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
	s = strings.Trim(s, "[]*\"'`.:;,()- ")
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}

var classificationAliases = map[string]types.Classification{
	"true":                    types.ClassificationTrue,
	"verdadeiro":              types.ClassificationTrue,
	"verdadeira":              types.ClassificationTrue,
	"false":                   types.ClassificationFalse,
	"falso":                   types.ClassificationFalse,
	"falsa":                   types.ClassificationFalse,
	"partially_true":          types.ClassificationPartiallyTrue,
	"partly_true":             types.ClassificationPartiallyTrue,
	"half_true":               types.ClassificationPartiallyTrue,
	"parcialmente_verdadeiro": types.ClassificationPartiallyTrue,
	"parcialmente_verdadeira": types.ClassificationPartiallyTrue,
	"not_verifiable":          types.ClassificationNotVerifiable,
	"unverifiable":            types.ClassificationNotVerifiable,
	"nao_verificavel":         types.ClassificationNotVerifiable,
	"inverificavel":           types.ClassificationNotVerifiable,
	"impossivel_verificar":    types.ClassificationNotVerifiable,
}

// ParseClassification maps a provider label onto the closed verdict set.
func ParseClassification(label string) (types.Classification, bool) {
	c, ok := classificationAliases[fold(label)]
	return c, ok
}

var fieldAliases = map[string]string{
	"classification":        "classification",
	"classificacao":         "classification",
	"verdict":               "classification",
	"confidence_percentage": "confidence",
	"confidence":            "confidence",
	"confianca":             "confidence",
	"explanation":           "explanation",
	"explicacao":            "explanation",
	"temporal_context":      "temporal_context",
	"context":               "temporal_context",
	"contexto":              "temporal_context",
	"contexto_temporal":     "temporal_context",
	"detected_bias":         "detected_bias",
	"bias":                  "detected_bias",
	"vies":                  "detected_bias",
	"vies_detectado":        "detected_bias",
	"sources":               "sources",
	"fontes":                "sources",
	"observations":          "observations",
	"observacoes":           "observations",
}

var preferredKeys = map[string]string{
	"classification":   "classification",
	"confidence":       "confidence_percentage",
	"explanation":      "explanation",
	"temporal_context": "temporal_context",
	"detected_bias":    "detected_bias",
	"sources":          "sources",
	"observations":     "observations",
}

// ParseAnswer turns the provider text into an Answer. It accepts a JSON object, optionally
// fenced or wrapped in prose, and falls back to "LABEL: value" lines.
func ParseAnswer(text string) (*Answer, error) {
	fields, sources, ok := decodeJSONAnswer(text)
	if !ok {
		fields, sources, ok = decodeLabelledAnswer(text)
	}
	if !ok {
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "provider answer has no recognizable structure"}
	}

	label, ok := fields["classification"]
	if !ok || strings.TrimSpace(label) == "" {
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "provider answer has no classification"}
	}
	classification, ok := ParseClassification(label)
	if !ok {
		return nil, &VerificationError{
			Code:    CodeUnparseableClassification,
			Message: fmt.Sprintf("unknown classification label %q", truncateRunes(label, 64)),
		}
	}

	rawConfidence, ok := fields["confidence"]
	if !ok {
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "provider answer has no confidence"}
	}
	value, err := parseConfidence(rawConfidence)
	if err != nil {
		return nil, &VerificationError{Code: CodeMalformedAnswer, Message: "provider confidence is not a number", Err: err}
	}
	confidence, clamped := clampPercentage(value)

	return &Answer{
		Classification:  classification,
		Confidence:      confidence,
		ConfidenceRaw:   value,
		Clamped:         clamped,
		Explanation:     orPlaceholder(fields["explanation"], placeholderExplanation),
		TemporalContext: orPlaceholder(fields["temporal_context"], placeholderTemporal),
		DetectedBias:    orPlaceholder(fields["detected_bias"], placeholderBias),
		Observations:    orPlaceholder(fields["observations"], placeholderObservation),
		Sources:         sources,
	}, nil
}

func orPlaceholder(v, placeholder string) string {
	if strings.TrimSpace(v) == "" {
		return placeholder
	}
	return strings.TrimSpace(v)
}

// stripFences removes a leading ```json fence and its closing fence.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	if end := strings.LastIndex(t, "```"); end >= 0 {
		t = t[:end]
	}
	return strings.TrimSpace(t)
}

func decodeJSONAnswer(text string) (map[string]string, []types.SourceInfo, bool) {
	t := stripFences(text)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return nil, nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(t[start:end+1]), &raw); err != nil {
		return nil, nil, false
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	// The documented key wins over its aliases; among aliases the first in key order wins.
	chosen := map[string]string{}
	for _, key := range keys {
		if isNullJSON(raw[key]) {
			continue
		}
		folded := fold(key)
		canonical, ok := fieldAliases[folded]
		if !ok {
			continue
		}
		if prev, seen := chosen[canonical]; seen && (fold(prev) == preferredKeys[canonical] || folded != preferredKeys[canonical]) {
			continue
		}
		chosen[canonical] = key
	}

	fields := map[string]string{}
	var sources []types.SourceInfo
	for canonical, key := range chosen {
		if canonical == "sources" {
			sources = decodeSources(raw[key])
			continue
		}
		if s, ok := rawToString(raw[key]); ok {
			fields[canonical] = s
		}
	}
	if len(fields) == 0 {
		return nil, nil, false
	}
	return fields, sources, true
}

func isNullJSON(val json.RawMessage) bool {
	val = bytes.TrimSpace(val)
	return len(val) == 0 || string(val) == "null"
}

func rawToString(val json.RawMessage) (string, bool) {
	val = bytes.TrimSpace(val)
	if len(val) == 0 || string(val) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(val, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	var list []string
	if err := json.Unmarshal(val, &list); err == nil {
		return strings.Join(list, "\n"), true
	}
	return string(val), true
}

func decodeSources(val json.RawMessage) []types.SourceInfo {
	var items []json.RawMessage
	if err := json.Unmarshal(val, &items); err != nil {
		return nil
	}
	out := make([]types.SourceInfo, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if src, ok := sourceFromLine(s); ok {
				out = append(out, src)
			}
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		var src types.SourceInfo
		for key, v := range obj {
			str, _ := rawToString(v)
			switch fold(key) {
			case "name", "nome", "title", "titulo", "source", "fonte":
				src.Name = strings.TrimSpace(str)
			case "url", "link":
				src.URL = strings.TrimSpace(str)
			case "description", "descricao", "summary", "resumo":
				src.Description = strings.TrimSpace(str)
			case "year", "ano":
				if y, err := strconv.Atoi(strings.TrimSpace(str)); err == nil && y > 0 {
					src.Year = &y
				}
			case "reliability_score", "reliability", "confiabilidade":
				if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil && f >= 0 && f <= 100 {
					score := int(math.Round(f))
					src.ReliabilityScore = &score
				}
			}
		}
		if src.Name == "" && src.URL == "" && src.Description == "" {
			continue
		}
		out = append(out, src)
	}
	return out
}

var (
	labelLine = regexp.MustCompile(`^\s*[-*#•]*\s*\**([A-Za-zÀ-ÿ _]+?)\**\s*:\s*(.*)$`)
	urlRe     = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
)

func decodeLabelledAnswer(text string) (map[string]string, []types.SourceInfo, bool) {
	fields := map[string]string{}
	var sources []types.SourceInfo
	current := ""
	var buf []string

	flush := func() {
		if current == "" {
			return
		}
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if current == "sources" {
			for _, line := range buf {
				if src, ok := sourceFromLine(line); ok {
					sources = append(sources, src)
				}
			}
		} else if body != "" {
			fields[current] = body
		}
		buf = nil
	}

	for _, line := range strings.Split(stripFences(text), "\n") {
		if m := labelLine.FindStringSubmatch(line); m != nil {
			if canonical, ok := fieldAliases[fold(m[1])]; ok {
				flush()
				current = canonical
				if v := strings.TrimSpace(strings.TrimLeft(m[2], "*")); v != "" {
					buf = append(buf, v)
				}
				continue
			}
		}
		if current != "" {
			buf = append(buf, line)
		}
	}
	flush()
	if len(fields) == 0 {
		return nil, nil, false
	}
	return fields, sources, true
}

// sourceFromLine reads "Name - https://url" style bullet lines.
func sourceFromLine(line string) (types.SourceInfo, bool) {
	line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•0123456789.) "))
	if line == "" {
		return types.SourceInfo{}, false
	}
	src := types.SourceInfo{}
	if u := urlRe.FindString(line); u != "" {
		src.URL = strings.TrimRight(u, ".,;")
		line = strings.TrimSpace(strings.Replace(line, u, "", 1))
		line = strings.Trim(line, " -–:()[]")
	}
	src.Name = line
	if src.Name == "" && src.URL == "" {
		return types.SourceInfo{}, false
	}
	return src, true
}

func parseConfidence(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	hasPercent := strings.Contains(s, "%")
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	s = strings.ReplaceAll(s, ",", ".")
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("confidence %q is not finite", raw)
	}
	// A fraction like 0.85 means 85%.
	if !hasPercent && f > 0 && f < 1 {
		f *= 100
	}
	return f, nil
}

// clampPercentage rounds and forces a value into 0..100, reporting whether it moved.
func clampPercentage(f float64) (int, bool) {
	n := int(math.Round(f))
	switch {
	case n < 0:
		return 0, true
	case n > 100:
		return 100, true
	}
	return n, false
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
