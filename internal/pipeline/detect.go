package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"waxscore/internal/alias"
	"waxscore/internal/util"
)

type DetectResult struct {
	IsSpecSheet bool
	Score       float64
	Reason      string
}

var detectKeywords = []string{
	"datasheet", "data sheet", "spec sheet", "specification", "tds", "coa", "certificate of analysis",
	"datenblatt", "technisches merkblatt", "produktdatenblatt", "analysenzertifikat", "wachs", "wax",
}

var sheetExtensions = map[string]struct{}{
	".pdf": {}, ".xlsx": {}, ".xlsm": {}, ".csv": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".tif": {}, ".tiff": {},
}

// DetectSpecSheet scores a mail by keywords, property labels found in its body
// and attachment types. Property labels are matched through the alias table so
// a body quoting "Tropfpunkt" or "Drop point" counts as evidence.
func DetectSpecSheet(table *alias.Table, subject, text string, attachmentNames []string) DetectResult {
	subject = util.FoldAccents(subject)
	text = util.FoldAccents(text)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.25
		}
		if strings.Contains(text, kw) {
			score += 0.1
		}
	}

	labelHits := 0
	if table != nil {
		for _, line := range util.SplitLines(text) {
			label, _, ok := splitLine(line)
			if ok && table.Recognized(label) {
				labelHits++
			}
		}
	}
	switch {
	case labelHits >= 2:
		score += 0.5
	case labelHits == 1:
		score += 0.2
	}

	for _, name := range attachmentNames {
		if _, ok := sheetExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			score += 0.25
			break
		}
	}
	if score > 1 {
		score = 1
	}

	isSheet := score >= 0.45
	reason := "rules_negative"
	if isSheet {
		reason = "rules_positive"
	}
	return DetectResult{IsSpecSheet: isSheet, Score: score, Reason: reason}
}

// DetectSpecSheetMail reads subject, text body and attachment names from a
// raw message and runs DetectSpecSheet over them.
func DetectSpecSheetMail(table *alias.Table, raw []byte, fallbackSubject string) (DetectResult, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return DetectResult{}, err
	}
	names := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		names = append(names, att.FileName)
	}
	subject := env.GetHeader("Subject")
	if strings.TrimSpace(subject) == "" {
		subject = fallbackSubject
	}
	return DetectSpecSheet(table, subject, env.Text, names), nil
}
