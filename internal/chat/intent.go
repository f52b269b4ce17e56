package chat

import "strings"

type intent string

const (
	intentReserve intent = "reserve"
	intentCancel  intent = "cancel"
	intentList    intent = "list"
	intentNone    intent = ""
)

type intentRule struct {
	intent   intent
	patterns []string
}

// intentRules is evaluated in order, first match wins. Cancellation and
// listing come before reservation so compound inputs like 予約キャンセル
// or 予約確認 resolve to the more specific intent.
var intentRules = []intentRule{
	{intent: intentCancel, patterns: []string{"キャンセル", "取消", "cancel"}},
	{intent: intentList, patterns: []string{"確認", "一覧", "list"}},
	{intent: intentReserve, patterns: []string{"予約", "reserve"}},
}

// classifyIntent matches free text against the fixed phrase table by
// substring; this is deliberate pattern matching, not NLU.
func classifyIntent(text string) intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range intentRules {
		for _, p := range rule.patterns {
			if strings.Contains(normalized, p) {
				return rule.intent
			}
		}
	}
	return intentNone
}

// isYes and isNo recognize the confirmation vocabulary.
func isYes(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "はい" || t == "yes" || t == "y"
}

func isNo(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "いいえ" || t == "no" || t == "n"
}
