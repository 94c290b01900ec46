package i18n

import "sync/atomic"

// Translator retrieves localized messages for issue codes.
// data provides optional metadata to embed in the message (for example,
// "field" or "format").
type Translator interface {
	Message(code string, data map[string]string) string
}

var catalogs = map[string]map[string]string{
	"en": {
		"type_hint_required":     "type hint required",
		"ambiguous_source":       "source format is ambiguous",
		"source_required":        "source format required",
		"unsupported_conversion": "unsupported conversion",
		"missing_required_field": "required field missing",
		"null_not_allowed":       "null not allowed",
		"type_mismatch":          "invalid type",
		"constraint_violation":   "constraint violated",
		"extra_field":            "unknown field",
		"serialization_error":    "serialization error",
		"parse_error":            "parse error",
		"duplicate_key":          "duplicate key",
	},
	"ja": {
		"type_hint_required":     "型の指定が必要です",
		"ambiguous_source":       "入力形式を特定できません",
		"source_required":        "入力形式の指定が必要です",
		"unsupported_conversion": "未対応の変換です",
		"missing_required_field": "必須フィールドが不足しています",
		"null_not_allowed":       "null は許可されていません",
		"type_mismatch":          "型が不正です",
		"constraint_violation":   "制約に違反しています",
		"extra_field":            "未知のフィールドです",
		"serialization_error":    "シリアライズエラー",
		"parse_error":            "解析エラー",
		"duplicate_key":          "キーが重複しています",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	if msg, ok := catalogs[t.lang][code]; ok {
		return msg
	}
	return code
}

type holder struct{ tr Translator }

var current atomic.Pointer[holder]

func init() { current.Store(&holder{tr: dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := catalogs[lang]; !ok {
		lang = "en"
	}
	current.Store(&holder{tr: dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(&holder{tr: tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return current.Load().tr.Message(code, data) }
