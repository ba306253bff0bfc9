// Package i18n holds the user-facing strings of the session pages and the
// localized validator messages. Supported locales are en and vi.
package i18n

import (
	"fmt"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/vi"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	vi_translations "github.com/go-playground/validator/v10/translations/vi"
	"golang.org/x/text/language"
)

// Message keys. Failure keys match domain.Failure strings so a failure can be
// rendered directly.
const (
	KeyInvalidCredentials = "invalid_credentials"
	KeyProfileUnavailable = "profile_unavailable"
	KeyRefreshFailed      = "refresh_failed"
	KeyNoSession          = "no_session"
	KeyForbidden          = "forbidden"
	KeyUnknown            = "unknown"
	KeyTooManyRequests    = "too_many_requests"
	KeyLoginTitle         = "login_title"
	KeyPhoneLabel         = "phone_label"
	KeyPasswordLabel      = "password_label"
	KeySubmit             = "submit"
)

var catalog = map[string]map[string]string{
	"en": {
		KeyInvalidCredentials: "Incorrect phone number or password.",
		KeyProfileUnavailable: "We could not load your profile. Please try again.",
		KeyRefreshFailed:      "Something went wrong. Please sign in again.",
		KeyNoSession:          "Please sign in to continue.",
		KeyForbidden:          "You do not have access to this resource.",
		KeyUnknown:            "Something went wrong.",
		KeyTooManyRequests:    "Too many attempts. Please wait a moment.",
		KeyLoginTitle:         "Sign in",
		KeyPhoneLabel:         "Phone number",
		KeyPasswordLabel:      "Password",
		KeySubmit:             "Sign in",
	},
	"vi": {
		KeyInvalidCredentials: "Số điện thoại hoặc mật khẩu không đúng.",
		KeyProfileUnavailable: "Không thể tải thông tin tài khoản. Vui lòng thử lại.",
		KeyRefreshFailed:      "Đã có lỗi xảy ra. Vui lòng đăng nhập lại.",
		KeyNoSession:          "Vui lòng đăng nhập để tiếp tục.",
		KeyForbidden:          "Bạn không có quyền truy cập tài nguyên này.",
		KeyUnknown:            "Đã có lỗi xảy ra.",
		KeyTooManyRequests:    "Bạn thao tác quá nhiều lần. Vui lòng đợi trong giây lát.",
		KeyLoginTitle:         "Đăng nhập",
		KeyPhoneLabel:         "Số điện thoại",
		KeyPasswordLabel:      "Mật khẩu",
		KeySubmit:             "Đăng nhập",
	},
}

// Translator resolves a request's Accept-Language to one of the supported
// locales.
type Translator struct {
	uni      *ut.UniversalTranslator
	fallback ut.Translator
	matcher  language.Matcher
	locales  []string
}

// New builds the translator, registering the message catalog and the
// validator's default translations for every locale.
func New(defaultLocale string, v *validator.Validate) (*Translator, error) {
	supported := map[string]locales.Translator{"en": en.New(), "vi": vi.New()}
	def, ok := supported[defaultLocale]
	if !ok {
		defaultLocale, def = "en", supported["en"]
	}

	// The default locale goes first so the matcher falls back to it.
	order := []string{defaultLocale}
	for name := range supported {
		if name != defaultLocale {
			order = append(order, name)
		}
	}
	tags := make([]language.Tag, 0, len(order))
	others := make([]locales.Translator, 0, len(order))
	for _, name := range order {
		tags = append(tags, language.Make(name))
		others = append(others, supported[name])
	}

	uni := ut.New(def, others...)
	for _, name := range order {
		trans, _ := uni.GetTranslator(name)
		for key, text := range catalog[name] {
			if err := trans.Add(key, text, false); err != nil {
				return nil, fmt.Errorf("i18n: add %s/%s: %w", name, key, err)
			}
		}
		if v != nil {
			if err := registerValidator(name, v, trans); err != nil {
				return nil, fmt.Errorf("i18n: validator translations for %s: %w", name, err)
			}
		}
	}

	fallback, _ := uni.GetTranslator(defaultLocale)
	return &Translator{
		uni:      uni,
		fallback: fallback,
		matcher:  language.NewMatcher(tags),
		locales:  order,
	}, nil
}

func registerValidator(locale string, v *validator.Validate, trans ut.Translator) error {
	switch locale {
	case "vi":
		return vi_translations.RegisterDefaultTranslations(v, trans)
	default:
		return en_translations.RegisterDefaultTranslations(v, trans)
	}
}

// For picks the translator for an Accept-Language header value.
func (t *Translator) For(acceptLanguage string) ut.Translator {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(tags...)
	if conf == language.No {
		return t.fallback
	}
	trans, found := t.uni.GetTranslator(t.locales[idx])
	if !found {
		return t.fallback
	}
	return trans
}

// Message renders key in trans, falling back to the default locale and then
// to the key itself.
func (t *Translator) Message(trans ut.Translator, key string) string {
	if trans != nil {
		if s, err := trans.T(key); err == nil {
			return s
		}
	}
	if s, err := t.fallback.T(key); err == nil {
		return s
	}
	return key
}
