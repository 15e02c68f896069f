// Package validator provides the request validator used by gin binding,
// with JSON field names and English/Chinese error messages.
package validator

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// TagNotBlank rejects strings that are empty after trimming whitespace.
const TagNotBlank = "notblank"

// Validator wraps go-playground/validator with translators.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	global     *Validator
	globalOnce sync.Once
	installed  sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// Install makes the global validator the gin binding validator. It is safe
// to call more than once.
func Install() {
	installed.Do(func() {
		binding.Validator = Global()
	})
}

// New creates a Validator with the default rules and translations.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator),
	}
	v.validate.SetTagName("binding")

	// 错误信息中使用 JSON 字段名
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	_ = v.validate.RegisterValidation(TagNotBlank, notBlank)
	registerTranslation(v.validate, enTrans, TagNotBlank, "{0} must not be blank")
	registerTranslation(v.validate, zhTrans, TagNotBlank, "{0}不能为空白")

	return v
}

func notBlank(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return true
	}
	return strings.IndexFunc(f.String(), func(r rune) bool { return !unicode.IsSpace(r) }) >= 0
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// ValidateStruct implements binding.StructValidator. Non-struct values are
// accepted as is.
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	val := reflect.ValueOf(obj)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}
	return v.validate.Struct(obj)
}

// Engine implements binding.StructValidator.
func (v *Validator) Engine() any {
	return v.validate
}

// Translate renders validation errors in lang, joined by "; ". Other
// errors are returned as their message.
func (v *Validator) Translate(err error, lang string) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}

	trans, ok := v.trans[lang]
	if !ok {
		trans = v.trans[LangEN]
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return strings.Join(msgs, "; ")
}

// LangFromHeader picks LangZH for an Accept-Language that prefers Chinese
// and LangEN otherwise.
func LangFromHeader(acceptLanguage string) string {
	first := strings.TrimSpace(strings.SplitN(acceptLanguage, ",", 2)[0])
	if strings.HasPrefix(strings.ToLower(first), LangZH) {
		return LangZH
	}
	return LangEN
}
