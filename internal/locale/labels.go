package locale

import "golang.org/x/text/language"

var supported = []language.Tag{
	language.English,
	language.Indonesian,
	language.Hebrew,
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

var notSubmitted = map[language.Tag]string{
	language.English:    "Not submitted",
	language.Indonesian: "Belum dikumpulkan",
	language.Hebrew:     "לא הוגש",
	language.Arabic:     "لم يتم التسليم",
}

// NotSubmittedLabel returns the histogram label for users still working on the
// quiz in the best supported language of an Accept-Language header.
func NotSubmittedLabel(acceptLanguage string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, idx, _ := matcher.Match(tags...)
	return notSubmitted[supported[idx]]
}
