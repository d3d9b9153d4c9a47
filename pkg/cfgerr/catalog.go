package cfgerr

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message codes.
const (
	CodeSuccess          = "CWLNA6011"
	CodeInternal         = "CWLNA0001"
	CodeNullObject       = "CWLNA0108"
	CodeBadPropertyValue = "CWLNA0112"
	CodeArgNotValid      = "CWLNA0115"
	CodeBadUnicode       = "CWLNA0122"
	CodeBadPropertyType  = "CWLNA0127"
	CodeAlreadyExists    = "CWLNA0130"
	CodeNameTooLong      = "CWLNA0133"
	CodeRequiredProperty = "CWLNA0134"
	CodeNotFound         = "CWLNA0136"
	CodeInvalidCall      = "CWLNA0137"
	CodeBadPropertyName  = "CWLNA0138"
	CodeMissingGroup     = "CWLNA0139"
	CodeValueTooLong     = "CWLNA0144"
	CodeTooManyAddresses = "CWLNA0371"
	CodeDeleteNotAllowed = "CWLNA0372"
	CodeInUse            = "CWLNA0376"
	CodeNeedCertProfile  = "CWLNA0186"
)

// All arguments are passed as strings so the printer never applies locale
// number grouping to values.
var messages = map[string]string{
	CodeSuccess:          "The requested configuration change has completed successfully.",
	CodeInternal:         "The requested configuration change has failed because of an internal error.",
	CodeNullObject:       "A null object is not allowed.",
	CodeBadPropertyValue: "The property value is not valid: Property: %s Value: \"%s\".",
	CodeArgNotValid:      "An argument is not valid: Name: %s.",
	CodeBadUnicode:       "The Unicode value is not valid.",
	CodeBadPropertyType:  "The property type is not valid. Object: %s Name: %s Property: %s Type: %s",
	CodeAlreadyExists:    "The object already exists. Type: %s Name: %s",
	CodeNameTooLong:      "The name of the configuration object is too long. Object: %s Property: Name Value: %s.",
	CodeRequiredProperty: "The value specified for the required property is invalid or null. Property: %s Value: %s.",
	CodeNotFound:         "The item or object cannot be found. Type: %s Name: %s",
	CodeInvalidCall:      "The REST API call: %s is not valid.",
	CodeBadPropertyName:  "The property name is invalid. Object: %s Name: %s Property: %s",
	CodeMissingGroup:     "The object: %s must have one of the properties %s specified",
	CodeValueTooLong:     "The value that is specified for the property on the configuration object is too long. Object: %s Property: %s Value: %s.",
	CodeTooManyAddresses: "The number of client addresses exceeds the maximum number allowed: %s.",
	CodeDeleteNotAllowed: "Delete is not allowed for %s object.",
	CodeInUse:            "The Object: %s, Name: %s is still being used by Object: %s, Name: %s",
	CodeNeedCertProfile:  "The certificate profile must be set if TLSEnabled is true.",
}

var printer = newPrinter()

func newPrinter() *message.Printer {
	b := catalog.NewBuilder()
	for code, format := range messages {
		if err := b.SetString(language.English, code, format); err != nil {
			panic("cfgerr: invalid catalog entry " + code + ": " + err.Error())
		}
	}
	return message.NewPrinter(language.English, message.Catalog(b))
}

// Message renders the catalog text for code.
func Message(code string, args ...string) string {
	a := make([]any, len(args))
	for i, s := range args {
		a[i] = s
	}
	return printer.Sprintf(code, a...)
}
