package cfgerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		code string
		want string
	}{
		{
			name: "not found",
			err:  NotFound("MessagingPolicy", "TestMsgPol"),
			code: "CWLNA0136",
			want: "The item or object cannot be found. Type: MessagingPolicy Name: TestMsgPol",
		},
		{
			name: "invalid value quotes integers",
			err:  InvalidValue("TraceBackupCount", "", "TraceBackupCount", "0"),
			code: "CWLNA0112",
			want: `The property value is not valid: Property: TraceBackupCount Value: "0".`,
		},
		{
			name: "invalid type",
			err:  InvalidType("MessagingPolicy", "p", "MaxMessages", "JSON_STRING"),
			code: "CWLNA0127",
			want: "The property type is not valid. Object: MessagingPolicy Name: p Property: MaxMessages Type: JSON_STRING",
		},
		{
			name: "missing group",
			err:  MissingRequiredGroup("MessagingPolicy", "p", []string{"ClientAddress", "UserID"}),
			code: "CWLNA0139",
			want: "The object: MessagingPolicy must have one of the properties ClientAddress,UserID specified",
		},
		{
			name: "in use",
			err:  InUse("CRLProfile", "crl", "SecurityProfile", "sec"),
			code: "CWLNA0376",
			want: "The Object: CRLProfile, Name: crl is still being used by Object: SecurityProfile, Name: sec",
		},
		{
			name: "list too long has no grouping",
			err:  ListTooLong("MessagingPolicy", "p", "ClientAddress", 1000),
			code: "CWLNA0371",
			want: "The number of client addresses exceeds the maximum number allowed: 1000.",
		},
		{
			name: "conditional certificate profile",
			err:  MissingConditional(CodeNeedCertProfile, "SecurityProfile", "sp", "CertificateProfile", ""),
			code: "CWLNA0186",
			want: "The certificate profile must be set if TLSEnabled is true.",
		},
		{
			name: "conditional default code",
			err:  MissingConditional("", "SecurityProfile", "sp", "UseClientCertificate", "false"),
			code: "CWLNA0134",
			want: "The value specified for the required property is invalid or null. Property: UseClientCertificate Value: false.",
		},
		{
			name: "invalid call",
			err:  InvalidShape(`"SecurityProfile":null`),
			code: "CWLNA0137",
			want: `The REST API call: "SecurityProfile":null is not valid.`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKind_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound("A", "b").Status())
	assert.Equal(t, http.StatusForbidden, Unsupported("AdminEndpoint").Status())
	assert.Equal(t, http.StatusConflict, AlreadyExists("A", "b").Status())
	assert.Equal(t, http.StatusBadRequest, InUse("A", "b", "C", "d").Status())
	assert.Equal(t, http.StatusInternalServerError, Internal(errors.New("x")).Status())
}

func TestErrorsIsKind(t *testing.T) {
	err := fmt.Errorf("delete: %w", NotFound("Queue", "q1"))
	assert.True(t, errors.Is(err, KindNotFound))
	assert.False(t, errors.Is(err, KindInUse))

	ce := As(err)
	assert.Equal(t, "Queue", ce.Object)
}

func TestAs_WrapsUnclassified(t *testing.T) {
	cause := errors.New("disk full")
	ce := As(cause)
	assert.Equal(t, KindInternal, ce.Kind)
	assert.ErrorIs(t, ce, cause)
	assert.Nil(t, As(nil))
}
