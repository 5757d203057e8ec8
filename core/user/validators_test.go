package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/edupulse/core"
)

func Test_checkPassword(t *testing.T) {
	tests := []struct {
		name string
		pwd  string
		want string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 123!", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", want: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefg123", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefg123!", want: pwdComplexityTag},
		{name: "similar to username", pwd: "Principal1!", want: pwdAttrSimTag},
		{name: "common", pwd: "Welcome123!", want: pwdNoCommonTag},
		{name: "valid", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, "Ada", "principal", "ada@school.test"); got != tt.want {
				t.Errorf("checkPassword(%q) = %q, want %q", tt.pwd, got, tt.want)
			}
		})
	}
}

func TestRegisterValidators(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	RegisterValidators(validate, translator)

	nu := NewUser{Name: "Ada", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x", Roles: []string{"janitor:"}}
	err := validate.Struct(nu)
	require.Error(t, err)

	fields := make(map[string]string)
	for _, fe := range err.(validator.ValidationErrors) {
		fields[fe.Field()] = fe.Translate(translator)
	}
	assert.Equal(t, map[string]string{
		"roles":    allRolesText,
		"username": usernameOrEmailText,
		"email":    usernameOrEmailText,
	}, fields)

	nu.Roles = []string{RoleStaff}
	nu.Email = "ada@school.test"
	assert.NoError(t, validate.Struct(nu))
}

func TestPrimaryRole(t *testing.T) {
	tests := []struct {
		roles []string
		want  string
	}{
		{roles: nil, want: ""},
		{roles: []string{RoleExecutive}, want: "executive"},
		{roles: []string{RoleExecutive, RoleStaff}, want: "staff"},
		{roles: []string{RoleStaff, RoleAdminOwner}, want: "admin"},
		{roles: []string{"bogus:"}, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PrimaryRole(tt.roles), tt.roles)
	}
}
