package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazoode/flapi/pkg/config"
)

func TestCheckSQLInjection_Keywords(t *testing.T) {
	t.Parallel()

	flagged := []string{
		"SELECT * FROM users",
		"select 1",
		"1; DROP TABLE users",
		"union all",
		"please EXEC this",
		"cast here",
	}
	for _, v := range flagged {
		errs := CheckSQLInjection("f", v)
		require.Len(t, errs, 1, v)
		assert.Equal(t, "Potential SQL injection detected", errs[0].Message, v)
	}
}

func TestCheckSQLInjection_SubstringKeywordPasses(t *testing.T) {
	t.Parallel()

	// UPDATED contains UPDATE as a substring but not as a whole word.
	assert.Empty(t, CheckSQLInjection("f", "UPDATED"))
	assert.Empty(t, CheckSQLInjection("f", "my_selection"))
	assert.Empty(t, CheckSQLInjection("f", "inserted_at"))
}

func TestCheckSQLInjection_DangerousPatterns(t *testing.T) {
	t.Parallel()

	flagged := []string{
		"x'; rest",
		"value -- comment",
		"a /* b",
		"b */ c",
		"xp_cmdshell",
		"sp_help",
		"x OR 1=1",
		"x OR '1'='1",
		"x AND 1=1",
		"1=1",
		"1=2",
	}
	for _, v := range flagged {
		errs := CheckSQLInjection("f", v)
		require.Len(t, errs, 1, v)
	}
}

func TestCheckSQLInjection_QuoteNearOperator(t *testing.T) {
	t.Parallel()

	// Single quote within two characters of OR flags, even for legitimate
	// apostrophes such as "Thor's". Preserved legacy behavior.
	errs := CheckSQLInjection("f", "Thor's hammer")
	require.Len(t, errs, 1)

	errs = CheckSQLInjection("f", "x 'OR trailing")
	require.Len(t, errs, 1)

	assert.Empty(t, CheckSQLInjection("f", "plain value"))
	assert.Empty(t, CheckSQLInjection("f", "42"))
	assert.Empty(t, CheckSQLInjection("f", "it's fine"), "quote with no operator nearby passes")
}

func TestSQLInjection_RunsOncePerField(t *testing.T) {
	t.Parallel()

	fields := []config.RequestFieldConfig{{
		FieldName: "q",
		Validators: []config.ValidatorConfig{
			{Type: "string"},
			{Type: "string", Min: 1},
		},
	}}

	errs := ValidateRequestParameters(fields, map[string]string{"q": "DROP it"})
	require.Len(t, errs, 1, "injection check runs once even with several validators")
}

func TestSQLInjection_OptOut(t *testing.T) {
	t.Parallel()

	off := false
	fields := []config.RequestFieldConfig{{
		FieldName: "raw",
		Validators: []config.ValidatorConfig{
			{Type: "string", PreventSQLInjection: &off},
		},
	}}

	assert.Empty(t, ValidateRequestParameters(fields, map[string]string{"raw": "SELECT 1"}),
		"all validators opted out")

	on := true
	fields[0].Validators = append(fields[0].Validators,
		config.ValidatorConfig{Type: "string", PreventSQLInjection: &on})
	errs := ValidateRequestParameters(fields, map[string]string{"raw": "SELECT 1"})
	require.Len(t, errs, 1, "one opted-in validator re-enables the check")
}

func TestSQLInjection_NoValidatorsStillChecked(t *testing.T) {
	t.Parallel()

	fields := []config.RequestFieldConfig{{FieldName: "q"}}
	errs := ValidateRequestParameters(fields, map[string]string{"q": "DELETE FROM t"})
	require.Len(t, errs, 1)
}
