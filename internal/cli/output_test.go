package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdb/internal/kv"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]int{"value": 7000}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeNotFound, "token not present", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "token not present", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error(CodeStorage, "statement failed", map[string]string{"table": "crypto_values"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_STORAGE]")
	assert.Contains(t, buf.String(), "statement failed")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"table": "crypto_values"}
	err := formatter.Error(CodeStorage, "statement failed", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E_STORAGE]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Print(map[string]int{"value": 1}, "7000"))
	assert.Equal(t, "7000\n", buf.String())

	buf.Reset()
	formatter.Format = "json"
	require.NoError(t, formatter.Print(map[string]int{"value": 1}, "7000"))
	assert.JSONEq(t, `{"status":"ok","data":{"value":1}}`, buf.String())
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	cause := &kv.NotFoundError{Token: "dogecoin"}
	err := formatter.Fail(CodeNotFound, ExitFailure, "QueryTokenValue failed", cause)
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitFailure, exitErr.Code)
	assert.True(t, exitErr.Reported)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.Equal(t, `QueryTokenValue failed: token "dogecoin" not present`, resp.Error.Message)
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			errBuf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    buf,
				ErrWriter: errBuf,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("flow %s seq %d", "test-flow-0001", 1)

			assert.Empty(t, buf.String(), "verbose logs never corrupt stdout")
			if tt.wantLog {
				assert.Contains(t, errBuf.String(), "flow test-flow-0001 seq 1")
			} else {
				assert.Empty(t, errBuf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad"))))
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "bad", NewExitError(ExitFailure, "bad").Error())
	assert.Equal(t, "bad: boom", WrapExitError(ExitFailure, "bad", errors.New("boom")).Error())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		wantCode string
		wantExit int
	}{
		{&kv.NotFoundError{Token: "a"}, CodeNotFound, ExitFailure},
		{&kv.DuplicateKeyError{Token: "a"}, CodeDuplicate, ExitFailure},
		{&kv.StorageError{Op: "get", Table: "t", Err: kv.ErrMultipleRows}, CodeStorage, ExitCommandError},
		{errors.New("commit failed"), CodeStorage, ExitCommandError},
	}

	for _, tt := range tests {
		code, exit := classify(tt.err)
		assert.Equal(t, tt.wantCode, code, "%v", tt.err)
		assert.Equal(t, tt.wantExit, exit, "%v", tt.err)
	}
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    CodeConfig,
		Message: "invalid configuration",
		Details: []string{"not_found: 2 errors in empty disjunction"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E_CONFIG", decoded.Code)
	assert.Equal(t, "invalid configuration", decoded.Message)
}
