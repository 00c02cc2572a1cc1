package zerrors

import (
	"errors"
	"strings"
)

// Decode (Z) Errors
var (
	ErrImageOverrun        = errors.New("Z1|ImageOverrun: Read past the end of the story image.")
	ErrUnknownOpcode       = errors.New("Z2|UnknownOpcode: Opcode has no code generation template.")
	ErrUnsupportedVersion  = errors.New("Z3|UnsupportedVersion: Z-Machine version is not one of 3, 4, 5, 6, 7, 8.")
	ErrBlockTooLong        = errors.New("Z4|BlockTooLong: Block did not end within the instruction limit.")
	ErrHeaderTooShort      = errors.New("Z5|HeaderTooShort: Story image is shorter than the 64 byte header.")
	ErrFunctionUnsupported = errors.New("Z6|FunctionUnsupported: Whole-function decompilation is not available.")
	ErrAddressOutOfRange   = errors.New("Z7|AddressOutOfRange: Requested address lies outside the story image.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	code := parts[0]
	// wrapped errors carry a "context: " prefix ahead of the code
	if i := strings.LastIndex(code, ": "); i >= 0 {
		code = code[i+2:]
	}
	return strings.TrimSpace(code)
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if i := strings.Index(errStr, "|"); i >= 0 {
		errStr = errStr[i+1:]
	}
	parts := strings.SplitN(errStr, ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
