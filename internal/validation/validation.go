// Package validation provides input validation middleware for the VeriSeal API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxOCRTextLength bounds the OCR text field. Receipts are a page at most.
const MaxOCRTextLength = 64 * 1024

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

var (
	// ownerRefRegex validates account owner references: opaque client
	// identifiers, not personal data.
	ownerRefRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
	// fingerprintRegex validates scam signature fingerprints (sha256 hex)
	fingerprintRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)
	// hexRegex validates hex strings
	hexRegex = regexp.MustCompile(`^(0x)?[a-fA-F0-9]+$`)
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidOwnerRef checks if a string is a well-formed account owner reference
func IsValidOwnerRef(ref string) bool {
	return ownerRefRegex.MatchString(ref)
}

// IsValidFingerprint checks if a string is a well-formed signature fingerprint
func IsValidFingerprint(fp string) bool {
	return fingerprintRegex.MatchString(fp)
}

// IsValidHex checks if a string is valid hex
func IsValidHex(s string) bool {
	return hexRegex.MatchString(s)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	// Trim whitespace
	s = strings.TrimSpace(s)

	// Limit length
	if len(s) > maxLen {
		s = s[:maxLen]
	}

	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidOwnerRef checks if a field is a well-formed owner reference
func ValidOwnerRef(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidOwnerRef(value) {
			return &ValidationError{Field: field, Message: "must be 1-128 characters: letters, digits, dot, dash, underscore"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// OwnerRefParamMiddleware validates the :ownerRef URL parameter on routes
// that use it, rejecting malformed references early.
func OwnerRefParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("ownerRef")
		if ref != "" && !IsValidOwnerRef(ref) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_owner_ref",
				"message": "ownerRef must be 1-128 characters: letters, digits, dot, dash, underscore",
			})
			return
		}
		c.Next()
	}
}
