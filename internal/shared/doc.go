// Package shared holds helpers used across packages. Its testutil subpackage
// builds TAC workbook fixtures and captures slog output for assertions.
package shared
