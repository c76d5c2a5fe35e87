package git

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/renato0307/maestro/internal/logging"
)

// validBranchNameChars matches valid characters for git branch names
// Allows: alphanumeric, hyphens, underscores, dots, slashes
var validBranchNameChars = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// invalidBranchNameChars matches characters that should be replaced with hyphens
// Includes:
// - Git-prohibited: space, ~, ^, :, ?, *, [, \
// - Shell metacharacters: &, |, ;, <, >, $, `, ', "
// - Other problematic: #, @, {, }, (, )
var invalidBranchNameChars = regexp.MustCompile(`[\s~^:?*\[\]\\{}#@()&|;<>$` + "`" + `'"]+`)

// consecutiveHyphens matches two or more consecutive hyphens
var consecutiveHyphens = regexp.MustCompile(`-{2,}`)

// maxSlugLength bounds the prompt-derived part of a branch name
const maxSlugLength = 32

// validateBranchName checks if a branch name is valid according to git rules.
// Returns nil if valid, error with helpful message if invalid.
//
// Note: stricter than git-check-ref-format because branch names end up in
// shell-executed git commands. Shell metacharacters are rejected outright.
func validateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("branch name cannot start with '.'")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("branch name cannot start with '/'")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}

	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("branch name cannot end with '.lock'")
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("branch name cannot end with '.'")
	}
	if strings.HasSuffix(name, "/") {
		return fmt.Errorf("branch name cannot end with '/'")
	}
	if strings.HasSuffix(name, "-") {
		return fmt.Errorf("branch name cannot end with '-'")
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if strings.Contains(name, "//") {
		return fmt.Errorf("branch name cannot contain '//'")
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("branch name cannot contain '@{'")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("branch name cannot contain control characters")
		}
	}

	if !validBranchNameChars.MatchString(name) {
		return fmt.Errorf("branch name contains invalid characters (only alphanumeric, '.', '_', '-', '/' allowed)")
	}

	if name == "@" {
		return fmt.Errorf("branch name cannot be '@'")
	}

	return nil
}

// sanitizeBranchName transforms a string into a valid git branch name.
// Returns error if result would be empty after sanitization.
func sanitizeBranchName(name string) (string, error) {
	logging.Logger.Debug("Sanitizing branch name", "input", name)

	if name == "" {
		return "", fmt.Errorf("cannot sanitize empty string")
	}

	result := strings.ToLower(name)

	var builder strings.Builder
	for _, r := range result {
		if !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}
	result = builder.String()

	result = invalidBranchNameChars.ReplaceAllString(result, "-")
	result = strings.ReplaceAll(result, "..", "-")
	result = strings.ReplaceAll(result, "//", "/")

	result = strings.TrimLeft(result, "./-")
	result = strings.TrimSuffix(result, ".lock")
	result = strings.TrimRight(result, "./-")

	result = consecutiveHyphens.ReplaceAllString(result, "-")

	if result == "" {
		return "", fmt.Errorf("sanitization resulted in empty branch name")
	}
	if result == "@" {
		return "", fmt.Errorf("sanitization resulted in invalid branch name '@'")
	}

	return result, nil
}

// promptSlug derives the branch name segment from the originating prompt.
// The slug is a sanitized slice of the prompt, truncated at a word-ish
// boundary; callers append a random suffix for uniqueness.
func promptSlug(prompt string) string {
	slug, err := sanitizeBranchName(prompt)
	if err != nil {
		return "session"
	}

	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		// Avoid cutting mid-word when a hyphen is nearby
		if idx := strings.LastIndex(slug, "-"); idx > maxSlugLength/2 {
			slug = slug[:idx]
		}
		slug = strings.TrimRight(slug, "./-")
	}
	if slug == "" {
		return "session"
	}
	return slug
}
