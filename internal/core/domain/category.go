package domain

import (
	"regexp"
	"strings"
)

// Category identifies a class of protected health information.
// Categories are configured at startup and immutable afterwards.
// Institution-defined extensions are plain Category values that
// satisfy IsValid.
type Category string

// Built-in PHI categories.
const (
	// CategoryPerson covers patient, client and family member names.
	CategoryPerson Category = "PERSON"

	// CategoryDate covers identifying dates (birth, assessment, injury).
	CategoryDate Category = "DATE"

	// CategoryAddress covers street addresses and postal codes.
	CategoryAddress Category = "ADDRESS"

	// CategoryPhone covers telephone and fax numbers.
	CategoryPhone Category = "PHONE"

	// CategoryEmail covers email addresses.
	CategoryEmail Category = "EMAIL"

	// CategoryIDNumber covers claim, file and policy numbers.
	CategoryIDNumber Category = "ID_NUMBER"

	// CategoryMedicalRecord covers MRNs and patient identifiers.
	CategoryMedicalRecord Category = "MEDICAL_RECORD"
)

// categoryNameRe constrains category names so they can be embedded in
// placeholder tokens and recovered by the restore scanner.
var categoryNameRe = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// IsValid returns true if the category name can appear inside a
// placeholder token: upper-case letters, digits and underscores only.
func (c Category) IsValid() bool {
	return categoryNameRe.MatchString(string(c))
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// BuiltinCategories lists the categories the engine ships patterns for,
// in default priority order (highest priority first).
func BuiltinCategories() []Category {
	return []Category{
		CategoryMedicalRecord,
		CategoryIDNumber,
		CategoryPerson,
		CategoryDate,
		CategoryPhone,
		CategoryEmail,
		CategoryAddress,
	}
}

// NormaliseCategory maps a configured category name to its canonical
// form (upper-case, underscores for spaces).
func NormaliseCategory(name string) Category {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return Category(strings.ToUpper(name))
}
