package categories

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/funko-store/funko-api/internal/platform/httpx"
)

var lower = cases.Lower(language.Und)

// NormalizeName trims and lower-cases a category name.
func NormalizeName(name string) string {
	return lower.String(strings.TrimSpace(name))
}

func validateName(name string) error {
	n := len([]rune(name))
	if n < 3 || n > 100 {
		return fmt.Errorf("%w: category name must be between 3 and 100 characters", httpx.ErrValidation)
	}
	return nil
}
