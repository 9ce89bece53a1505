package derive

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"hermandad.org/internal/domain"
)

var (
	ordinaryPassword = regexp.MustCompile(`^OR[A-Za-z0-9]+$`)
	passwordInitials = regexp.MustCompile(`^OR([A-Z]+)`)
)

// CommissionAssignments keeps assignments whose turn is a commission turn.
func CommissionAssignments(d domain.Devotee) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range d.Turns {
		if a.Turn != nil && strings.EqualFold(string(a.Turn.Type), string(domain.TurnCommission)) {
			out = append(out, a)
		}
	}
	return out
}

// OrdinaryAssignments keeps assignments carrying an ordinary-turn password.
// Malformed passwords are dropped without error.
func OrdinaryAssignments(d domain.Devotee) []domain.Assignment {
	var out []domain.Assignment
	for _, a := range d.Turns {
		if IsOrdinaryPassword(a.Code()) {
			out = append(out, a)
		}
	}
	return out
}

func IsOrdinaryPassword(code string) bool {
	return ordinaryPassword.MatchString(code)
}

// OrdinaryPasswords lists the distinct ordinary passwords of d in first-seen order.
func OrdinaryPasswords(d domain.Devotee) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, a := range OrdinaryAssignments(d) {
		code := a.Code()
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// FindAssignment returns the assignment of d for turnID.
func FindAssignment(d domain.Devotee, turnID string) (domain.Assignment, bool) {
	for _, a := range d.Turns {
		if turnID != "" && a.TurnKey() == turnID {
			return a, true
		}
	}
	return domain.Assignment{}, false
}

// Initials takes the uppercased first letter of every word of name.
func Initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// PasswordInitials extracts the capital letters after the "OR" prefix.
func PasswordInitials(password string) string {
	m := passwordInitials.FindStringSubmatch(strings.TrimSpace(password))
	if m == nil {
		return ""
	}
	return m[1]
}

// ResolveProcession finds the single procession whose name initials equal the
// initials encoded in password. It never guesses between several candidates.
func ResolveProcession(processions []domain.Procession, password string) (domain.Procession, error) {
	want := PasswordInitials(password)
	if want == "" {
		return domain.Procession{}, ErrNoMatchingProcession
	}
	var found []domain.Procession
	for _, p := range processions {
		if p.Name != "" && Initials(p.Name) == want {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return domain.Procession{}, ErrNoMatchingProcession
	case 1:
		return found[0], nil
	default:
		return domain.Procession{}, ErrAmbiguousProcession
	}
}

func itoa(n int) string { return strconv.Itoa(n) }
