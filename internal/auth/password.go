package auth

// MinPasswordLength is the sign-up floor.
const MinPasswordLength = 6

// PasswordStrength scores a password against five requirements.
type PasswordStrength struct {
	Length    bool `json:"length"`
	Uppercase bool `json:"uppercase"`
	Lowercase bool `json:"lowercase"`
	Number    bool `json:"number"`
	Special   bool `json:"special"`
	Score     int  `json:"score"`
	Valid     bool `json:"valid"`
}

// ValidatePassword scores pw. It is valid when it has at least eight
// characters and meets three of the five requirements.
func ValidatePassword(pw string) PasswordStrength {
	var s PasswordStrength
	s.Length = len([]rune(pw)) >= 8
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			s.Uppercase = true
		case r >= 'a' && r <= 'z':
			s.Lowercase = true
		case r >= '0' && r <= '9':
			s.Number = true
		default:
			s.Special = true
		}
	}
	for _, ok := range []bool{s.Length, s.Uppercase, s.Lowercase, s.Number, s.Special} {
		if ok {
			s.Score++
		}
	}
	s.Valid = s.Length && s.Score >= 3
	return s
}
