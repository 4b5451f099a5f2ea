package config

const redacted = "[REDACTED]"

// Secret is a credential loaded from config. Every formatting and
// marshalling path prints it redacted; Value returns the real string.
type Secret string

// Value returns the unredacted secret.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether the secret is non-empty.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// MarshalText also covers JSON and YAML encoding.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText stores text as-is so koanf can decode secrets from files
// and the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
