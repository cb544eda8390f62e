package entities

// CredentialKind selects how a secret is presented to a remote host
type CredentialKind string

// Credential kinds
const (
	CredentialBearer CredentialKind = "bearer"
	CredentialBasic  CredentialKind = "basic"
)

// CredentialRef names the environment variables a credential is read from.
// Secrets never appear in configuration, only variable names.
type CredentialRef struct {
	Kind             CredentialKind
	Variable         string
	UsernameVariable string
}

// IsZero reports whether no credential is configured
func (r CredentialRef) IsZero() bool {
	return r.Variable == ""
}

// Variables returns every environment variable the credential reads
func (r CredentialRef) Variables() []string {
	if r.IsZero() {
		return nil
	}
	if r.Kind == CredentialBasic && r.UsernameVariable != "" {
		return []string{r.UsernameVariable, r.Variable}
	}
	return []string{r.Variable}
}

// Credential is a resolved secret, valid for the duration of one run
type Credential struct {
	Kind     CredentialKind
	Variable string
	Username string
	Secret   string
}

// String never prints the secret
func (c Credential) String() string {
	return string(c.Kind) + " credential from " + c.Variable
}
