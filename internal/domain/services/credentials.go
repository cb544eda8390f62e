package services

import (
	"os"

	"github.com/ochairo/redist/internal/domain/entities"
)

// LookupEnvFunc matches os.LookupEnv
type LookupEnvFunc func(key string) (string, bool)

// CredentialResolver reads secrets from the environment
type CredentialResolver struct {
	lookup LookupEnvFunc
}

// NewCredentialResolver creates a resolver. A nil lookup uses os.LookupEnv.
func NewCredentialResolver(lookup LookupEnvFunc) *CredentialResolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &CredentialResolver{lookup: lookup}
}

// Resolve reads the variables named by ref. An unset or empty variable is a
// configuration error naming it.
func (r *CredentialResolver) Resolve(ref entities.CredentialRef) (*entities.Credential, error) {
	if ref.IsZero() {
		return nil, entities.NewConfigError("no credential variable configured")
	}

	secret, ok := r.lookup(ref.Variable)
	if !ok || secret == "" {
		return nil, entities.MissingVariableError(ref.Variable)
	}

	cred := &entities.Credential{
		Kind:     ref.Kind,
		Variable: ref.Variable,
		Secret:   secret,
	}
	if cred.Kind == "" {
		cred.Kind = entities.CredentialBearer
	}

	if cred.Kind == entities.CredentialBasic && ref.UsernameVariable != "" {
		user, ok := r.lookup(ref.UsernameVariable)
		if !ok || user == "" {
			return nil, entities.MissingVariableError(ref.UsernameVariable)
		}
		cred.Username = user
	}

	return cred, nil
}

// Lookup returns a single variable, failing when it is unset or empty
func (r *CredentialResolver) Lookup(variable string) (string, error) {
	v, ok := r.lookup(variable)
	if !ok || v == "" {
		return "", entities.MissingVariableError(variable)
	}
	return v, nil
}
