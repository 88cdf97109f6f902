package tokens

// ValidatorFunc adapts a function into a Validator.
type ValidatorFunc func(token string) (*Claims, error)

// Validate implements Validator.
func (f ValidatorFunc) Validate(token string) (*Claims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(token)
}

// MultiValidator tries validators in order, e.g. the current signing key
// and then retired ones. A malformed result moves on to the next validator;
// any other error stops the chain.
type MultiValidator struct {
	validators []Validator
}

// NewMultiValidator drops nil validators.
func NewMultiValidator(validators ...Validator) *MultiValidator {
	filtered := make([]Validator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiValidator{validators: filtered}
}

// Validate implements Validator.
func (m *MultiValidator) Validate(token string) (*Claims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(token)
		if err == nil {
			return claims, nil
		}
		if IsMalformed(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}
