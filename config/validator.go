package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Validator handles topology validation
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ValidateTopology validates field constraints and cross-replica rules
func (v *Validator) ValidateTopology(t *Topology) error {
	if t == nil {
		return errors.New("topology cannot be nil")
	}

	if err := v.validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.Errorf("%s: failed on '%s' constraint", fe.Namespace(), fe.Tag())
		}
		return err
	}

	return v.validateAddressRoles(t)
}

// validateAddressRoles checks that every address belongs to exactly one role
// and appears at most once within it.
func (v *Validator) validateAddressRoles(t *Topology) error {
	servers := make(map[string]string)
	for r, rep := range t.Replicas {
		for p, addr := range rep.Addresses {
			where := fmt.Sprintf("replica %d partition %d", r, p)
			if prev, exists := servers[addr]; exists {
				return errors.Errorf("address %s used by both %s and %s", addr, prev, where)
			}
			servers[addr] = where
		}
	}

	clients := make(map[string]int)
	for r, rep := range t.Replicas {
		for _, c := range rep.Clients {
			if where, exists := servers[c.Address]; exists {
				return errors.Errorf("address %s is a client of replica %d and a server at %s", c.Address, r, where)
			}
			if prev, exists := clients[c.Address]; exists {
				return errors.Errorf("client address %s listed in replica %d and replica %d", c.Address, prev, r)
			}
			clients[c.Address] = r
		}
	}

	return nil
}
